package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
	appErrors "github.com/nadir-hamid/fst-exams-api/pkg/errors"
)

type authRepoStub struct {
	users        map[string]*models.User
	findErr      error
	tokens       map[string]*models.RefreshToken
	logs         []*models.AuditLog
	lastLoginSet bool
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (a *authRepoStub) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if a.findErr != nil {
		return nil, a.findErr
	}
	for _, user := range a.users {
		if user.Username == username {
			copy := *user
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (a *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := a.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (a *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	a.lastLoginSet = true
	return nil
}

func (a *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	a.tokens[token.Token] = token
	return nil
}

func (a *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := a.tokens[token]; ok && !rt.Revoked {
		copy := *rt
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (a *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, rt := range a.tokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (a *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, rt := range a.tokens {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}

func (a *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func authFixture(t *testing.T) (*AuthService, *authRepoStub) {
	t.Helper()
	repo := newAuthRepoStub()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	linked := "student-1"
	repo.users["user-1"] = &models.User{
		ID:           "user-1",
		Username:     "etudiant1",
		PasswordHash: string(hash),
		FullName:     "Test Student",
		Role:         models.RoleStudent,
		LinkedID:     &linked,
		Active:       true,
	}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "fst-exams",
	})
	return svc, repo
}

func TestAuthLoginIssuesTokensWithLinkedID(t *testing.T) {
	svc, repo := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "etudiant1", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.True(t, repo.lastLoginSet)
	require.Len(t, repo.logs, 1)
	require.Equal(t, models.AuditActionLogin, repo.logs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, models.RoleStudent, claims.Role)
	require.Equal(t, "student-1", claims.LinkedID)
	require.True(t, claims.ActsFor("student-1"))
	require.False(t, claims.ActsFor("student-2"))
}

func TestAuthLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "etudiant1", Password: "wrong"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginRejectsUnknownUser(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "s3cret"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := authFixture(t)
	repo.users["user-1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "etudiant1", Password: "s3cret"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginFailsClosedOnStoreError(t *testing.T) {
	svc, repo := authFixture(t)
	repo.findErr = appErrors.Clone(appErrors.ErrStoreUnavailable, "connection refused")

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "etudiant1", Password: "s3cret"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrStoreUnavailable.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	svc, _ := authFixture(t)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "etudiant1", Password: "s3cret"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The consumed token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
