package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, paramID string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/"+paramID+"/conflicts", nil)
	c.Params = gin.Params{{Key: "id", Value: paramID}}
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	RBAC(allowed...)(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	return w.Code
}

func TestRBACAllowsConfiguredRole(t *testing.T) {
	code := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, "student-1",
		string(models.RoleAdmin), SelfAccess)
	require.Equal(t, http.StatusOK, code)
}

func TestRBACAllowsStudentActingForThemselves(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, LinkedID: "student-1"}
	code := performRBAC(t, claims, "student-1", string(models.RoleAdmin), SelfAccess)
	require.Equal(t, http.StatusOK, code)
}

func TestRBACRejectsStudentReadingAnotherStudent(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, LinkedID: "student-1"}
	code := performRBAC(t, claims, "student-2", string(models.RoleAdmin), SelfAccess)
	require.Equal(t, http.StatusForbidden, code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	code := performRBAC(t, nil, "student-1", string(models.RoleAdmin))
	require.Equal(t, http.StatusUnauthorized, code)
}
