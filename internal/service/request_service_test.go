package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nadir-hamid/fst-exams-api/internal/dto"
	"github.com/nadir-hamid/fst-exams-api/internal/models"
	"github.com/nadir-hamid/fst-exams-api/internal/repository"
	"github.com/nadir-hamid/fst-exams-api/pkg/config"
	appErrors "github.com/nadir-hamid/fst-exams-api/pkg/errors"
)

type requestStoreStub struct {
	requests map[string]*models.ModificationRequest
	pending  *models.ModificationRequest
	filter   models.RequestFilter
}

func newRequestStoreStub() *requestStoreStub {
	return &requestStoreStub{requests: make(map[string]*models.ModificationRequest)}
}

func (r *requestStoreStub) Create(ctx context.Context, request *models.ModificationRequest) error {
	if request.ID == "" {
		request.ID = fmt.Sprintf("req-%d", len(r.requests)+1)
	}
	request.CreatedAt = time.Now().UTC()
	stored := *request
	r.requests[request.ID] = &stored
	return nil
}

func (r *requestStoreStub) GetByID(ctx context.Context, id string) (*models.ModificationRequest, error) {
	if request, ok := r.requests[id]; ok {
		copy := *request
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *requestStoreStub) GetPendingByStudentAndExam(ctx context.Context, studentID, examID string) (*models.ModificationRequest, error) {
	if r.pending != nil && r.pending.StudentID == studentID && r.pending.ExamID == examID {
		copy := *r.pending
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.ModificationRequestDetail, error) {
	r.filter = filter
	result := make([]models.ModificationRequestDetail, 0, len(r.requests))
	for _, request := range r.requests {
		result = append(result, models.ModificationRequestDetail{ModificationRequest: *request})
	}
	return result, nil
}

func (r *requestStoreStub) Resolve(ctx context.Context, params repository.ResolveParams) error {
	request, ok := r.requests[params.ID]
	if !ok || request.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	request.Response = &params.Response
	request.RespondedAt = &params.RespondedAt
	return nil
}

type roomsStub struct {
	rooms map[string]*models.Room
}

func (r *roomsStub) GetByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := r.rooms[id]; ok {
		copy := *room
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *roomsStub) ListAvailable(ctx context.Context) ([]models.Room, error) {
	result := make([]models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.Available {
			result = append(result, *room)
		}
	}
	return result, nil
}

type cacheStub struct {
	sets int
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	return nil
}

var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newRequestFixture(t *testing.T, exams []models.ExamDetail, enrollments []models.EnrollmentDetail) (*RequestService, *requestStoreStub, *auditStub) {
	t.Helper()
	byID := make(map[string]*models.ExamDetail, len(exams))
	for i := range exams {
		byID[exams[i].ID] = &exams[i]
	}
	schedule := NewScheduleService(
		&enrollmentStub{exists: true, enrollments: enrollments},
		&examStub{exams: exams, byID: byID},
		nil,
	)
	detector := testDetector()
	store := newRequestStoreStub()
	audit := &auditStub{}
	rooms := &roomsStub{rooms: map[string]*models.Room{
		"r1": {ID: "r1", Name: "Amphi A", Capacity: 120, Available: true},
		"r2": {ID: "r2", Name: "Amphi B", Capacity: 80, Available: true},
		"r3": {ID: "r3", Name: "Annex C", Capacity: 40, Available: false},
	}}
	svc := NewRequestService(
		store, rooms, &cacheStub{}, schedule, detector, audit, nil,
		config.RequestsConfig{WindowMinDays: 1, WindowMaxDays: 30, SlotTimes: []string{"08:00", "10:15", "13:00", "15:15"}, PreviewLimit: 3},
		5*time.Minute,
		WithRequestClock(func() time.Time { return testNow }),
	)
	return svc, store, audit
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestRequestCreatePersistsPending(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, store, audit := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	request, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID: "e1",
		Type:   models.RequestTypeOther,
		Reason: "  medical appointment  ",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)
	require.Equal(t, "medical appointment", request.Reason)
	require.Len(t, store.requests, 1)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionRequestCreate, audit.logs[0].Action)
}

func TestRequestCreateRejectsPastExam(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.Add(-2*time.Hour), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	_, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID: "e1",
		Type:   models.RequestTypeOther,
		Reason: "too late",
	})
	require.Error(t, err)
	require.Equal(t, "EXAM_NOT_FUTURE", appErrors.FromError(err).Rule)
}

func TestRequestCreateRejectsUnenrolledExam(t *testing.T) {
	exam := examOf("e1", "mod-9", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	_, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID: "e1",
		Type:   models.RequestTypeOther,
		Reason: "not mine",
	})
	require.Error(t, err)
	require.Equal(t, "EXAM_NOT_ENROLLED", appErrors.FromError(err).Rule)
}

func TestRequestCreateRescheduleWindow(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	tooFar := testNow.AddDate(0, 0, 45)
	_, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID:         "e1",
		Type:           models.RequestTypeReschedule,
		Reason:         "conflict with another exam",
		PreferredStart: &tooFar,
	})
	require.Error(t, err)
	require.Equal(t, "PREFERRED_TIME_WINDOW", appErrors.FromError(err).Rule)

	_, err = svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID: "e1",
		Type:   models.RequestTypeReschedule,
		Reason: "conflict with another exam",
	})
	require.Error(t, err)
	require.Equal(t, "PREFERRED_TIME_REQUIRED", appErrors.FromError(err).Rule)

	inWindow := testNow.AddDate(0, 0, 5)
	request, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID:         "e1",
		Type:           models.RequestTypeReschedule,
		Reason:         "conflict with another exam",
		PreferredStart: &inWindow,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)
}

func TestRequestCreateRoomChangeValidation(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	_, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID: "e1",
		Type:   models.RequestTypeRoomChange,
		Reason: "room too small",
	})
	require.Error(t, err)
	require.Equal(t, "PREFERRED_ROOM_REQUIRED", appErrors.FromError(err).Rule)

	unavailable := "r3"
	_, err = svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID:        "e1",
		Type:          models.RequestTypeRoomChange,
		Reason:        "room too small",
		PreferredRoom: &unavailable,
	})
	require.Error(t, err)
	require.Equal(t, "ROOM_UNAVAILABLE", appErrors.FromError(err).Rule)

	available := "r2"
	request, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID:        "e1",
		Type:          models.RequestTypeRoomChange,
		Reason:        "room too small",
		PreferredRoom: &available,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)
}

func TestResolveOnlyOneDecisionWins(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, store, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	request, err := svc.Create(context.Background(), "student-1", dto.CreateModificationRequest{
		ExamID: "e1",
		Type:   models.RequestTypeOther,
		Reason: "medical",
	})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), request.ID, dto.ResolveModificationRequest{
		Decision: models.RequestStatusAccepted,
		Response: "Approved by administration",
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusAccepted, resolved.Status)
	require.NotNil(t, resolved.RespondedAt)

	// A second adjudication attempt observes a non-PENDING row.
	_, err = svc.Resolve(context.Background(), request.ID, dto.ResolveModificationRequest{
		Decision: models.RequestStatusRejected,
		Response: "Denied",
	}, "admin-2")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)

	stored := store.requests[request.ID]
	require.Equal(t, models.RequestStatusAccepted, stored.Status)
}

func TestResolveUnknownRequest(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	_, err := svc.Resolve(context.Background(), "ghost", dto.ResolveModificationRequest{
		Decision: models.RequestStatusRejected,
		Response: "no such request",
	}, "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResolveRequiresTerminalDecision(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	_, err := svc.Resolve(context.Background(), "req-1", dto.ResolveModificationRequest{
		Decision: models.RequestStatusPending,
		Response: "noop",
	}, "admin-1")
	require.Error(t, err)
	require.Equal(t, "DECISION_INVALID", appErrors.FromError(err).Rule)
}

func TestListScopesStudentsToTheirOwnRequests(t *testing.T) {
	exam := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, store, _ := newRequestFixture(t, []models.ExamDetail{exam}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	_, err := svc.List(context.Background(), dto.RequestQuery{}, &models.JWTClaims{
		UserID:   "user-1",
		Role:     models.RoleStudent,
		LinkedID: "student-1",
	})
	require.NoError(t, err)
	require.Equal(t, "student-1", store.filter.StudentID)

	_, err = svc.List(context.Background(), dto.RequestQuery{}, &models.JWTClaims{
		UserID: "user-2",
		Role:   models.RoleProfessor,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSuggestAlternativesNeverConflict(t *testing.T) {
	// The target exam plus a fixed exam on an in-window morning.
	target := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	fixed := examOf("e2", "mod-2", time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), 120, "r2")
	svc, _, _ := newRequestFixture(t,
		[]models.ExamDetail{target, fixed},
		[]models.EnrollmentDetail{enrollmentOf("mod-1"), enrollmentOf("mod-2")},
	)

	iterator, err := svc.SuggestAlternatives(context.Background(), "student-1", "e1")
	require.NoError(t, err)

	detector := testDetector()
	remaining := models.ScheduleEntry{
		ExamID: "e2", Start: fixed.StartAt, End: fixed.EndAt(), RoomID: "r2", RoomName: "Amphi B",
	}
	seen := 0
	for {
		slot, ok := iterator.Next()
		if !ok || seen >= 25 {
			break
		}
		seen++
		candidate := models.ScheduleEntry{
			ExamID: "e1", Start: slot.Start, End: slot.Start.Add(2 * time.Hour), RoomID: slot.RoomID,
		}
		for _, conflict := range detector.Detect([]models.ScheduleEntry{remaining, candidate}) {
			require.NotContains(t, conflict.ExamIDs, "e1",
				"suggested slot %s in %s must not create a conflict", slot.Start, slot.RoomID)
		}
		// Unavailable rooms never appear in suggestions.
		require.NotEqual(t, "r3", slot.RoomID)
	}
	require.Greater(t, seen, 0)
}

func TestSuggestAlternativesIsRestartable(t *testing.T) {
	target := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{target}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	iterator, err := svc.SuggestAlternatives(context.Background(), "student-1", "e1")
	require.NoError(t, err)

	first := iterator.Take(5)
	iterator.Reset()
	second := iterator.Take(5)
	require.Equal(t, first, second)
}

func TestSuggestAlternativesAnchorsOnPendingPreference(t *testing.T) {
	target := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, store, _ := newRequestFixture(t, []models.ExamDetail{target}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	preferred := time.Date(2026, 1, 20, 10, 15, 0, 0, time.UTC)
	store.pending = &models.ModificationRequest{
		ID:             "req-1",
		StudentID:      "student-1",
		ExamID:         "e1",
		Type:           models.RequestTypeReschedule,
		Status:         models.RequestStatusPending,
		PreferredStart: &preferred,
	}

	iterator, err := svc.SuggestAlternatives(context.Background(), "student-1", "e1")
	require.NoError(t, err)

	slot, ok := iterator.Next()
	require.True(t, ok)
	require.Equal(t, preferred, slot.Start)
}

func TestPreviewAlternativesHonorsLimit(t *testing.T) {
	target := examOf("e1", "mod-1", testNow.AddDate(0, 0, 10), 120, "r1")
	svc, _, _ := newRequestFixture(t, []models.ExamDetail{target}, []models.EnrollmentDetail{enrollmentOf("mod-1")})

	slots, err := svc.PreviewAlternatives(context.Background(), "student-1", "e1", 0)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	slots, err = svc.PreviewAlternatives(context.Background(), "student-1", "e1", 7)
	require.NoError(t, err)
	require.Len(t, slots, 7)
}
