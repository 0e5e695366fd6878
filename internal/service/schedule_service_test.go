package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
	appErrors "github.com/nadir-hamid/fst-exams-api/pkg/errors"
)

type enrollmentStub struct {
	exists      bool
	existsErr   error
	enrollments []models.EnrollmentDetail
	listErr     error
	listCalls   int
}

func (e *enrollmentStub) StudentExists(ctx context.Context, studentID string) (bool, error) {
	return e.exists, e.existsErr
}

func (e *enrollmentStub) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	e.listCalls++
	if e.listErr != nil {
		err := e.listErr
		e.listErr = nil
		return nil, err
	}
	return e.enrollments, nil
}

type examStub struct {
	exams  []models.ExamDetail
	byID   map[string]*models.ExamDetail
	getErr error
}

func (e *examStub) GetByID(ctx context.Context, id string) (*models.ExamDetail, error) {
	if e.getErr != nil {
		return nil, e.getErr
	}
	if exam, ok := e.byID[id]; ok {
		copy := *exam
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (e *examStub) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, error) {
	return e.exams, nil
}

func enrollmentOf(moduleID string) models.EnrollmentDetail {
	return models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:        "enr-" + moduleID,
			StudentID: "student-1",
			ModuleID:  moduleID,
			Status:    models.EnrollmentStatusActive,
		},
		ModuleName: "Module " + moduleID,
	}
}

func examOf(id, moduleID string, start time.Time, minutes int, roomID string) models.ExamDetail {
	return models.ExamDetail{
		Exam: models.Exam{
			ID:              id,
			ModuleID:        moduleID,
			StartAt:         start,
			DurationMinutes: minutes,
			RoomID:          roomID,
		},
		ModuleName: "Module " + moduleID,
		RoomName:   "Room " + roomID,
	}
}

func TestBuildEntriesOrdersByStartThenExamID(t *testing.T) {
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	enrollments := &enrollmentStub{exists: true, enrollments: []models.EnrollmentDetail{
		enrollmentOf("mod-1"), enrollmentOf("mod-2"), enrollmentOf("mod-3"),
	}}
	exams := &examStub{exams: []models.ExamDetail{
		examOf("e3", "mod-3", start.Add(2*time.Hour), 90, "r1"),
		examOf("e2", "mod-2", start, 120, "r2"),
		examOf("e1", "mod-1", start, 120, "r1"),
	}}
	svc := NewScheduleService(enrollments, exams, nil)

	entries, err := svc.BuildEntries(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "e1", entries[0].ExamID)
	require.Equal(t, "e2", entries[1].ExamID)
	require.Equal(t, "e3", entries[2].ExamID)
	require.Equal(t, start.Add(2*time.Hour).Add(90*time.Minute), entries[2].End)
}

func TestBuildEntriesUnknownStudent(t *testing.T) {
	svc := NewScheduleService(&enrollmentStub{exists: false}, &examStub{}, nil)

	_, err := svc.BuildEntries(context.Background(), "ghost")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBuildEntriesNoActiveEnrollments(t *testing.T) {
	svc := NewScheduleService(&enrollmentStub{exists: true}, &examStub{}, nil)

	entries, err := svc.BuildEntries(context.Background(), "student-1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBuildEntriesRetriesTransientReadOnce(t *testing.T) {
	enrollments := &enrollmentStub{
		exists:      true,
		enrollments: []models.EnrollmentDetail{enrollmentOf("mod-1")},
		listErr:     appErrors.Clone(appErrors.ErrStoreUnavailable, "connection reset"),
	}
	exams := &examStub{exams: []models.ExamDetail{
		examOf("e1", "mod-1", time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC), 120, "r1"),
	}}
	svc := NewScheduleService(enrollments, exams, nil)

	entries, err := svc.BuildEntries(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 2, enrollments.listCalls)
}

func TestExamForStudentNotEnrolled(t *testing.T) {
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	exam := examOf("e9", "mod-9", start, 120, "r1")
	enrollments := &enrollmentStub{exists: true, enrollments: []models.EnrollmentDetail{enrollmentOf("mod-1")}}
	exams := &examStub{byID: map[string]*models.ExamDetail{"e9": &exam}}
	svc := NewScheduleService(enrollments, exams, nil)

	_, err := svc.ExamForStudent(context.Background(), "student-1", "e9")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Equal(t, "EXAM_NOT_ENROLLED", appErr.Rule)
}

func TestExamForStudentUnknownExam(t *testing.T) {
	enrollments := &enrollmentStub{exists: true}
	svc := NewScheduleService(enrollments, &examStub{}, nil)

	_, err := svc.ExamForStudent(context.Background(), "student-1", "missing")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
