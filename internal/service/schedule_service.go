package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
	appErrors "github.com/nadir-hamid/fst-exams-api/pkg/errors"
)

// readRetryBackoff is the fixed pause before the single retry allowed on
// transient read failures. Writes are never retried.
const readRetryBackoff = 200 * time.Millisecond

type enrollmentReader interface {
	StudentExists(ctx context.Context, studentID string) (bool, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type examReader interface {
	GetByID(ctx context.Context, id string) (*models.ExamDetail, error)
	List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, error)
}

// ScheduleService builds the per-student schedule index: the ordered set of
// schedule entries derived from ACTIVE enrollments and their exams. Entries
// are rebuilt on every call and never stored.
type ScheduleService struct {
	enrollments enrollmentReader
	exams       examReader
	logger      *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(enrollments enrollmentReader, exams examReader, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{enrollments: enrollments, exams: exams, logger: logger}
}

// BuildEntries returns the student's schedule entries ordered by start
// ascending, ties broken by exam id, so repeated calls produce identical
// sequences. Exams of WITHDRAWN enrollments are excluded. Unknown student
// ids yield NotFound.
func (s *ScheduleService) BuildEntries(ctx context.Context, studentID string) ([]models.ScheduleEntry, error) {
	exists, err := retryRead(ctx, func() (bool, error) {
		return s.enrollments.StudentExists(ctx, studentID)
	})
	if err != nil {
		return nil, s.storeError(err, "failed to look up student")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown student")
	}

	enrollments, err := retryRead(ctx, func() ([]models.EnrollmentDetail, error) {
		return s.enrollments.ListActiveByStudent(ctx, studentID)
	})
	if err != nil {
		return nil, s.storeError(err, "failed to load enrollments")
	}
	if len(enrollments) == 0 {
		return []models.ScheduleEntry{}, nil
	}

	moduleIDs := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		moduleIDs = append(moduleIDs, enrollment.ModuleID)
	}

	exams, err := retryRead(ctx, func() ([]models.ExamDetail, error) {
		return s.exams.List(ctx, models.ExamFilter{ModuleIDs: moduleIDs})
	})
	if err != nil {
		return nil, s.storeError(err, "failed to load exams")
	}

	entries := make([]models.ScheduleEntry, 0, len(exams))
	for _, exam := range exams {
		entries = append(entries, models.ScheduleEntry{
			ExamID:     exam.ID,
			ModuleID:   exam.ModuleID,
			ModuleName: exam.ModuleName,
			Start:      exam.StartAt,
			End:        exam.EndAt(),
			RoomID:     exam.RoomID,
			RoomName:   exam.RoomName,
		})
	}
	sortEntries(entries)
	return entries, nil
}

// ExamForStudent resolves an exam and verifies it belongs to one of the
// student's ACTIVE enrollments.
func (s *ScheduleService) ExamForStudent(ctx context.Context, studentID, examID string) (*models.ExamDetail, error) {
	exam, err := retryRead(ctx, func() (*models.ExamDetail, error) {
		return s.exams.GetByID(ctx, examID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown exam")
		}
		return nil, s.storeError(err, "failed to load exam")
	}

	enrollments, err := retryRead(ctx, func() ([]models.EnrollmentDetail, error) {
		return s.enrollments.ListActiveByStudent(ctx, studentID)
	})
	if err != nil {
		return nil, s.storeError(err, "failed to load enrollments")
	}
	for _, enrollment := range enrollments {
		if enrollment.ModuleID == exam.ModuleID {
			return exam, nil
		}
	}
	return nil, appErrors.Validation("EXAM_NOT_ENROLLED", "exam does not belong to an active enrollment of the student")
}

func (s *ScheduleService) storeError(err error, message string) error {
	if appErrors.IsTransient(err) {
		return appErrors.FromError(err)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func sortEntries(entries []models.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Start.Equal(entries[j].Start) {
			return entries[i].ExamID < entries[j].ExamID
		}
		return entries[i].Start.Before(entries[j].Start)
	})
}

// retryRead performs a read operation, retrying exactly once after a short
// fixed backoff when the failure is a transient store error.
func retryRead[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil || !appErrors.IsTransient(err) {
		return result, err
	}

	timer := time.NewTimer(readRetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-timer.C:
	}
	return fn()
}
