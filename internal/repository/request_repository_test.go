package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO modification_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.ModificationRequest{
		StudentID: "student-1",
		ExamID:    "exam-1",
		Type:      models.RequestTypeOther,
		Reason:    "medical appointment",
	}
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.RequestStatusPending, request.Status)

	rows := sqlmock.NewRows([]string{"id", "student_id", "exam_id", "type", "reason", "preferred_start", "preferred_room", "status", "response", "responded_at", "created_at"}).
		AddRow(request.ID, "student-1", "exam-1", "OTHER", "medical appointment", nil, nil, "PENDING", nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, exam_id")).
		WithArgs(request.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, request.ID, found.ID)
	require.Equal(t, models.RequestStatusPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	rows := sqlmock.NewRows([]string{"id", "student_id", "exam_id", "type", "reason", "preferred_start", "preferred_room", "status", "response", "responded_at", "created_at", "exam_start", "module_name", "room_name"}).
		AddRow("req-1", "student-1", "exam-1", "RESCHEDULE", "overlap", nil, nil, "PENDING", nil, nil, time.Now(), time.Now().Add(48*time.Hour), "Algebra", "Amphi A")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT mr.id, mr.student_id, mr.exam_id")).
		WithArgs("student-1", "PENDING").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.RequestFilter{
		StudentID: "student-1",
		Status:    []models.RequestStatus{models.RequestStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.Equal(t, "Algebra", list[0].ModuleName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryResolvePendingPrecondition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE modification_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Resolve(context.Background(), ResolveParams{
		ID:          "req-1",
		Status:      models.RequestStatusAccepted,
		Response:    "Approved",
		RespondedAt: now,
	})
	require.NoError(t, err)

	// Second transition attempt observes a non-PENDING row.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE modification_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Resolve(context.Background(), ResolveParams{
		ID:          "req-1",
		Status:      models.RequestStatusRejected,
		Response:    "Denied",
		RespondedAt: now,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
