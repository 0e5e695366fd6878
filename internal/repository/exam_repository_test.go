package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

func TestExamRepositoryListByModules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "module_id", "start_at", "duration_minutes", "room_id", "created_at", "module_code", "module_name", "room_name"}).
		AddRow("exam-1", "mod-1", start, 120, "room-1", time.Now(), "MAT101", "Algebra", "Amphi A").
		AddRow("exam-2", "mod-2", start.Add(3*time.Hour), 90, "room-2", time.Now(), "PHY201", "Mechanics", "Amphi B")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ex.id, ex.module_id")).
		WithArgs("mod-1", "mod-2").
		WillReturnRows(rows)

	exams, err := repo.List(context.Background(), models.ExamFilter{ModuleIDs: []string{"mod-1", "mod-2"}})
	require.NoError(t, err)
	require.Len(t, exams, 2)
	require.Equal(t, "exam-1", exams[0].ID)
	require.Equal(t, start.Add(2*time.Hour), exams[0].EndAt())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "student_id", "module_id", "enrolled_at", "status", "module_code", "module_name", "semester", "credits"}).
		AddRow("enr-1", "student-1", "mod-1", time.Now(), "ACTIVE", "MAT101", "Algebra", 1, 6)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id, e.student_id, e.module_id")).
		WithArgs("student-1", "ACTIVE").
		WillReturnRows(rows)

	enrollments, err := repo.ListActiveByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, models.EnrollmentStatusActive, enrollments[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryStudentExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("student-404").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.StudentExists(context.Background(), "student-404")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
