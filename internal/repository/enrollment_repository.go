package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

// EnrollmentRepository reads enrollment data. Enrollments are owned by the
// registration subsystem; this layer never writes them.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// StudentExists reports whether the student id references a known student.
func (r *EnrollmentRepository) StudentExists(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID); err != nil {
		return false, wrapStoreErr("check student exists", err)
	}
	return exists, nil
}

// ListActiveByStudent returns the student's ACTIVE enrollments with module
// info, ordered by module code for stable output.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.module_id, e.enrolled_at, e.status,
       m.code AS module_code, m.name AS module_name, m.semester, m.credits
FROM enrollments e
JOIN modules m ON m.id = e.module_id
WHERE e.student_id = $1 AND e.status = $2
ORDER BY m.code ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, wrapStoreErr("list active enrollments", err)
	}
	return enrollments, nil
}

// ListEnrolledStudentIDs returns the distinct ids of students holding at
// least one ACTIVE enrollment (feeds the campus-wide conflict report).
func (r *EnrollmentRepository) ListEnrolledStudentIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT student_id FROM enrollments WHERE status = $1 ORDER BY student_id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.EnrollmentStatusActive); err != nil {
		return nil, wrapStoreErr("list enrolled student ids", err)
	}
	return ids, nil
}
