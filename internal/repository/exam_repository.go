package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

const examDetailColumns = `ex.id, ex.module_id, ex.start_at, ex.duration_minutes, ex.room_id, ex.created_at,
       m.code AS module_code, m.name AS module_name, r.name AS room_name`

const examDetailJoins = `FROM exams ex
JOIN modules m ON m.id = ex.module_id
JOIN rooms r ON r.id = ex.room_id`

// ExamRepository reads exam data. Exams are scheduled elsewhere and
// read-only here.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// GetByID returns one exam with module and room info.
func (r *ExamRepository) GetByID(ctx context.Context, id string) (*models.ExamDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE ex.id = $1 LIMIT 1`, examDetailColumns, examDetailJoins)
	var exam models.ExamDetail
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, wrapStoreErr("get exam", err)
	}
	return &exam, nil
}

// List returns exams matching the filter, ordered by start then id so the
// schedule index is deterministic.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, error) {
	var conditions []string
	var args []interface{}

	if len(filter.ModuleIDs) > 0 {
		placeholders := make([]string, len(filter.ModuleIDs))
		for i, id := range filter.ModuleIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("ex.module_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RoomID != "" {
		args = append(args, filter.RoomID)
		conditions = append(conditions, fmt.Sprintf("ex.room_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("ex.start_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("ex.start_at < $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY ex.start_at ASC, ex.id ASC`, examDetailColumns, examDetailJoins, clause)

	var exams []models.ExamDetail
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, wrapStoreErr("list exams", err)
	}
	return exams, nil
}
