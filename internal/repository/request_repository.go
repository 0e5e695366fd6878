package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

const requestColumns = `id, student_id, exam_id, type, reason, preferred_start, preferred_room, status, response, responded_at, created_at`

// RequestRepository persists modification requests. Rows are append-only
// apart from the status transition; nothing is ever deleted.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row in PENDING state.
func (r *RequestRepository) Create(ctx context.Context, request *models.ModificationRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO modification_requests
	(` + requestColumns + `)
	VALUES (:id, :student_id, :exam_id, :type, :reason, :preferred_start, :preferred_room, :status, :response, :responded_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return wrapStoreErr("create modification request", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ModificationRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM modification_requests WHERE id = $1`
	var request models.ModificationRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, wrapStoreErr("get modification request", err)
	}
	return &request, nil
}

// GetPendingByStudentAndExam returns the student's pending request for an
// exam, if any (used to anchor alternative-slot ordering).
func (r *RequestRepository) GetPendingByStudentAndExam(ctx context.Context, studentID, examID string) (*models.ModificationRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM modification_requests
WHERE student_id = $1 AND exam_id = $2 AND status = $3
ORDER BY created_at DESC LIMIT 1`
	var request models.ModificationRequest
	if err := r.db.GetContext(ctx, &request, query, studentID, examID, models.RequestStatusPending); err != nil {
		return nil, wrapStoreErr("get pending request", err)
	}
	return &request, nil
}

// List returns requests matching the filter, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.ModificationRequestDetail, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT mr.id, mr.student_id, mr.exam_id, mr.type, mr.reason, mr.preferred_start, mr.preferred_room,
       mr.status, mr.response, mr.responded_at, mr.created_at,
       ex.start_at AS exam_start, m.name AS module_name, ro.name AS room_name
FROM modification_requests mr
JOIN exams ex ON ex.id = mr.exam_id
JOIN modules m ON m.id = ex.module_id
JOIN rooms ro ON ro.id = ex.room_id`)

	conditions := make([]string, 0, 4)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("mr.student_id = $%d", len(args)))
	}
	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		conditions = append(conditions, fmt.Sprintf("mr.exam_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("mr.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("mr.type = $%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		conditions = append(conditions, fmt.Sprintf("mr.created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		conditions = append(conditions, fmt.Sprintf("mr.created_at < $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY mr.created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ModificationRequestDetail
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, wrapStoreErr("list modification requests", err)
	}
	return requests, nil
}

// ResolveParams groups the columns written by an adjudication.
type ResolveParams struct {
	ID          string
	Status      models.RequestStatus
	Response    string
	RespondedAt time.Time
}

// Resolve applies the PENDING -> terminal transition in a single UPDATE
// guarded by a status precondition, so exactly one of two concurrent
// adjudications succeeds. Returns sql.ErrNoRows when no row was in PENDING.
func (r *RequestRepository) Resolve(ctx context.Context, params ResolveParams) error {
	query := fmt.Sprintf(`UPDATE modification_requests
SET status = :status, response = :response, responded_at = :responded_at
WHERE id = :id AND status = '%s'`, models.RequestStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           params.ID,
		"status":       params.Status,
		"response":     params.Response,
		"responded_at": params.RespondedAt,
	})
	if err != nil {
		return wrapStoreErr("resolve modification request", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
