package dto

import (
	"time"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

// ReportRequest captures POST /reports payload. From/To bound request-log
// reports by creation date and are ignored for conflict reports.
type ReportRequest struct {
	Type      models.ReportType   `json:"type" validate:"required,oneof=conflicts requests"`
	StudentID *string             `json:"studentId,omitempty"`
	Format    models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	From      *time.Time          `json:"from,omitempty"`
	To        *time.Time          `json:"to,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
