package dto

import (
	"time"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

// CreateModificationRequest is the payload for submitting a new
// modification request.
type CreateModificationRequest struct {
	ExamID         string             `json:"examId" validate:"required"`
	Type           models.RequestType `json:"type" validate:"required,oneof=RESCHEDULE ROOM_CHANGE OTHER"`
	Reason         string             `json:"reason" validate:"required"`
	PreferredStart *time.Time         `json:"preferredStart,omitempty"`
	PreferredRoom  *string            `json:"preferredRoom,omitempty"`
}

// ResolveModificationRequest captures the adjudicator decision.
type ResolveModificationRequest struct {
	Decision models.RequestStatus `json:"decision" validate:"required,oneof=ACCEPTED REJECTED PROCESSED"`
	Response string               `json:"response" validate:"required"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	StudentID string
	ExamID    string
	Status    []models.RequestStatus
	Type      models.RequestType
	Limit     int
	Offset    int
}
