package models

import "time"

// RequestType enumerates supported modification request categories.
type RequestType string

const (
	RequestTypeReschedule RequestType = "RESCHEDULE"
	RequestTypeRoomChange RequestType = "ROOM_CHANGE"
	RequestTypeOther      RequestType = "OTHER"
)

// RequestStatus captures workflow states for modification requests.
// PENDING is the only non-terminal state.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusAccepted  RequestStatus = "ACCEPTED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusProcessed RequestStatus = "PROCESSED"
)

// Terminal reports whether the status admits no further transition.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusRejected || s == RequestStatusProcessed
}

// ModificationRequest is a student-initiated, administration-adjudicated
// request to change an exam's time or room. Rows are never deleted, only
// status-transitioned, to preserve the audit trail.
type ModificationRequest struct {
	ID             string        `db:"id" json:"id"`
	StudentID      string        `db:"student_id" json:"student_id"`
	ExamID         string        `db:"exam_id" json:"exam_id"`
	Type           RequestType   `db:"type" json:"type"`
	Reason         string        `db:"reason" json:"reason"`
	PreferredStart *time.Time    `db:"preferred_start" json:"preferred_start,omitempty"`
	PreferredRoom  *string       `db:"preferred_room" json:"preferred_room,omitempty"`
	Status         RequestStatus `db:"status" json:"status"`
	Response       *string       `db:"response" json:"response,omitempty"`
	RespondedAt    *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// ModificationRequestDetail enriches a request with exam and module info.
type ModificationRequestDetail struct {
	ModificationRequest
	ExamStart  time.Time `db:"exam_start" json:"exam_start"`
	ModuleName string    `db:"module_name" json:"module_name"`
	RoomName   string    `db:"room_name" json:"room_name"`
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	StudentID   string
	ExamID      string
	Status      []RequestStatus
	Type        RequestType
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}
