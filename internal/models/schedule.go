package models

import "time"

// ScheduleEntry is the ephemeral per-student view of one exam, built fresh
// for each conflict computation and never persisted.
type ScheduleEntry struct {
	ExamID     string    `json:"exam_id"`
	ModuleID   string    `json:"module_id"`
	ModuleName string    `json:"module_name"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	RoomID     string    `json:"room_id"`
	RoomName   string    `json:"room_name"`
}

// ConflictType enumerates detectable scheduling incompatibilities.
type ConflictType string

const (
	ConflictTypeOverlap    ConflictType = "OVERLAP"
	ConflictTypeBackToBack ConflictType = "BACK_TO_BACK_DIFFERENT_ROOMS"
	ConflictTypeTooManyDay ConflictType = "TOO_MANY_PER_DAY"
)

// Severity is an ordinal classification of how urgently a conflict must be
// resolved.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Conflict is a detected relationship between two or more schedule entries
// of the same student. Conflicts are recomputed on demand, never stored.
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity Severity     `json:"severity"`
	ExamIDs  []string     `json:"exam_ids"`
	Detail   string       `json:"detail"`
	OccursAt time.Time    `json:"occurs_at"`
}

// CandidateSlot is a proposed (time, room) replacement for a contested exam.
type CandidateSlot struct {
	Start    time.Time `json:"start"`
	RoomID   string    `json:"room_id"`
	RoomName string    `json:"room_name"`
}
