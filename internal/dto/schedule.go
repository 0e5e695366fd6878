package dto

import "github.com/nadir-hamid/fst-exams-api/internal/models"

// ConflictReport groups a student's detected conflicts with the schedule
// they were computed from.
type ConflictReport struct {
	StudentID string                 `json:"student_id"`
	Entries   []models.ScheduleEntry `json:"entries"`
	Conflicts []models.Conflict      `json:"conflicts"`
}

// AlternativesResponse lists candidate replacement slots for one exam.
type AlternativesResponse struct {
	ExamID string                 `json:"exam_id"`
	Slots  []models.CandidateSlot `json:"slots"`
}
