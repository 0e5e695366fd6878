package models

import "time"

// Module is a course unit students enroll into.
type Module struct {
	ID       string `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	Semester int    `db:"semester" json:"semester"`
	Credits  int    `db:"credits" json:"credits"`
}

// Room is an examination venue.
type Room struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Capacity  int    `db:"capacity" json:"capacity"`
	Available bool   `db:"available" json:"available"`
}

// Exam is one scheduled examination sitting. Exams are owned by the
// scheduling subsystem and read-only here.
type Exam struct {
	ID              string    `db:"id" json:"id"`
	ModuleID        string    `db:"module_id" json:"module_id"`
	StartAt         time.Time `db:"start_at" json:"start_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	RoomID          string    `db:"room_id" json:"room_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// EndAt derives the exclusive end of the exam interval.
func (e Exam) EndAt() time.Time {
	return e.StartAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// ExamDetail enriches Exam with module and room info for display.
type ExamDetail struct {
	Exam
	ModuleCode string `db:"module_code" json:"module_code"`
	ModuleName string `db:"module_name" json:"module_name"`
	RoomName   string `db:"room_name" json:"room_name"`
}

// ExamFilter constrains exam listing queries.
type ExamFilter struct {
	ModuleIDs []string
	RoomID    string
	From      *time.Time
	To        *time.Time
}
