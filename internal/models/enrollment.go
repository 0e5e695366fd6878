package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Enrollment captures a student's registration to a module.
// Enrollments are created by the registration subsystem and read-only here.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ModuleID   string           `db:"module_id" json:"module_id"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status     EnrollmentStatus `db:"status" json:"status"`
}

// EnrollmentDetail enriches Enrollment with module info.
type EnrollmentDetail struct {
	Enrollment
	ModuleCode string `db:"module_code" json:"module_code"`
	ModuleName string `db:"module_name" json:"module_name"`
	Semester   int    `db:"semester" json:"semester"`
	Credits    int    `db:"credits" json:"credits"`
}
