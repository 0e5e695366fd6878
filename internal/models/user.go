package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin          UserRole = "ADMIN"
	RoleStudent        UserRole = "STUDENT"
	RoleProfessor      UserRole = "PROFESSOR"
	RoleDepartmentHead UserRole = "DEPARTMENT_HEAD"
	RoleViceDean       UserRole = "VICE_DEAN"
)

// User represents an application user stored in the users table.
// LinkedID points at the subject the account acts for (the student row for
// STUDENT accounts, the professor row for PROFESSOR accounts).
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	LinkedID     *string    `db:"linked_id" json:"linked_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
