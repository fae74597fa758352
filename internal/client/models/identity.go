// Package models defines client-side data models used by the ticketdesk CLI.
package models

import "time"

// Role is the account role assigned by the backend.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleExecutor Role = "executor"
	RoleCustomer Role = "customer"
)

// Identity is the authenticated user's profile as returned by /api/auth/me.
type Identity struct {
	ID        int64     `json:"id" validate:"gt=0"`
	Email     string    `json:"email" validate:"required,email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role" validate:"oneof=admin executor customer"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the full name, falling back to the email.
func (i *Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	return i.Email
}
