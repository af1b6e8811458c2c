package dto

import "github.com/spec-kit/repair-service/internal/domain"

// StaffCreateRequest payload for admin-provisioned accounts.
type StaffCreateRequest struct {
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	Specialty string      `json:"specialty"`
}
