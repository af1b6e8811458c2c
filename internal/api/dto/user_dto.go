package dto

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// UserRegisterRequest payload for new customers.
type UserRegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string            `json:"id"`
	FullName  string            `json:"full_name"`
	Email     string            `json:"email"`
	Role      domain.Role       `json:"role"`
	Specialty *string           `json:"specialty,omitempty"`
	Status    domain.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
