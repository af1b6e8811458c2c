package domain

import "time"

// Role enumerates who is acting on a ticket.
type Role string

const (
	RoleCustomer   Role = "Customer"
	RoleTechnician Role = "Technician"
	RoleManager    Role = "Manager"
	RoleAdmin      Role = "Admin"
	RoleEmployee   Role = "Employee"
)

// Roles lists every known role.
var Roles = []Role{RoleCustomer, RoleTechnician, RoleManager, RoleAdmin, RoleEmployee}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Staff reports whether r is an internal (non-customer) role.
func (r Role) Staff() bool {
	return r.Valid() && r != RoleCustomer
}

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is an account that can authenticate against the service.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	Specialty    *string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated party performing an operation.
type Actor struct {
	UserID string
	Role   Role
}
