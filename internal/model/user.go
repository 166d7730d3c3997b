package model

import "github.com/shopspring/decimal"

type UserRole string

const (
	RoleUser       UserRole = "user"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super_admin"
)

func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

type User struct {
	ID      int64           `json:"id"`
	Email   string          `json:"email"`
	Name    string          `json:"name"`
	Role    UserRole        `json:"role"`
	Balance decimal.Decimal `json:"balance"`
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID int64
	Role   UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}
