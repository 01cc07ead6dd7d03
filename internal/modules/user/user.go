package user

import (
	"time"

	"github.com/google/uuid"
)

// Role decides what a principal may edit.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleVenueOwner Role = "venue_owner"
	RoleUnitOwner  Role = "unit_owner"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleVenueOwner || r == RoleUnitOwner
}

// User represents a principal that can log in to the admin panel.
// @Description User information
// @Description with id, email, role, the venue and room it is scoped to, created_at and updated_at
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Role         Role       `json:"role"`
	VenueID      *uuid.UUID `json:"venue_id,omitempty"`
	RoomID       string     `json:"room_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RegisterRequest holds data for creating a user.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	VenueID   string `json:"venue_id,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
}
