package types

import "time"

// Role is the authorization role attached to a user account.
type Role string

// Supported roles.
const (
	RoleStudent    Role = "student"
	RoleStaff      Role = "staff"
	RoleManagement Role = "management"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleManagement:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, role, residence and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's unique, lower-cased email address used to log in.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level. It is assigned once
	// and never changed through the API.
	Role Role `json:"role" db:"role"`

	// Hostel is the hostel the user lives in or works for.
	Hostel string `json:"hostel" db:"hostel"`

	// Block is the block within the hostel.
	Block string `json:"block" db:"block"`

	// RoomNumber is the user's room, if any.
	RoomNumber string `json:"roomNumber,omitempty" db:"room_number"`

	// Phone is the user's contact number.
	Phone string `json:"phone" db:"phone"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
