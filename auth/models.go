package auth

import "time"

type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// CanModerate reports whether the role grants access to moderation tools.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Principal is the acting identity attached to a request once its session
// token has been verified. Business logic receives it explicitly.
type Principal struct {
	ID   string
	Role Role
}

// User is the domain representation of a registered account.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the identity carried by sessions issued for the user.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
