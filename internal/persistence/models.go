package persistence

import "time"

// User represents a platform account: a client, an interpreter, or an admin.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// AuthSession represents an authenticated session issued to a user. The ID
// doubles as the JWT identifier so tokens can be revoked server-side.
type AuthSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
