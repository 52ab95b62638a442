package auth

import "time"

// Account is the credential view of a principal used by the login flow.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Category     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Category  string    `json:"category"`
}
