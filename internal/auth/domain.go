package auth

import "time"

// Credential is the sign-in record for a staff account.
type Credential struct {
	UID          string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
