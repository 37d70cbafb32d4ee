package domain

import "time"

// User is a registered account. PasswordHash and TOTPSecret never leave the
// service: both are excluded from every JSON encoding.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TOTPSecret   string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
