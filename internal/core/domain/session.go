package domain

import "time"

// AuthStage records how far a bearer has progressed through login.
type AuthStage string

const (
	// StagePassword is carried by tokens minted after the password check;
	// the second factor is still pending.
	StagePassword AuthStage = "password"
	// StageMFA is carried by tokens minted after a successful TOTP check.
	StageMFA AuthStage = "mfa"
)

// Session is the decoded content of a valid bearer token.
type Session struct {
	UserID    string
	Stage     AuthStage
	IssuedAt  time.Time
	ExpiresAt time.Time
}
