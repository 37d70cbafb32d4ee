package domain

import "time"

// AuthFlow names one of the authentication flows.
type AuthFlow string

const (
	FlowRegister  AuthFlow = "register"
	FlowLogin     AuthFlow = "login"
	FlowVerify2FA AuthFlow = "verify_2fa"
)

// Outcome labels used by audit events and metrics.
const (
	OutcomeSuccess            = "success"
	OutcomeMissingField       = "missing_field"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeDuplicate          = "duplicate"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeUnauthenticated    = "unauthenticated"
	OutcomeInvalidCode        = "invalid_code"
	OutcomeUserNotFound       = "user_not_found"
	OutcomeError              = "error"
)

// AuthEvent is an audit record of a single flow attempt. Subject is the
// email for register/login and the user id for 2FA verification.
type AuthEvent struct {
	Flow      AuthFlow
	Outcome   string
	Subject   string
	UserID    string
	RequestID string
	Timestamp time.Time
}
