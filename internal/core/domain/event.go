package domain

import "time"

// AuthEventKind classifies an entry of the authentication audit trail.
type AuthEventKind string

const (
	EventRegister       AuthEventKind = "register"
	EventLoginSuccess   AuthEventKind = "login_success"
	EventLoginFailure   AuthEventKind = "login_failure"
	EventLogout         AuthEventKind = "logout"
	EventPasswordChange AuthEventKind = "password_change"
)

// AuthEvent records a single authentication outcome.
type AuthEvent struct {
	Kind       AuthEventKind
	UserID     int64 // 0 when the actor is unknown
	Identifier string
	Reason     string // optional
	IP         string
	Timestamp  time.Time
}
