package domain

import "time"

// TokenSubject is the minimal user view needed to issue a session token.
type TokenSubject struct {
	UserID int64
	Email  string
	RoleID int64
}

// SubjectOf builds a TokenSubject from a resolved identity.
func SubjectOf(id *ResolvedIdentity) TokenSubject {
	return TokenSubject{UserID: id.ID, Email: id.Email, RoleID: id.RoleID}
}

// TokenClaims is the verified content of a session token.
type TokenClaims struct {
	UserID    int64
	Email     string
	RoleID    int64
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
