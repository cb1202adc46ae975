package models

import "time"

type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionUser is the sessions-users join row the auth guard resolves a token
// into. Expiry is checked live against the clock, never precomputed.
type SessionUser struct {
	UserID     string
	Email      string
	GivenName  *string
	FamilyName *string
	Active     bool
	ExpiresAt  time.Time
}

func (s SessionUser) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func (s SessionUser) Identity() Identity {
	return Identity{
		ID:         s.UserID,
		Email:      s.Email,
		GivenName:  s.GivenName,
		FamilyName: s.FamilyName,
	}
}
