package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	GivenName    *string
	FamilyName   *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRoles carries the role names aggregated for listing and profile reads.
type UserWithRoles struct {
	User
	Roles []string
}

// Identity is the fixed-shape authenticated principal the auth guard attaches
// to a request. It is built once and never mutated downstream.
type Identity struct {
	ID         string
	Email      string
	GivenName  *string
	FamilyName *string
}

// UserUpdate holds a partial profile update; nil fields keep stored values.
type UserUpdate struct {
	GivenName  *string
	FamilyName *string
	Active     *bool
}
