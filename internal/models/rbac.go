package models

// RoleUser is the role every registered account starts with. It must already
// exist in storage; registration fails rather than creating it implicitly.
const RoleUser = "user"

type Role struct {
	ID   string
	Name string
}

// Permission is an atomic (resource, action) capability grantable to a role.
type Permission struct {
	ID          string
	Name        string
	Resource    string
	Action      string
	Description string
}
