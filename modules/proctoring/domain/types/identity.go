package types

// User is the host platform's view of the attempting user, resolved by
// the caller. This module never looks identities up itself.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Email     string
}

type Quiz struct {
	ID       int64
	ModuleID int64
	Name     string
}
