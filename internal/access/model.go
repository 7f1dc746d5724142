package access

import (
	"errors"
	"time"
)

// ActorKind selects which actor table a token or permission check runs
// against. Admins, branches and branch sub-users live in distinct tables
// but share the same session columns.
type ActorKind string

const (
	ActorAdmin   ActorKind = "admin"
	ActorBranch  ActorKind = "branch"
	ActorSubUser ActorKind = "sub_user"
)

// Actor status codes shared by all three actor tables.
const (
	StatusUnverified int16 = 0
	StatusActive     int16 = 1
	StatusSuspended  int16 = 2
)

// Actor is the session snapshot of one actor row.
type Actor struct {
	ID          uint
	Kind        ActorKind
	Status      int16
	LoginToken  *string
	TokenExpiry *time.Time
	Permissions []byte // raw jsonb blob, possibly double-encoded
}

// HasLiveSession reports whether a non-expired token is already stored.
func (a *Actor) HasLiveSession(now time.Time) bool {
	return a.LoginToken != nil && *a.LoginToken != "" &&
		a.TokenExpiry != nil && a.TokenExpiry.After(now)
}

var (
	ErrActorNotFound    = errors.New("actor not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired, please log in again")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyLoggedIn  = errors.New("you are already logged in from another session")
)
