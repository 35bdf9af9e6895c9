package types

import "time"

// SessionLink is one issued vendor session URL for a (user, quiz) pair.
// The store keeps at most one live link per user across all quizzes.
type SessionLink struct {
	UserID          int64
	QuizID          int64
	ModuleID        int64
	URL             string
	IssuedAt        time.Time
	LifetimeSeconds int64
}

// Expired reports whether the link is stale at now. Lifetime 0 means the
// link never expires. Expiry is decided only at read time; nothing sweeps
// the store.
func (l SessionLink) Expired(now time.Time) bool {
	if l.LifetimeSeconds <= 0 {
		return false
	}
	return now.After(l.IssuedAt.Add(time.Duration(l.LifetimeSeconds) * time.Second))
}
