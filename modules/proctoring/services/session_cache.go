package services

import (
	"context"
	"time"

	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
)

// SessionLinkCache is a write-through cache of issued vendor session URLs
// backed by the session link store. Staleness is decided entirely at read
// time; there is no background sweep.
type SessionLinkCache struct {
	store ports.SessionLinkStore
	now   func() time.Time
}

func NewSessionLinkCache(store ports.SessionLinkStore) *SessionLinkCache {
	return &SessionLinkCache{store: store, now: time.Now}
}

// Get returns the cached link for (user, quiz) unless it is absent or
// expired. Expired rows are left in place; a later Put supersedes them.
func (c *SessionLinkCache) Get(ctx context.Context, userID int64, quizID int64) (types.SessionLink, bool, error) {
	link, ok, err := c.store.GetByUserAndQuiz(ctx, userID, quizID)
	if err != nil {
		return types.SessionLink{}, false, err
	}
	if !ok || link.Expired(c.now()) {
		return types.SessionLink{}, false, nil
	}
	return link, true, nil
}

// Put records a freshly issued link. Every existing link for the user is
// removed first, whatever quiz it belongs to: one live session per user.
func (c *SessionLinkCache) Put(ctx context.Context, userID int64, quizID int64, moduleID int64, url string, lifetimeSeconds int64) (types.SessionLink, error) {
	if _, err := c.store.DeleteForUser(ctx, userID); err != nil {
		return types.SessionLink{}, err
	}
	link := types.SessionLink{
		UserID:          userID,
		QuizID:          quizID,
		ModuleID:        moduleID,
		URL:             url,
		IssuedAt:        c.now(),
		LifetimeSeconds: lifetimeSeconds,
	}
	if err := c.store.Insert(ctx, link); err != nil {
		return types.SessionLink{}, err
	}
	return link, nil
}
