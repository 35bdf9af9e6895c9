package ports

import (
	"context"

	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
)

type SettingsStore interface {
	GetByQuizID(ctx context.Context, quizID int64) (types.ProctoringSettings, bool, error)
	Upsert(ctx context.Context, settings types.ProctoringSettings) error
	DeleteByQuizID(ctx context.Context, quizID int64) error
}

type SessionLinkStore interface {
	GetByUserAndQuiz(ctx context.Context, userID int64, quizID int64) (types.SessionLink, bool, error)
	Insert(ctx context.Context, link types.SessionLink) error
	DeleteForUser(ctx context.Context, userID int64) (int64, error)
}
