package persistence

import (
	"context"
	"errors"

	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
	"github.com/jackc/pgx/v5"
)

type SessionLinkPGStore struct {
	pool pgBeginner
}

func NewSessionLinkPGStore(pool pgBeginner) ports.SessionLinkStore {
	return &SessionLinkPGStore{pool: pool}
}

func (s *SessionLinkPGStore) GetByUserAndQuiz(ctx context.Context, userID, quizID int64) (types.SessionLink, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.SessionLink{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var link types.SessionLink
	err = tx.QueryRow(ctx, `
	SELECT user_id, quiz_id, module_id, url, issued_at, lifetime_seconds
	FROM proctoring_session_links
	WHERE user_id = $1 AND quiz_id = $2
	`, userID, quizID).Scan(
		&link.UserID,
		&link.QuizID,
		&link.ModuleID,
		&link.URL,
		&link.IssuedAt,
		&link.LifetimeSeconds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.SessionLink{}, false, nil
		}
		return types.SessionLink{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.SessionLink{}, false, err
	}
	return link, true, nil
}

func (s *SessionLinkPGStore) Insert(ctx context.Context, link types.SessionLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_, err = tx.Exec(ctx, `
	INSERT INTO proctoring_session_links (user_id, quiz_id, module_id, url, issued_at, lifetime_seconds)
	VALUES ($1, $2, $3, $4, $5, $6)
	`, link.UserID, link.QuizID, link.ModuleID, link.URL, link.IssuedAt, link.LifetimeSeconds)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *SessionLinkPGStore) DeleteForUser(ctx context.Context, userID int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `DELETE FROM proctoring_session_links WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
