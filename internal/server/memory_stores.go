package server

import (
	"context"
	"sync"

	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
)

type settingsMemoryStore struct {
	mu     sync.Mutex
	byQuiz map[int64]types.ProctoringSettings
}

func newSettingsMemoryStore() ports.SettingsStore {
	return &settingsMemoryStore{byQuiz: make(map[int64]types.ProctoringSettings)}
}

func (s *settingsMemoryStore) GetByQuizID(_ context.Context, quizID int64) (types.ProctoringSettings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byQuiz[quizID]
	return rec, ok, nil
}

func (s *settingsMemoryStore) Upsert(_ context.Context, rec types.ProctoringSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byQuiz[rec.QuizID] = rec
	return nil
}

func (s *settingsMemoryStore) DeleteByQuizID(_ context.Context, quizID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byQuiz, quizID)
	return nil
}

type sessionLinkMemoryStore struct {
	mu    sync.Mutex
	links []types.SessionLink
}

func newSessionLinkMemoryStore() ports.SessionLinkStore {
	return &sessionLinkMemoryStore{}
}

func (s *sessionLinkMemoryStore) GetByUserAndQuiz(_ context.Context, userID, quizID int64) (types.SessionLink, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.UserID == userID && l.QuizID == quizID {
			return l, true, nil
		}
	}
	return types.SessionLink{}, false, nil
}

func (s *sessionLinkMemoryStore) Insert(_ context.Context, link types.SessionLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, link)
	return nil
}

func (s *sessionLinkMemoryStore) DeleteForUser(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.links[:0]
	var removed int64
	for _, l := range s.links {
		if l.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	s.links = kept
	return removed, nil
}
