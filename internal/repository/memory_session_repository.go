package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"resume-anonymizer/internal/domain"
)

// MemorySessionRepository keeps sessions in process. It is used when Supabase is
// not configured and in tests. Sessions are deep-copied on the way in and out.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.Session, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.SessionID] = cloneSession(session)
	return nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, session *domain.Session, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.sessions[session.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	updated := cloneSession(session)
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	r.sessions[session.SessionID] = updated
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id string, token string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (r *MemorySessionRepository) ListByUser(ctx context.Context, userID string, token string) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Session, 0)
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func cloneSession(s *domain.Session) *domain.Session {
	var out domain.Session
	data, err := json.Marshal(s)
	if err != nil {
		c := *s
		return &c
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c := *s
		return &c
	}
	return &out
}
