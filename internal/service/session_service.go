package service

import (
	"context"
	"errors"
	"time"

	"resume-anonymizer/internal/anonymizer"
	"resume-anonymizer/internal/domain"

	"github.com/google/uuid"
)

// SessionService stores anonymizer sessions on behalf of their owner.
type SessionService struct {
	repo   domain.SessionRepository
	logger domain.Logger
	now    func() time.Time
}

func NewSessionService(repo domain.SessionRepository, logger domain.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save creates the session when it has no ID, or an ID no record exists for, and updates
// it otherwise. Saving the same session twice never creates a second record.
func (s *SessionService) Save(ctx context.Context, userID string, session *domain.Session, token string) (*domain.Session, error) {
	if session == nil {
		return nil, &domain.ValidationError{Field: "session", Message: "session is required"}
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	saved := *session
	saved.UserID = userID
	saved.UpdatedAt = s.now()
	if saved.Detections == nil {
		saved.Detections = []domain.Detection{}
	}
	if saved.ManualBlurs == nil {
		saved.ManualBlurs = []domain.ManualBlur{}
	}

	if saved.SessionID != "" {
		existing, err := s.repo.GetByID(ctx, saved.SessionID, token)
		switch {
		case err == nil:
			if existing.UserID != userID {
				return nil, domain.ErrAccessDenied
			}
			saved.CreatedAt = existing.CreatedAt
			if err := s.repo.Update(ctx, &saved, token); err != nil {
				return nil, err
			}
			s.logger.Debug("Session updated", "session_id", saved.SessionID, "user_id", userID)
			return &saved, nil
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, err
		}
		// Keep a client-assigned ID only if it is a well-formed UUID.
		if _, err := uuid.Parse(saved.SessionID); err != nil {
			saved.SessionID = ""
		}
	}

	if saved.SessionID == "" {
		saved.SessionID = uuid.NewString()
	}
	saved.CreatedAt = saved.UpdatedAt
	if err := s.repo.Create(ctx, &saved, token); err != nil {
		return nil, err
	}
	s.logger.Info("Session created", "session_id", saved.SessionID, "user_id", userID)
	return &saved, nil
}

func (s *SessionService) GetSession(ctx context.Context, userID, sessionID string, token string) (*domain.Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrAccessDenied
	}
	return session, nil
}

// ListSessions returns the owner's sessions, most recently updated first.
func (s *SessionService) ListSessions(ctx context.Context, userID string, token string) ([]domain.SessionSummary, error) {
	sessions, err := s.repo.ListByUser(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Summary())
	}
	return out, nil
}

func (s *SessionService) DeleteSession(ctx context.Context, userID, sessionID string, token string) error {
	if _, err := s.GetSession(ctx, userID, sessionID, token); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sessionID, token); err != nil {
		return err
	}
	s.logger.Info("Session deleted", "session_id", sessionID, "user_id", userID)
	return nil
}

// StoreFor adapts the service to the editor's persistence bridge for one caller.
func (s *SessionService) StoreFor(userID, token string) anonymizer.SessionStore {
	return &userSessionStore{service: s, userID: userID, token: token}
}

type userSessionStore struct {
	service *SessionService
	userID  string
	token   string
}

func (u *userSessionStore) Save(ctx context.Context, session *domain.Session) (string, error) {
	saved, err := u.service.Save(ctx, u.userID, session, u.token)
	if err != nil {
		return "", err
	}
	return saved.SessionID, nil
}
