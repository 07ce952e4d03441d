package domain

import (
	"context"
	"io"
)

// SessionRepository defines persistence operations for anonymizer sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *Session, token string) error
	Update(ctx context.Context, session *Session, token string) error
	GetByID(ctx context.Context, id string, token string) (*Session, error)
	ListByUser(ctx context.Context, userID string, token string) ([]*Session, error)
	Delete(ctx context.Context, id string, token string) error
}

// SessionService defines the use-case operations for sessions.
type SessionService interface {
	// Save creates the session when SessionID is empty or unknown and updates it otherwise.
	Save(ctx context.Context, userID string, session *Session, token string) (*Session, error)
	GetSession(ctx context.Context, userID, sessionID string, token string) (*Session, error)
	ListSessions(ctx context.Context, userID string, token string) ([]SessionSummary, error)
	DeleteSession(ctx context.Context, userID, sessionID string, token string) error
}

// PIIDetector is the remote PII service.
type PIIDetector interface {
	DetectPII(ctx context.Context, filename string, file io.Reader) (*DetectionResult, error)
	GenerateAnonymizedPDF(ctx context.Context, req *AnonymizeRequest) ([]byte, error)
}

// StorageService stores original uploads and returns a URL they can be fetched from.
type StorageService interface {
	Upload(ctx context.Context, path string, file io.Reader, token string) (string, error)
}
