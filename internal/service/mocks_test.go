package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"resume-anonymizer/internal/domain"

	"github.com/supabase-community/supabase-go"
)

// MockLogger records messages for assertions.
type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		messages: []string{},
	}
}

func (m *MockLogger) record(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, s)
}

func (m *MockLogger) Info(msg string, args ...interface{})  { m.record("INFO: " + msg) }
func (m *MockLogger) Debug(msg string, args ...interface{}) { m.record("DEBUG: " + msg) }
func (m *MockLogger) Warn(msg string, args ...interface{})  { m.record("WARN: " + msg) }

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	m.record("ERROR: " + msg + " - " + err.Error())
}

func (m *MockLogger) Has(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if len(msg) >= len(prefix) && msg[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// MockSupabaseClient for testing
type MockSupabaseClient struct {
	calls int
}

func NewMockSupabaseClient() *MockSupabaseClient {
	return &MockSupabaseClient{}
}

func (m *MockSupabaseClient) Initialize() error {
	return nil
}

func (m *MockSupabaseClient) ValidateToken(token string) (*domain.SupabaseUser, error) {
	m.calls++
	if token == "valid-token" {
		return &domain.SupabaseUser{
			ID:    "user-123",
			Email: "test@example.com",
		}, nil
	}
	if token == "invalid-token" {
		return nil, errors.New("invalid token")
	}
	return nil, errors.New("token validation failed")
}

func (m *MockSupabaseClient) DB() *supabase.Client {
	return nil
}

func (m *MockSupabaseClient) GetClientWithToken(token string) (*supabase.Client, error) {
	return nil, nil
}

// MockSessionRepository is an in-memory repository with injectable failures.
type MockSessionRepository struct {
	mu        sync.Mutex
	sessions  map[string]domain.Session
	creates   int
	updates   int
	failSaves error
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[string]domain.Session)}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves != nil {
		return m.failSaves
	}
	m.creates++
	m.sessions[session.SessionID] = *session
	return nil
}

func (m *MockSessionRepository) Update(ctx context.Context, session *domain.Session, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves != nil {
		return m.failSaves
	}
	if _, ok := m.sessions[session.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	m.updates++
	m.sessions[session.SessionID] = *session
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID string, token string) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			s := s
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionRepository) setFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSaves = err
}

func (m *MockSessionRepository) stored(id string) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// MockPIIDetector returns canned detection results and records PDF requests.
type MockPIIDetector struct {
	result     *domain.DetectionResult
	detectErr  error
	pdf        []byte
	pdfErr     error
	detectCall int
	lastReq    *domain.AnonymizeRequest
}

func (m *MockPIIDetector) DetectPII(ctx context.Context, filename string, file io.Reader) (*domain.DetectionResult, error) {
	m.detectCall++
	if _, err := io.ReadAll(file); err != nil {
		return nil, err
	}
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	result := *m.result
	result.Detections = append([]domain.Detection(nil), m.result.Detections...)
	return &result, nil
}

func (m *MockPIIDetector) GenerateAnonymizedPDF(ctx context.Context, req *domain.AnonymizeRequest) ([]byte, error) {
	m.lastReq = req
	if m.pdfErr != nil {
		return nil, m.pdfErr
	}
	return m.pdf, nil
}

type MockInspector struct {
	pages int
	err   error
}

func (m *MockInspector) Inspect(pdfBytes []byte) (PDFMetadata, error) {
	if m.err != nil {
		return PDFMetadata{}, m.err
	}
	return PDFMetadata{PageCount: m.pages}, nil
}

type MockStorageService struct {
	paths []string
	err   error
}

func (m *MockStorageService) Upload(ctx context.Context, path string, file io.Reader, token string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.paths = append(m.paths, path)
	return "https://storage.example.com/" + path, nil
}
