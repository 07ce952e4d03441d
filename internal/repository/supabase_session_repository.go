package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"resume-anonymizer/internal/domain"

	"github.com/supabase-community/postgrest-go"
)

const sessionsTable = "anonymizer_sessions"

// SupabaseSessionRepository implements domain.SessionRepository on a Supabase table.
// Detections and manual blurs are stored as jsonb columns.
type SupabaseSessionRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewSupabaseSessionRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseSessionRepository {
	return &SupabaseSessionRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *SupabaseSessionRepository) Create(ctx context.Context, session *domain.Session, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	row := sessionToRow(session)
	row["id"] = session.SessionID
	row["user_id"] = session.UserID
	row["created_at"] = session.CreatedAt.Format(time.RFC3339Nano)

	_, _, err = client.From(sessionsTable).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SupabaseSessionRepository) Update(ctx context.Context, session *domain.Session, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	// Request "representation" so an update that matched nothing can be told apart.
	data, _, err := client.From(sessionsTable).
		Update(sessionToRow(session), "representation", "").
		Eq("id", session.SessionID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SupabaseSessionRepository) GetByID(ctx context.Context, id string, token string) (*domain.Session, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(sessionsTable).
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return mapToSession(rows[0])
}

func (r *SupabaseSessionRepository) ListByUser(ctx context.Context, userID string, token string) ([]*domain.Session, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(sessionsTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	sessions := make([]*domain.Session, 0, len(rows))
	for _, row := range rows {
		session, err := mapToSession(row)
		if err != nil {
			r.logger.Warn("Skipping malformed session row", "id", getString(row, "id"), "error", err.Error())
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *SupabaseSessionRepository) Delete(ctx context.Context, id string, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}
	if client == nil {
		return fmt.Errorf("supabase client not initialized")
	}

	_, _, err = client.From(sessionsTable).
		Delete("", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// sessionToRow holds the columns that change on every save.
func sessionToRow(session *domain.Session) map[string]interface{} {
	detections := make([]domain.Detection, len(session.Detections))
	for i, d := range session.Detections {
		d.Text = sanitizeText(d.Text)
		detections[i] = d
	}
	blurs := session.ManualBlurs
	if blurs == nil {
		blurs = []domain.ManualBlur{}
	}

	return map[string]interface{}{
		"file_id":      session.FileID,
		"filename":     sanitizeText(session.Filename),
		"original_url": session.OriginalURL,
		"detections":   detections,
		"manual_blurs": blurs,
		"num_pages":    session.NumPages,
		"updated_at":   session.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToSession(data map[string]interface{}) (*domain.Session, error) {
	s := &domain.Session{
		SessionID:   getString(data, "id"),
		UserID:      getString(data, "user_id"),
		FileID:      getString(data, "file_id"),
		Filename:    getString(data, "filename"),
		OriginalURL: getString(data, "original_url"),
		NumPages:    getInt(data, "num_pages"),
		CreatedAt:   getTime(data, "created_at"),
		UpdatedAt:   getTime(data, "updated_at"),
	}

	if err := decodeJSONField(data, "detections", &s.Detections); err != nil {
		return nil, fmt.Errorf("detections: %w", err)
	}
	if err := decodeJSONField(data, "manual_blurs", &s.ManualBlurs); err != nil {
		return nil, fmt.Errorf("manual_blurs: %w", err)
	}
	if s.Detections == nil {
		s.Detections = []domain.Detection{}
	}
	if s.ManualBlurs == nil {
		s.ManualBlurs = []domain.ManualBlur{}
	}
	return s, nil
}

// decodeJSONField converts a jsonb column, already decoded into generic values, into out.
// PostgREST may also return jsonb as a JSON-encoded string.
func decodeJSONField(data map[string]interface{}, key string, out interface{}) error {
	val, ok := data[key]
	if !ok || val == nil {
		return nil
	}
	if str, ok := val.(string); ok {
		return json.Unmarshal([]byte(str), out)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok && val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	if val, ok := data[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		}
	}
	return 0
}

func getTime(data map[string]interface{}, key string) time.Time {
	raw := getString(data, key)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Time{}
}

var reControl = regexp.MustCompile(`[\x00]`)

// sanitizeText removes characters that PostgreSQL rejects in text fields (notably NUL bytes).
func sanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = reControl.ReplaceAllString(s, "")
	// Also remove escaped unicode NUL sequences that can appear in some extracted content.
	s = strings.ReplaceAll(s, "\\u0000", "")
	return s
}
