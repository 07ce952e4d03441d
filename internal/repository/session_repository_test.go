package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"resume-anonymizer/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

func sampleSession(id, userID string, updated time.Time) *domain.Session {
	replacement := "Jane Roe"
	return &domain.Session{
		SessionID: id,
		UserID:    userID,
		FileID:    "file-" + id,
		Filename:  "resume.pdf",
		Detections: []domain.Detection{
			{ID: "d1", Type: domain.PIITypeName, Text: "John Doe", Page: 0, BBox: domain.BoundingBox{X: 10, Y: 10, Width: 80, Height: 12}, Confidence: 0.98, Blurred: true, ReplacementText: &replacement},
		},
		ManualBlurs: []domain.ManualBlur{{ID: "m1", Page: 0, BBox: domain.BoundingBox{X: 5, Y: 5, Width: 20, Height: 20}}},
		NumPages:    1,
		CreatedAt:   updated,
		UpdatedAt:   updated,
	}
}

func TestMapToSession(t *testing.T) {
	row := map[string]interface{}{
		"id":           "s1",
		"user_id":      "u1",
		"file_id":      "f1",
		"filename":     "cv.pdf",
		"original_url": "https://storage.example.com/cv.pdf",
		"num_pages":    float64(2),
		"created_at":   "2025-03-01T10:00:00.123456+00:00",
		"updated_at":   "2025-03-01T11:00:00Z",
		"detections": []interface{}{
			map[string]interface{}{
				"id": "d1", "type": "email", "text": "a@b.co", "page": float64(1),
				"bbox":    map[string]interface{}{"x": 1.5, "y": 2.0, "width": 30.0, "height": 8.0},
				"blurred": false, "confidence": 0.9,
			},
		},
		"manual_blurs": `[{"id":"m1","page":0,"bbox":{"x":0,"y":0,"width":10,"height":10}}]`,
	}

	s, err := mapToSession(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SessionID != "s1" || s.UserID != "u1" || s.NumPages != 2 {
		t.Fatalf("unexpected scalar fields: %+v", s)
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.Hour() != 11 {
		t.Fatalf("timestamps not parsed: %v %v", s.CreatedAt, s.UpdatedAt)
	}
	if len(s.Detections) != 1 || s.Detections[0].Type != domain.PIITypeEmail || s.Detections[0].BBox.X != 1.5 || s.Detections[0].Blurred {
		t.Fatalf("unexpected detections: %+v", s.Detections)
	}
	if len(s.ManualBlurs) != 1 || s.ManualBlurs[0].BBox.Width != 10 {
		t.Fatalf("unexpected manual blurs: %+v", s.ManualBlurs)
	}
}

func TestMapToSession_NullCollections(t *testing.T) {
	s, err := mapToSession(map[string]interface{}{"id": "s1", "detections": nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Detections == nil || s.ManualBlurs == nil {
		t.Fatalf("expected empty slices, got %+v", s)
	}

	if _, err := mapToSession(map[string]interface{}{"detections": "not json"}); err == nil {
		t.Fatalf("expected error for malformed detections")
	}
}

func TestSessionToRow_SanitizesText(t *testing.T) {
	s := sampleSession("s1", "u1", time.Now())
	s.Filename = "cv\x00.pdf"
	s.Detections[0].Text = "John\x00Doe"

	row := sessionToRow(s)
	if row["filename"] != "cv.pdf" {
		t.Fatalf("expected NUL stripped from filename, got %q", row["filename"])
	}
	detections := row["detections"].([]domain.Detection)
	if detections[0].Text != "JohnDoe" {
		t.Fatalf("expected NUL stripped from text, got %q", detections[0].Text)
	}
	if s.Detections[0].Text != "John\x00Doe" {
		t.Fatalf("sanitizing must not mutate the session")
	}
	if _, ok := row["user_id"]; ok {
		t.Fatalf("update row must not carry the owner")
	}
}

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	older := sampleSession("s1", "u1", base)
	newer := sampleSession("s2", "u1", base.Add(time.Hour))
	other := sampleSession("s3", "u2", base)
	for _, s := range []*domain.Session{older, newer, other} {
		if err := repo.Create(ctx, s, ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// Stored copies are isolated from the caller.
	older.Detections[0].Blurred = false
	got, err := repo.GetByID(ctx, "s1", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Detections[0].Blurred {
		t.Fatalf("repository shares memory with caller")
	}

	list, _ := repo.ListByUser(ctx, "u1", "")
	if len(list) != 2 || list[0].SessionID != "s2" {
		t.Fatalf("expected newest first for u1, got %+v", list)
	}

	update := sampleSession("s1", "someone-else", base.Add(2*time.Hour))
	if err := repo.Update(ctx, update, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetByID(ctx, "s1", "")
	if got.UserID != "u1" || !got.CreatedAt.Equal(base) {
		t.Fatalf("update must keep owner and creation time, got %+v", got)
	}

	if err := repo.Update(ctx, sampleSession("missing", "u1", base), ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, "s1", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, "s1", ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestCachedSessionRepository_FallsThroughWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	backing := NewMemorySessionRepository()
	repo := NewCachedSessionRepository(backing, client, time.Minute, nopLogger{})

	s := sampleSession("s1", "u1", time.Now())
	if err := repo.Create(ctx, s, ""); err != nil {
		t.Fatalf("create should succeed without cache: %v", err)
	}
	got, err := repo.GetByID(ctx, "s1", "")
	if err != nil {
		t.Fatalf("get should read through: %v", err)
	}
	if got.FileID != "file-s1" {
		t.Fatalf("unexpected session %+v", got)
	}
	if err := repo.Update(ctx, sampleSession("missing", "u1", time.Now()), ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected backing error to surface, got %v", err)
	}
	if err := repo.Delete(ctx, "s1", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, "s1", ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func newCachedRepository(t *testing.T) (*CachedSessionRepository, *MemorySessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := NewMemorySessionRepository()
	return NewCachedSessionRepository(backing, client, time.Minute, nopLogger{}), backing, mr
}

func TestCachedSessionRepository_ReadThroughAndHit(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepository(t)

	if err := backing.Create(ctx, sampleSession("s1", "u1", time.Now()), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if mr.Exists(sessionKey("s1")) {
		t.Fatalf("expected nothing cached before the first read")
	}

	if _, err := repo.GetByID(ctx, "s1", ""); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists(sessionKey("s1")) {
		t.Fatalf("expected a miss to populate the cache")
	}
	if ttl := mr.TTL(sessionKey("s1")); ttl != time.Minute {
		t.Fatalf("expected a one minute TTL, got %v", ttl)
	}

	// A hit is served without touching the backing repository.
	if err := backing.Delete(ctx, "s1", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := repo.GetByID(ctx, "s1", "")
	if err != nil || got.FileID != "file-s1" {
		t.Fatalf("expected a cache hit, got %+v, %v", got, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetByID(ctx, "s1", ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected the expired entry to read through, got %v", err)
	}
}

func TestCachedSessionRepository_UpdateEvicts(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepository(t)
	base := time.Now()

	if err := repo.Create(ctx, sampleSession("s1", "u1", base), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.GetByID(ctx, "s1", ""); err != nil {
		t.Fatalf("get: %v", err)
	}

	first := sampleSession("s1", "u1", base.Add(time.Minute))
	first.Filename = "first.pdf"
	second := sampleSession("s1", "u1", base.Add(2*time.Minute))
	second.Filename = "second.pdf"

	// Whatever order the writes land in, the cache never holds a copy the database lacks.
	if err := repo.Update(ctx, second, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(sessionKey("s1")) {
		t.Fatalf("expected update to evict the cached entry")
	}
	if err := repo.Update(ctx, first, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetByID(ctx, "s1", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Filename != "first.pdf" {
		t.Fatalf("expected the last write to be served, got %s", got.Filename)
	}

	if err := repo.Update(ctx, sampleSession("missing", "u1", base), ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCachedSessionRepository_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	repo, backing, mr := newCachedRepository(t)

	if err := backing.Create(ctx, sampleSession("s1", "u1", time.Now()), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mr.Set(sessionKey("s1"), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := repo.GetByID(ctx, "s1", "")
	if err != nil || got.FileID != "file-s1" {
		t.Fatalf("expected a read through past the corrupt entry, got %+v, %v", got, err)
	}
	raw, err := mr.Get(sessionKey("s1"))
	if err != nil {
		t.Fatalf("expected the entry to be repopulated: %v", err)
	}
	if raw == "{not json" {
		t.Fatalf("expected the corrupt entry to be replaced")
	}
}

func TestCachedSessionRepository_DeleteEvicts(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepository(t)

	if err := repo.Create(ctx, sampleSession("s1", "u1", time.Now()), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists(sessionKey("s1")) {
		t.Fatalf("expected create to cache the new session")
	}
	if err := repo.Delete(ctx, "s1", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(sessionKey("s1")) {
		t.Fatalf("expected delete to evict")
	}
	if _, err := repo.GetByID(ctx, "s1", ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
