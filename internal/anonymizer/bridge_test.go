package anonymizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"resume-anonymizer/internal/domain"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *mockLogger) Info(msg string, fields ...interface{})  {}
func (l *mockLogger) Debug(msg string, fields ...interface{}) {}
func (l *mockLogger) Warn(msg string, fields ...interface{})  {}
func (l *mockLogger) Error(msg string, err error, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg+": "+err.Error())
}

// memoryStore assigns sequential IDs and keeps the last written snapshot per ID.
type memoryStore struct {
	mu       sync.Mutex
	next     int
	sessions map[string]*domain.Session
	err      error
	calls    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*domain.Session)}
}

func (s *memoryStore) Save(ctx context.Context, session *domain.Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	id := session.SessionID
	if id == "" {
		s.next++
		id = fmt.Sprintf("session-%d", s.next)
	}
	stored := *session
	stored.SessionID = id
	s.sessions[id] = &stored
	return id, nil
}

func TestBridge_FirstCheckpointCreatesThenUpdates(t *testing.T) {
	store := newMemoryStore()
	bridge := NewBridge(store, &mockLogger{})

	session := testSession()
	session.SessionID = ""
	e := NewEditor(session)

	id, err := bridge.Checkpoint(context.Background(), e, TriggerDetected)
	if err != nil {
		t.Fatalf("unexpected save error %v", err)
	}
	if id != "session-1" || e.SessionID() != "session-1" {
		t.Fatalf("expected editor to adopt session-1, got %q / %q", id, e.SessionID())
	}

	e.Toggle(0)
	if again, _ := bridge.Checkpoint(context.Background(), e, TriggerSave); again != id {
		t.Fatalf("expected update of %s, got %s", id, again)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("expected a single stored session, got %d", len(store.sessions))
	}
	if store.sessions[id].Detections[0].Blurred {
		t.Fatalf("expected stored session to reflect the toggle")
	}
}

func TestBridge_CheckpointSwallowsFailures(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("network down")
	logger := &mockLogger{}

	var observed []Trigger
	bridge := NewBridge(store, logger).OnSave(func(trigger Trigger, err error) {
		if err != nil {
			observed = append(observed, trigger)
		}
	})

	session := testSession()
	session.SessionID = ""
	e := NewEditor(session)

	id, err := bridge.Checkpoint(context.Background(), e, TriggerDownload)
	if id != "" {
		t.Fatalf("expected no session ID after failed first save, got %q", id)
	}
	if !errors.Is(err, store.err) {
		t.Fatalf("expected the save error to be reported, got %v", err)
	}
	if !e.Loaded() {
		t.Fatalf("expected the editor to keep its in-memory state")
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected the failure to be logged once, got %v", logger.errors)
	}
	if len(observed) != 1 || observed[0] != TriggerDownload {
		t.Fatalf("expected observer to see the failed download save, got %v", observed)
	}
}

func TestBridge_CheckpointReportsFailureForSavedSession(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("network down")
	e := NewEditor(testSession())

	id, err := NewBridge(store, &mockLogger{}).Checkpoint(context.Background(), e, TriggerSave)
	if id != e.SessionID() || id == "" {
		t.Fatalf("expected the existing ID %q, got %q", e.SessionID(), id)
	}
	if err == nil {
		t.Fatalf("expected the failed save to be reported even though the session has an ID")
	}
}

func TestBridge_CheckpointOnDiscardedEditor(t *testing.T) {
	store := newMemoryStore()
	e := NewEditor(testSession())
	e.Discard()

	id, err := NewBridge(store, &mockLogger{}).Checkpoint(context.Background(), e, TriggerReset)
	if id != "" || !errors.Is(err, domain.ErrEditorNotOpen) {
		t.Fatalf("expected empty ID and ErrEditorNotOpen, got %q, %v", id, err)
	}
	if store.calls != 0 {
		t.Fatalf("expected no save for a discarded editor")
	}
}

func TestBridge_DetachSavesSnapshotAtCallTime(t *testing.T) {
	store := newMemoryStore()
	bridge := NewBridge(store, &mockLogger{})
	e := NewEditor(testSession())

	done := bridge.Detach(context.Background(), e, TriggerUnload)
	e.Discard()

	if id := <-done; id != "session-1" {
		t.Fatalf("expected session-1, got %q", id)
	}
	if got := store.sessions["session-1"]; got == nil || len(got.Detections) != 3 {
		t.Fatalf("expected the snapshot taken before discard to be saved")
	}
}

// gatedStore blocks each save until released, to order completions explicitly.
type gatedStore struct {
	inner   *memoryStore
	started chan string
	gates   map[string]chan struct{}
}

func (s *gatedStore) Save(ctx context.Context, session *domain.Session) (string, error) {
	gate := s.gates[session.Filename]
	s.started <- session.Filename
	<-gate
	return s.inner.Save(ctx, session)
}

func TestBridge_ConcurrentSavesLastResolvedWins(t *testing.T) {
	store := &gatedStore{
		inner:   newMemoryStore(),
		started: make(chan string, 2),
		gates: map[string]chan struct{}{
			"first.pdf":  make(chan struct{}),
			"second.pdf": make(chan struct{}),
		},
	}
	bridge := NewBridge(store, &mockLogger{})

	e := NewEditor(testSession())
	e.Load(&domain.Session{SessionID: "session-1", FileID: "f", Filename: "first.pdf", NumPages: 1})
	first := bridge.Detach(context.Background(), e, TriggerSave)
	<-store.started

	e.Load(&domain.Session{SessionID: "session-1", FileID: "f", Filename: "second.pdf", NumPages: 1})
	second := bridge.Detach(context.Background(), e, TriggerDownload)
	<-store.started

	close(store.gates["second.pdf"])
	<-second
	close(store.gates["first.pdf"])
	<-first

	if got := store.inner.sessions["session-1"].Filename; got != "first.pdf" {
		t.Fatalf("expected the save that resolved last to win, got %s", got)
	}
}
