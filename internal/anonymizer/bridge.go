package anonymizer

import (
	"context"
	"time"

	"resume-anonymizer/internal/domain"
)

// SessionStore persists a session snapshot. Save creates the record when SessionID is
// empty and updates it otherwise, returning the record's ID.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session) (string, error)
}

// Trigger names the point in the editing flow at which a save happens.
type Trigger string

const (
	TriggerDetected Trigger = "detected"
	TriggerSave     Trigger = "save"
	TriggerDownload Trigger = "download"
	TriggerShare    Trigger = "share"
	TriggerReset    Trigger = "reset"
	TriggerUnload   Trigger = "unload"
	TriggerIdle     Trigger = "idle"
)

// unloadSaveTimeout bounds a detached save so it cannot outlive shutdown indefinitely.
const unloadSaveTimeout = 10 * time.Second

// Bridge writes editor state to a SessionStore. Failures are logged and swallowed so the
// action that triggered the save always proceeds on the in-memory state. Saves are not
// serialised: two saves in flight race and whichever resolves last defines the stored state.
type Bridge struct {
	store   SessionStore
	logger  domain.Logger
	observe func(trigger Trigger, err error)
}

func NewBridge(store SessionStore, logger domain.Logger) *Bridge {
	return &Bridge{store: store, logger: logger}
}

// OnSave registers fn to be called after every save attempt.
func (b *Bridge) OnSave(fn func(trigger Trigger, err error)) *Bridge {
	b.observe = fn
	return b
}

// Checkpoint saves the editor and waits for the result. On the first successful save the
// assigned ID is recorded on the editor. It returns the editor's session ID, which is empty
// if the session has never been saved, and the save error. The error is already logged, so
// callers that proceed on the in-memory state may ignore it.
func (b *Bridge) Checkpoint(ctx context.Context, e *Editor, trigger Trigger) (string, error) {
	if !e.Loaded() {
		return "", domain.ErrEditorNotOpen
	}
	id, err := b.save(ctx, e.Snapshot(), trigger)
	if err == nil && e.SessionID() == "" {
		e.SetSessionID(id)
	}
	return e.SessionID(), err
}

// Detach snapshots the editor and saves it in the background without waiting, as done
// when the editor is about to disappear. The returned channel yields the saved ID, or
// an empty string on failure, and is then closed.
func (b *Bridge) Detach(ctx context.Context, e *Editor, trigger Trigger) <-chan string {
	done := make(chan string, 1)
	if !e.Loaded() {
		close(done)
		return done
	}
	snapshot := e.Snapshot()
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		saveCtx, cancel := context.WithTimeout(ctx, unloadSaveTimeout)
		defer cancel()
		id, err := b.save(saveCtx, snapshot, trigger)
		if err != nil {
			id = ""
		}
		done <- id
	}()
	return done
}

func (b *Bridge) save(ctx context.Context, snapshot *domain.Session, trigger Trigger) (string, error) {
	id, err := b.store.Save(ctx, snapshot)
	if b.observe != nil {
		b.observe(trigger, err)
	}
	if err != nil {
		b.logger.Error("Session save failed", err,
			"trigger", string(trigger),
			"session_id", snapshot.SessionID,
		)
		return "", err
	}
	b.logger.Debug("Session saved", "trigger", string(trigger), "session_id", id)
	return id, nil
}
