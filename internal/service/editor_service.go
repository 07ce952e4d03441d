package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"resume-anonymizer/internal/anonymizer"
	"resume-anonymizer/internal/domain"
	"resume-anonymizer/internal/metrics"
)

// Viewer actions accepted by Navigate.
const (
	ViewerNext     = "next"
	ViewerPrev     = "prev"
	ViewerZoomIn   = "zoom_in"
	ViewerZoomOut  = "zoom_out"
	ViewerSetPage  = "set_page"
	ViewerSetScale = "set_scale"
)

// EditorState is an open editor as returned to clients.
type EditorState struct {
	Session *domain.Session      `json:"session"`
	Page    *anonymizer.PageView `json:"page"`
}

// ToggleResult reports the new flag and every detection index it was applied to.
type ToggleResult struct {
	Blurred  bool  `json:"blurred"`
	Affected []int `json:"affected"`
}

type editorEntry struct {
	mu       sync.Mutex
	userID   string
	token    string // most recent caller token, used for saves on shutdown
	editor   *anonymizer.Editor
	lastUsed time.Time
	closed   bool // removed from the registry; a new entry must be created
}

// EditorService holds one editor per open session. Operations on the same session are
// serialised by the entry's mutex; different sessions proceed independently. Lock order
// is entry, then registry.
type EditorService struct {
	sessions  *SessionService
	detector  domain.PIIDetector
	logger    domain.Logger
	metrics   *metrics.Metrics
	publicURL string
	now       func() time.Time

	mu      sync.Mutex
	editors map[string]*editorEntry

	done     chan struct{}
	stopOnce sync.Once
}

func NewEditorService(
	sessions *SessionService,
	detector domain.PIIDetector,
	publicBaseURL string,
	m *metrics.Metrics,
	logger domain.Logger,
) *EditorService {
	return &EditorService{
		sessions:  sessions,
		detector:  detector,
		logger:    logger,
		metrics:   m,
		publicURL: strings.TrimRight(publicBaseURL, "/"),
		now:       time.Now,
		editors:   make(map[string]*editorEntry),
		done:      make(chan struct{}),
	}
}

func (s *EditorService) bridge(userID, token string) *anonymizer.Bridge {
	return anonymizer.NewBridge(s.sessions.StoreFor(userID, token), s.logger).
		OnSave(func(trigger anonymizer.Trigger, err error) {
			if s.metrics != nil {
				s.metrics.SessionSaves.WithLabelValues(string(trigger), metrics.Outcome(err)).Inc()
			}
		})
}

// Start opens an editor for a freshly detected session and saves it immediately.
// The session must already carry its ID so the editor is addressable even if that
// first save fails.
func (s *EditorService) Start(ctx context.Context, userID string, session *domain.Session, token string) (*EditorState, error) {
	if session.SessionID == "" {
		return nil, &domain.ValidationError{Field: "session_id", Message: "session ID is required"}
	}
	entry := &editorEntry{userID: userID, token: token, editor: anonymizer.NewEditor(session), lastUsed: s.now()}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.register(session.SessionID, entry)

	_, _ = s.bridge(userID, token).Checkpoint(ctx, entry.editor, anonymizer.TriggerDetected)
	return stateOf(entry.editor)
}

// Open loads a stored session into an editor, replacing any editor already open for it.
func (s *EditorService) Open(ctx context.Context, userID, sessionID string, token string) (*EditorState, error) {
	session, err := s.sessions.GetSession(ctx, userID, sessionID, token)
	if err != nil {
		return nil, err
	}

	for {
		s.mu.Lock()
		entry, ok := s.editors[sessionID]
		if !ok {
			entry = &editorEntry{userID: userID, editor: &anonymizer.Editor{}}
			s.editors[sessionID] = entry
			s.trackOpen()
		}
		s.mu.Unlock()

		entry.mu.Lock()
		if entry.closed {
			// Closed between lookup and lock; the next lookup sees a fresh entry.
			entry.mu.Unlock()
			continue
		}
		entry.token = token
		entry.lastUsed = s.now()
		entry.editor.Load(session)
		state, err := stateOf(entry.editor)
		entry.mu.Unlock()

		s.logger.Debug("Editor opened", "session_id", sessionID, "user_id", userID)
		return state, err
	}
}

func (s *EditorService) State(userID, sessionID string) (*EditorState, error) {
	var state *EditorState
	err := s.with(userID, sessionID, "", func(e *anonymizer.Editor) error {
		var err error
		state, err = stateOf(e)
		return err
	})
	return state, err
}

// Toggle flips the detection at index together with every detection overlapping it.
func (s *EditorService) Toggle(userID, sessionID string, index int) (*ToggleResult, error) {
	var result *ToggleResult
	err := s.with(userID, sessionID, "", func(e *anonymizer.Editor) error {
		blurred, affected, err := e.Toggle(index)
		if err != nil {
			return err
		}
		result = &ToggleResult{Blurred: blurred, Affected: affected}
		return nil
	})
	return result, err
}

// SetReplacement sets the text drawn over a blurred detection; empty text clears it.
func (s *EditorService) SetReplacement(userID, sessionID string, index int, text string) error {
	return s.with(userID, sessionID, "", func(e *anonymizer.Editor) error {
		return e.SetReplacement(index, text)
	})
}

func (s *EditorService) SetAllBlurred(userID, sessionID string, blurred bool) error {
	return s.with(userID, sessionID, "", func(e *anonymizer.Editor) error {
		return e.SetAllBlurred(blurred)
	})
}

// ApplySelection converts a finished text selection on the current page into manual blurs.
func (s *EditorService) ApplySelection(userID, sessionID string, rects []anonymizer.ClientRect, origin anonymizer.Point) ([]domain.ManualBlur, error) {
	var added []domain.ManualBlur
	err := s.with(userID, sessionID, "", func(e *anonymizer.Editor) error {
		if err := e.BeginSelection(); err != nil {
			return err
		}
		var err error
		added, err = e.ApplySelection(rects, origin)
		return err
	})
	return added, err
}

func (s *EditorService) RemoveManualBlur(userID, sessionID, blurID string) error {
	return s.with(userID, sessionID, "", func(e *anonymizer.Editor) error {
		return e.RemoveManualBlur(blurID)
	})
}

// Navigate applies a viewer action. value is the target page or scale for set actions.
func (s *EditorService) Navigate(userID, sessionID, action string, value float64) (*anonymizer.PageView, error) {
	var view *anonymizer.PageView
	err := s.with(userID, sessionID, "", func(e *anonymizer.Editor) error {
		v := e.Viewer()
		switch action {
		case ViewerNext:
			v.NextPage()
		case ViewerPrev:
			v.PrevPage()
		case ViewerZoomIn:
			v.ZoomIn()
		case ViewerZoomOut:
			v.ZoomOut()
		case ViewerSetPage:
			v.SetCurrentPage(int(value))
		case ViewerSetScale:
			v.SetScale(value)
		default:
			return &domain.ValidationError{Field: "action", Message: fmt.Sprintf("unknown viewer action %q", action)}
		}
		var err error
		view, err = e.CurrentPage()
		return err
	})
	return view, err
}

// Save is an explicit save point. A failed save is logged and the current ID returned.
func (s *EditorService) Save(ctx context.Context, userID, sessionID string, token string) (string, error) {
	var id string
	err := s.with(userID, sessionID, token, func(e *anonymizer.Editor) error {
		id, _ = s.bridge(userID, token).Checkpoint(ctx, e, anonymizer.TriggerSave)
		return nil
	})
	return id, err
}

// Close saves the editor and discards it, as when the user returns to the session list.
func (s *EditorService) Close(ctx context.Context, userID, sessionID string, token string) error {
	return s.withEntry(userID, sessionID, token, func(entry *editorEntry) error {
		_, _ = s.bridge(userID, token).Checkpoint(ctx, entry.editor, anonymizer.TriggerReset)
		s.remove(sessionID, entry)
		return nil
	})
}

// Download saves the editor, then renders the anonymized PDF from the in-memory state.
func (s *EditorService) Download(ctx context.Context, userID, sessionID string, token string) ([]byte, string, error) {
	var req *domain.AnonymizeRequest
	var filename string
	err := s.with(userID, sessionID, token, func(e *anonymizer.Editor) error {
		_, _ = s.bridge(userID, token).Checkpoint(ctx, e, anonymizer.TriggerDownload)
		var err error
		req, err = e.AnonymizeRequest()
		filename = e.Snapshot().AnonymizedFilename()
		return err
	})
	if err != nil {
		return nil, "", err
	}

	pdf, err := s.generate(ctx, sessionID, req)
	if err != nil {
		return nil, "", err
	}
	return pdf, filename, nil
}

// Render generates the anonymized PDF of a session state held by the caller rather than
// an open editor. The state must belong to one of the caller's stored sessions and point
// at the same source file.
func (s *EditorService) Render(ctx context.Context, userID string, session *domain.Session, token string) ([]byte, string, error) {
	if session.SessionID == "" {
		return nil, "", &domain.ValidationError{Field: "session_id", Message: "session ID is required"}
	}
	if err := session.Validate(); err != nil {
		return nil, "", err
	}
	stored, err := s.sessions.GetSession(ctx, userID, session.SessionID, token)
	if err != nil {
		return nil, "", err
	}
	if stored.FileID != session.FileID {
		return nil, "", &domain.ValidationError{Field: "file_id", Message: "file does not belong to this session"}
	}

	e := anonymizer.NewEditor(session)
	req, err := e.AnonymizeRequest()
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.generate(ctx, session.SessionID, req)
	if err != nil {
		return nil, "", err
	}
	return pdf, e.Snapshot().AnonymizedFilename(), nil
}

func (s *EditorService) generate(ctx context.Context, sessionID string, req *domain.AnonymizeRequest) ([]byte, error) {
	pdf, err := s.detector.GenerateAnonymizedPDF(ctx, req)
	if s.metrics != nil {
		s.metrics.PDFGenerations.WithLabelValues(metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate anonymized PDF: %w", err)
	}
	s.logger.Info("Anonymized PDF generated",
		"session_id", sessionID,
		"detections", len(req.Detections),
		"manual_blurs", len(req.ManualBlurs),
		"bytes", len(pdf))
	return pdf, nil
}

// Share saves the editor and returns the public link to the session. The link serves the
// stored copy, so no link is returned when the save fails.
func (s *EditorService) Share(ctx context.Context, userID, sessionID string, token string) (string, error) {
	var id string
	err := s.with(userID, sessionID, token, func(e *anonymizer.Editor) error {
		var err error
		id, err = s.bridge(userID, token).Checkpoint(ctx, e, anonymizer.TriggerShare)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSessionNotSaved, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return ShareURL(s.publicURL, id), nil
}

// Drop forgets the editor of sessionID without saving it.
func (s *EditorService) Drop(sessionID string) {
	s.mu.Lock()
	entry, ok := s.editors[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.remove(sessionID, entry)
}

// StartIdleSweep saves and closes editors that have not been used for idleTimeout.
// A non-positive timeout leaves editors open until closed or shut down.
func (s *EditorService) StartIdleSweep(idleTimeout time.Duration) {
	if idleTimeout <= 0 {
		return
	}
	interval := idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	go s.sweepRoutine(interval, idleTimeout)
}

func (s *EditorService) sweepRoutine(interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			s.SweepIdle(ctx, idleTimeout)
			cancel()
		case <-s.done:
			return
		}
	}
}

// SweepIdle saves and closes every editor idle for longer than idleTimeout and reports
// how many were closed.
func (s *EditorService) SweepIdle(ctx context.Context, idleTimeout time.Duration) int {
	cutoff := s.now().Add(-idleTimeout)

	s.mu.Lock()
	candidates := make(map[string]*editorEntry)
	for id, entry := range s.editors {
		candidates[id] = entry
	}
	s.mu.Unlock()

	closed := 0
	for id, entry := range candidates {
		entry.mu.Lock()
		if !entry.closed && entry.lastUsed.Before(cutoff) {
			if entry.editor.Loaded() {
				_, _ = s.bridge(entry.userID, entry.token).Checkpoint(ctx, entry.editor, anonymizer.TriggerIdle)
			}
			s.remove(id, entry)
			closed++
		}
		entry.mu.Unlock()
	}
	if closed > 0 {
		s.logger.Info("Idle editors closed", "count", closed)
	}
	return closed
}

// Shutdown stops the idle sweep, starts an unload save for every open editor and waits
// for them until ctx is done.
func (s *EditorService) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	entries := make(map[string]*editorEntry, len(s.editors))
	for id, entry := range s.editors {
		entries[id] = entry
	}
	s.mu.Unlock()

	pending := make([]<-chan string, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		pending = append(pending, s.bridge(entry.userID, entry.token).Detach(ctx, entry.editor, anonymizer.TriggerUnload))
		entry.mu.Unlock()
	}

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Shutdown interrupted pending session saves")
			return
		}
	}
	s.logger.Info("Open editors saved", "count", len(pending))
}

// Len reports how many editors are open.
func (s *EditorService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.editors)
}

func (s *EditorService) register(sessionID string, entry *editorEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.editors[sessionID]; !ok {
		s.trackOpen()
	}
	s.editors[sessionID] = entry
}

// remove discards the entry's editor and unregisters it. The caller holds entry.mu, and
// a newer entry registered under the same ID is left alone.
func (s *EditorService) remove(sessionID string, entry *editorEntry) {
	entry.closed = true
	entry.editor.Discard()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editors[sessionID] == entry {
		delete(s.editors, sessionID)
		if s.metrics != nil {
			s.metrics.OpenEditors.Dec()
		}
	}
}

func (s *EditorService) trackOpen() {
	if s.metrics != nil {
		s.metrics.OpenEditors.Inc()
	}
}

// with runs fn on the caller's open editor under its lock. A non-empty token replaces
// the one kept for shutdown saves.
func (s *EditorService) with(userID, sessionID, token string, fn func(e *anonymizer.Editor) error) error {
	return s.withEntry(userID, sessionID, token, func(entry *editorEntry) error {
		return fn(entry.editor)
	})
}

func (s *EditorService) withEntry(userID, sessionID, token string, fn func(entry *editorEntry) error) error {
	s.mu.Lock()
	entry, ok := s.editors[sessionID]
	s.mu.Unlock()
	if !ok {
		return domain.ErrEditorNotOpen
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.userID != userID {
		return domain.ErrAccessDenied
	}
	if entry.closed || !entry.editor.Loaded() {
		return domain.ErrEditorNotOpen
	}
	if token != "" {
		entry.token = token
	}
	entry.lastUsed = s.now()
	return fn(entry)
}

func stateOf(e *anonymizer.Editor) (*EditorState, error) {
	page, err := e.CurrentPage()
	if err != nil {
		return nil, err
	}
	return &EditorState{Session: e.Snapshot(), Page: page}, nil
}

// ShareURL is the frontend link a saved session is shared under.
func ShareURL(publicBaseURL, sessionID string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/anonymizer/shared/" + sessionID
}
