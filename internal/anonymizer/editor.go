// Package anonymizer holds the editing state of an anonymizer session: the detected PII
// spans and their redaction flags, user-drawn blur regions, the page viewer and the
// persistence bridge that writes the state back to a session store.
package anonymizer

import (
	"resume-anonymizer/internal/domain"
)

// Editor owns the editing state of the one session currently open.
// It is not safe for concurrent use.
type Editor struct {
	session    domain.Session // metadata only; detections and blurs live in the stores
	detections *DetectionStore
	blurs      *ManualBlurStore
	viewer     *Viewer
	selection  SelectionMapper
	loaded     bool
}

// NewEditor returns an editor with session loaded.
func NewEditor(session *domain.Session) *Editor {
	e := &Editor{}
	e.Load(session)
	return e
}

// Load replaces the editor state with session and resets the viewer.
func (e *Editor) Load(session *domain.Session) {
	meta := *session
	meta.Detections = nil
	meta.ManualBlurs = nil
	e.session = meta
	e.detections = NewDetectionStore(session.Detections)
	e.blurs = NewManualBlurStore(session.ManualBlurs)
	e.viewer = NewViewer(session.NumPages)
	e.selection.Cancel()
	e.loaded = true
}

// Discard drops the session state. The editor must be loaded again before use.
func (e *Editor) Discard() {
	e.session = domain.Session{}
	e.detections = nil
	e.blurs = nil
	e.viewer = nil
	e.selection.Cancel()
	e.loaded = false
}

func (e *Editor) Loaded() bool { return e.loaded }

func (e *Editor) SessionID() string { return e.session.SessionID }

// SetSessionID records the ID assigned by the store on first save.
func (e *Editor) SetSessionID(id string) { e.session.SessionID = id }

// Viewer returns the page viewer, or nil when nothing is loaded.
func (e *Editor) Viewer() *Viewer { return e.viewer }

// Detections returns the detection store, or nil when nothing is loaded.
func (e *Editor) Detections() *DetectionStore { return e.detections }

// ManualBlurs returns the manual blur store, or nil when nothing is loaded.
func (e *Editor) ManualBlurs() *ManualBlurStore { return e.blurs }

// Toggle flips the detection at index together with every detection overlapping it.
func (e *Editor) Toggle(index int) (bool, []int, error) {
	if !e.loaded {
		return false, nil, domain.ErrEditorNotOpen
	}
	return e.detections.Toggle(index)
}

// ToggleByID is Toggle addressed by detection ID.
func (e *Editor) ToggleByID(id string) (bool, []int, error) {
	if !e.loaded {
		return false, nil, domain.ErrEditorNotOpen
	}
	index := e.detections.IndexOf(id)
	if index < 0 {
		return false, nil, domain.ErrDetectionNotFound
	}
	return e.detections.Toggle(index)
}

func (e *Editor) SetReplacement(index int, text string) error {
	if !e.loaded {
		return domain.ErrEditorNotOpen
	}
	return e.detections.SetReplacement(index, text)
}

// SetAllBlurred blurs or reveals every detection.
func (e *Editor) SetAllBlurred(blurred bool) error {
	if !e.loaded {
		return domain.ErrEditorNotOpen
	}
	e.detections.SetAllBlurred(blurred)
	return nil
}

// BeginSelection enters selection mode.
func (e *Editor) BeginSelection() error {
	if !e.loaded {
		return domain.ErrEditorNotOpen
	}
	e.selection.Begin()
	return nil
}

// ApplySelection turns the client rectangles of a selection on the current page into
// manual blur regions, using the viewer's current scale.
func (e *Editor) ApplySelection(rects []ClientRect, origin Point) ([]domain.ManualBlur, error) {
	if !e.loaded {
		return nil, domain.ErrEditorNotOpen
	}
	boxes, err := e.selection.Map(rects, origin, e.viewer.Scale())
	if err != nil {
		return nil, err
	}
	page := e.viewer.PageIndex()
	added := make([]domain.ManualBlur, 0, len(boxes))
	for _, box := range boxes {
		added = append(added, e.blurs.Add(page, box))
	}
	return added, nil
}

func (e *Editor) RemoveManualBlur(id string) error {
	if !e.loaded {
		return domain.ErrEditorNotOpen
	}
	return e.blurs.Remove(id)
}

// Snapshot returns the full session as it currently stands.
func (e *Editor) Snapshot() *domain.Session {
	s := e.session
	if e.loaded {
		s.Detections = e.detections.All()
		s.ManualBlurs = e.blurs.All()
	}
	return &s
}

// PageView is what the editor renders for one page.
type PageView struct {
	Viewer      domain.ViewerState  `json:"viewer"`
	Detections  []domain.Detection  `json:"detections"`
	ManualBlurs []domain.ManualBlur `json:"manual_blurs"`
}

// CurrentPage returns the detections and blurs of the page being viewed.
func (e *Editor) CurrentPage() (*PageView, error) {
	if !e.loaded {
		return nil, domain.ErrEditorNotOpen
	}
	page := e.viewer.PageIndex()
	return &PageView{
		Viewer:      e.viewer.State(),
		Detections:  e.detections.OnPage(page),
		ManualBlurs: e.blurs.OnPage(page),
	}, nil
}

// AnonymizeRequest builds the PDF generation payload: blurred detections and all manual blurs.
func (e *Editor) AnonymizeRequest() (*domain.AnonymizeRequest, error) {
	if !e.loaded {
		return nil, domain.ErrEditorNotOpen
	}
	return &domain.AnonymizeRequest{
		FileID:      e.session.FileID,
		Detections:  e.detections.Blurred(),
		ManualBlurs: e.blurs.All(),
	}, nil
}
