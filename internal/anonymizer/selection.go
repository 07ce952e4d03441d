package anonymizer

import (
	"errors"

	"resume-anonymizer/internal/domain"
)

// Client rectangles must exceed minSelectionSize device pixels in both dimensions.
const minSelectionSize = 1.0

var (
	ErrNotSelecting = errors.New("selection mode is not active")
	ErrInvalidScale = errors.New("scale must be positive")
)

// ClientRect is one rectangle of a text selection in client (viewer pixel) space.
// Multi-line selections produce one rectangle per visual line.
type ClientRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is the client-space origin of the rendered page.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectionMapper converts a live text selection into document-space boxes.
type SelectionMapper struct {
	active bool
}

// Begin enters selection mode.
func (m *SelectionMapper) Begin() { m.active = true }

// Cancel leaves selection mode without emitting regions.
func (m *SelectionMapper) Cancel() { m.active = false }

func (m *SelectionMapper) Active() bool { return m.active }

// Map converts rects to document-space boxes: (client - origin) / scale.
// Rectangles not larger than one device pixel in both dimensions are dropped.
// Selection mode resets once the selection has been consumed.
func (m *SelectionMapper) Map(rects []ClientRect, origin Point, scale float64) ([]domain.BoundingBox, error) {
	if !m.active {
		return nil, ErrNotSelecting
	}
	if scale <= 0 {
		return nil, ErrInvalidScale
	}
	defer m.Cancel()

	boxes := make([]domain.BoundingBox, 0, len(rects))
	for _, r := range rects {
		if r.Width <= minSelectionSize || r.Height <= minSelectionSize {
			continue
		}
		boxes = append(boxes, domain.BoundingBox{
			X:      (r.Left - origin.X) / scale,
			Y:      (r.Top - origin.Y) / scale,
			Width:  r.Width / scale,
			Height: r.Height / scale,
		})
	}
	return boxes, nil
}
