package anonymizer

import (
	"resume-anonymizer/internal/domain"

	"github.com/google/uuid"
)

// DetectionStore holds the detected PII spans of one document in insertion order.
type DetectionStore struct {
	items []domain.Detection
}

// NewDetectionStore copies detections into a new store. Detections without an ID get one.
func NewDetectionStore(detections []domain.Detection) *DetectionStore {
	s := &DetectionStore{items: make([]domain.Detection, 0, len(detections))}
	for _, d := range detections {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		s.items = append(s.items, d)
	}
	return s
}

// Add appends a freshly detected span. New detections start blurred.
func (s *DetectionStore) Add(d domain.Detection) domain.Detection {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Blurred = true
	s.items = append(s.items, d)
	return d
}

func (s *DetectionStore) Len() int { return len(s.items) }

// Get returns the detection at index.
func (s *DetectionStore) Get(index int) (domain.Detection, error) {
	if index < 0 || index >= len(s.items) {
		return domain.Detection{}, domain.ErrDetectionNotFound
	}
	return s.items[index], nil
}

// IndexOf returns the index of the detection with id, or -1.
func (s *DetectionStore) IndexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// All returns a copy of every detection.
func (s *DetectionStore) All() []domain.Detection {
	out := make([]domain.Detection, len(s.items))
	copy(out, s.items)
	return out
}

// OnPage returns the detections on the zero-indexed page.
func (s *DetectionStore) OnPage(page int) []domain.Detection {
	out := make([]domain.Detection, 0)
	for _, d := range s.items {
		if d.Page == page {
			out = append(out, d)
		}
	}
	return out
}

// Overlapping returns the indices of every detection on page whose box intersects bbox,
// in insertion order.
func (s *DetectionStore) Overlapping(page int, bbox domain.BoundingBox) []int {
	out := make([]int, 0, 1)
	for i, d := range s.items {
		if d.Page == page && d.BBox.Intersects(bbox) {
			out = append(out, i)
		}
	}
	return out
}

// Toggle flips the blurred flag of the detection at index and sets every detection
// overlapping it on the same page to the same new state. It returns the new state and
// the indices that were updated.
//
// Only direct overlaps of the clicked detection follow it: with A∩B and B∩C but not A∩C,
// toggling A leaves C untouched.
func (s *DetectionStore) Toggle(index int) (bool, []int, error) {
	clicked, err := s.Get(index)
	if err != nil {
		return false, nil, err
	}
	blurred := !clicked.Blurred
	group := s.Overlapping(clicked.Page, clicked.BBox)
	for _, i := range group {
		s.items[i].Blurred = blurred
	}
	return blurred, group, nil
}

// SetReplacement sets the text drawn over the detection once redacted.
// An empty text clears the replacement.
func (s *DetectionStore) SetReplacement(index int, text string) error {
	if index < 0 || index >= len(s.items) {
		return domain.ErrDetectionNotFound
	}
	if text == "" {
		s.items[index].ReplacementText = nil
		return nil
	}
	s.items[index].ReplacementText = &text
	return nil
}

// SetAllBlurred sets the blurred flag of every detection.
func (s *DetectionStore) SetAllBlurred(blurred bool) {
	for i := range s.items {
		s.items[i].Blurred = blurred
	}
}

// Blurred returns the detections currently marked for redaction.
func (s *DetectionStore) Blurred() []domain.Detection {
	out := make([]domain.Detection, 0, len(s.items))
	for _, d := range s.items {
		if d.Blurred {
			out = append(out, d)
		}
	}
	return out
}
