package anonymizer

import (
	"resume-anonymizer/internal/domain"

	"github.com/google/uuid"
)

// ManualBlurStore holds user-drawn redaction rectangles.
type ManualBlurStore struct {
	items []domain.ManualBlur
}

func NewManualBlurStore(blurs []domain.ManualBlur) *ManualBlurStore {
	s := &ManualBlurStore{items: make([]domain.ManualBlur, 0, len(blurs))}
	for _, b := range blurs {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		s.items = append(s.items, b)
	}
	return s
}

// Add stores a new region on the zero-indexed page and returns it with its ID.
func (s *ManualBlurStore) Add(page int, bbox domain.BoundingBox) domain.ManualBlur {
	b := domain.ManualBlur{ID: uuid.NewString(), Page: page, BBox: bbox}
	s.items = append(s.items, b)
	return b
}

// Remove deletes the region with id.
func (s *ManualBlurStore) Remove(id string) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrManualBlurNotFound
}

func (s *ManualBlurStore) Len() int { return len(s.items) }

func (s *ManualBlurStore) All() []domain.ManualBlur {
	out := make([]domain.ManualBlur, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ManualBlurStore) OnPage(page int) []domain.ManualBlur {
	out := make([]domain.ManualBlur, 0)
	for _, b := range s.items {
		if b.Page == page {
			out = append(out, b)
		}
	}
	return out
}
