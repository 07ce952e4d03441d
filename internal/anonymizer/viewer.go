package anonymizer

import (
	"math"

	"resume-anonymizer/internal/domain"
)

const (
	MinScale     = 0.5
	MaxScale     = 3.0
	ScaleStep    = 0.25
	DefaultScale = 1.55
)

// Viewer tracks the page and zoom of the document being edited.
// CurrentPage is 1-indexed and always within [1, NumPages] (1 for an empty document);
// scale always stays within [MinScale, MaxScale].
type Viewer struct {
	currentPage int
	scale       float64
	numPages    int
}

// NewViewer returns a viewer positioned at the first page at the default scale.
func NewViewer(numPages int) *Viewer {
	v := &Viewer{}
	v.Reset(numPages)
	return v
}

// Reset positions the viewer at page 1 and the default scale for a newly loaded document.
func (v *Viewer) Reset(numPages int) {
	if numPages < 0 {
		numPages = 0
	}
	v.numPages = numPages
	v.currentPage = 1
	v.scale = DefaultScale
}

func (v *Viewer) CurrentPage() int { return v.currentPage }
func (v *Viewer) Scale() float64   { return v.scale }
func (v *Viewer) NumPages() int    { return v.numPages }

// PageIndex is the zero-indexed page matching CurrentPage, as used by detections.
func (v *Viewer) PageIndex() int { return v.currentPage - 1 }

func (v *Viewer) NextPage() int { return v.SetCurrentPage(v.currentPage + 1) }
func (v *Viewer) PrevPage() int { return v.SetCurrentPage(v.currentPage - 1) }

// SetCurrentPage moves to page, clamped to the document.
func (v *Viewer) SetCurrentPage(page int) int {
	last := v.numPages
	if last < 1 {
		last = 1
	}
	v.currentPage = min(max(page, 1), last)
	return v.currentPage
}

func (v *Viewer) ZoomIn() float64  { return v.SetScale(v.scale + ScaleStep) }
func (v *Viewer) ZoomOut() float64 { return v.SetScale(v.scale - ScaleStep) }

// SetScale changes the zoom, clamped to [MinScale, MaxScale]. NaN is ignored.
func (v *Viewer) SetScale(scale float64) float64 {
	if math.IsNaN(scale) {
		return v.scale
	}
	v.scale = math.Min(math.Max(scale, MinScale), MaxScale)
	return v.scale
}

// State returns a copy of the viewer state.
func (v *Viewer) State() domain.ViewerState {
	return domain.ViewerState{
		CurrentPage: v.currentPage,
		Scale:       v.scale,
		NumPages:    v.numPages,
	}
}
