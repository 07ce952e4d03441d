package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// PIIType is the category a detected span was classified as by the PII service.
type PIIType string

const (
	PIITypeEmail    PIIType = "email"
	PIITypePhone    PIIType = "phone"
	PIITypeName     PIIType = "name"
	PIITypeCompany  PIIType = "company"
	PIITypeSchool   PIIType = "school"
	PIITypeLinkedIn PIIType = "linkedin"
	PIITypeGitHub   PIIType = "github"
	PIITypeWebsite  PIIType = "website"
)

// Valid reports whether t is one of the known PII categories.
func (t PIIType) Valid() bool {
	switch t {
	case PIITypeEmail, PIITypePhone, PIITypeName, PIITypeCompany,
		PIITypeSchool, PIITypeLinkedIn, PIITypeGitHub, PIITypeWebsite:
		return true
	}
	return false
}

// BoundingBox is an axis-aligned rectangle in document point-space.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Intersects reports whether b and o overlap. Boxes sharing an edge overlap.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return !(b.X+b.Width < o.X ||
		o.X+o.Width < b.X ||
		b.Y+b.Height < o.Y ||
		o.Y+o.Height < b.Y)
}

// Validate checks that the box has non-negative dimensions.
func (b BoundingBox) Validate() error {
	if b.Width < 0 {
		return &ValidationError{Field: "bbox.width", Message: "width cannot be negative"}
	}
	if b.Height < 0 {
		return &ValidationError{Field: "bbox.height", Message: "height cannot be negative"}
	}
	return nil
}

const (
	styleFlagItalic = 1 << 1
	styleFlagBold   = 1 << 4
)

// TextStyle is the font information of a detected span, as reported by the PII service.
type TextStyle struct {
	FontName string  `json:"font_name"`
	FontSize float64 `json:"font_size"`
	Color    int     `json:"color"` // packed 0xRRGGBB
	Flags    int     `json:"flags"`
}

func (s TextStyle) IsItalic() bool { return s.Flags&styleFlagItalic != 0 }
func (s TextStyle) IsBold() bool   { return s.Flags&styleFlagBold != 0 }

// RGB unpacks Color into its components.
func (s TextStyle) RGB() (r, g, b uint8) {
	return uint8(s.Color >> 16 & 0xff), uint8(s.Color >> 8 & 0xff), uint8(s.Color & 0xff)
}

// Detection is a PII span located by the PII service plus the user's redaction choices.
type Detection struct {
	ID              string      `json:"id,omitempty"`
	Type            PIIType     `json:"type"`
	Text            string      `json:"text"`
	Page            int         `json:"page"` // zero-indexed
	BBox            BoundingBox `json:"bbox"`
	Confidence      float64     `json:"confidence"`
	Style           TextStyle   `json:"style"`
	Blurred         bool        `json:"blurred"`
	ReplacementText *string     `json:"replacement_text,omitempty"`
}

// Validate checks the detection against a document of numPages pages.
func (d *Detection) Validate(numPages int) error {
	if d.Page < 0 || d.Page >= numPages {
		return &ValidationError{Field: "page", Message: "page is out of range"}
	}
	return d.BBox.Validate()
}

// ManualBlur is a user-drawn redaction rectangle that is not tied to any detection.
type ManualBlur struct {
	ID   string      `json:"id"`
	Page int         `json:"page"` // zero-indexed
	BBox BoundingBox `json:"bbox"`
}

// Validate checks the region against a document of numPages pages.
func (m *ManualBlur) Validate(numPages int) error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Message: "manual blur ID is required"}
	}
	if m.Page < 0 || m.Page >= numPages {
		return &ValidationError{Field: "page", Message: "page is out of range"}
	}
	return m.BBox.Validate()
}

// ViewerState is the navigation state of the page viewer. CurrentPage is 1-indexed.
type ViewerState struct {
	CurrentPage int     `json:"current_page"`
	Scale       float64 `json:"scale"`
	NumPages    int     `json:"num_pages"`
}

// Session is the persisted unit of anonymizer editing progress for one uploaded document.
type Session struct {
	SessionID   string       `json:"session_id"`
	UserID      string       `json:"user_id,omitempty"`
	FileID      string       `json:"file_id"`
	Filename    string       `json:"filename"`
	OriginalURL string       `json:"original_url"`
	Detections  []Detection  `json:"detections"`
	ManualBlurs []ManualBlur `json:"manual_blurs"`
	NumPages    int          `json:"num_pages"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Validate checks the session's references and every contained region.
func (s *Session) Validate() error {
	if s.FileID == "" {
		return &ValidationError{Field: "file_id", Message: "file ID is required"}
	}
	if strings.TrimSpace(s.Filename) == "" {
		return &ValidationError{Field: "filename", Message: "filename is required"}
	}
	if s.NumPages < 0 {
		return &ValidationError{Field: "num_pages", Message: "page count cannot be negative"}
	}
	for i := range s.Detections {
		if err := s.Detections[i].Validate(s.NumPages); err != nil {
			return err
		}
	}
	for i := range s.ManualBlurs {
		if err := s.ManualBlurs[i].Validate(s.NumPages); err != nil {
			return err
		}
	}
	return nil
}

// AnonymizedFilename is the name the rendered PDF of s is offered under.
func (s *Session) AnonymizedFilename() string {
	base := s.Filename
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	if base == "" {
		base = "resume"
	}
	return base + "_anonymized.pdf"
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	SessionID      string    `json:"session_id"`
	Filename       string    `json:"filename"`
	NumPages       int       `json:"num_pages"`
	DetectionCount int       `json:"detection_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Summary returns the list view of s.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID:      s.SessionID,
		Filename:       s.Filename,
		NumPages:       s.NumPages,
		DetectionCount: len(s.Detections),
		UpdatedAt:      s.UpdatedAt,
	}
}

// DetectionResult is what the PII service returns for an uploaded document.
type DetectionResult struct {
	FileID      string      `json:"file_id"`
	Filename    string      `json:"filename"`
	NumPages    int         `json:"num_pages"`
	OriginalURL string      `json:"original_url,omitempty"`
	Detections  []Detection `json:"detections"`
}

// AnonymizeRequest is the payload for final PDF generation.
type AnonymizeRequest struct {
	FileID      string       `json:"file_id"`
	Detections  []Detection  `json:"detections"`
	ManualBlurs []ManualBlur `json:"manual_blurs"`
}

// ValidatePDFFilename rejects anything that is not named like a PDF.
func ValidatePDFFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidFile)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return fmt.Errorf("%w: only PDF files are supported", ErrInvalidFile)
	}
	return nil
}
