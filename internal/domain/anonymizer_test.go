package domain

import (
	"errors"
	"testing"
)

func TestBoundingBox_Intersects(t *testing.T) {
	base := BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}
	tests := []struct {
		name  string
		other BoundingBox
		want  bool
	}{
		{name: "same box", other: base, want: true},
		{name: "partial overlap", other: BoundingBox{X: 5, Y: 5, Width: 10, Height: 10}, want: true},
		{name: "contained", other: BoundingBox{X: 2, Y: 2, Width: 2, Height: 2}, want: true},
		{name: "shared vertical edge", other: BoundingBox{X: 10, Y: 0, Width: 5, Height: 10}, want: true},
		{name: "shared corner", other: BoundingBox{X: 10, Y: 10, Width: 5, Height: 5}, want: true},
		{name: "gap on the right", other: BoundingBox{X: 10.5, Y: 0, Width: 5, Height: 10}, want: false},
		{name: "below", other: BoundingBox{X: 0, Y: 20, Width: 10, Height: 10}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Intersects(tt.other); got != tt.want {
				t.Fatalf("Intersects() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Intersects(base); got != tt.want {
				t.Fatalf("Intersects() is not symmetric for %+v", tt.other)
			}
		})
	}
}

func TestSession_Validate(t *testing.T) {
	valid := func() Session {
		return Session{
			FileID:   "file-1",
			Filename: "cv.pdf",
			NumPages: 2,
			Detections: []Detection{
				{Type: PIITypeEmail, Page: 1, BBox: BoundingBox{Width: 1, Height: 1}},
			},
			ManualBlurs: []ManualBlur{
				{ID: "b1", Page: 0, BBox: BoundingBox{Width: 1, Height: 1}},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(s *Session)
		wantField string
	}{
		{name: "valid", mutate: func(s *Session) {}},
		{name: "missing file id", mutate: func(s *Session) { s.FileID = "" }, wantField: "file_id"},
		{name: "blank filename", mutate: func(s *Session) { s.Filename = "  " }, wantField: "filename"},
		{name: "negative pages", mutate: func(s *Session) { s.NumPages = -1 }, wantField: "num_pages"},
		{name: "detection page out of range", mutate: func(s *Session) { s.Detections[0].Page = 2 }, wantField: "page"},
		{name: "negative width", mutate: func(s *Session) { s.Detections[0].BBox.Width = -1 }, wantField: "bbox.width"},
		{name: "blur without id", mutate: func(s *Session) { s.ManualBlurs[0].ID = "" }, wantField: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Fatalf("expected field %s, got %s", tt.wantField, vErr.Field)
			}
		})
	}
}

func TestSession_Summary(t *testing.T) {
	s := Session{
		SessionID:  "s1",
		Filename:   "cv.pdf",
		NumPages:   3,
		Detections: make([]Detection, 4),
	}
	sum := s.Summary()
	if sum.SessionID != "s1" || sum.NumPages != 3 || sum.DetectionCount != 4 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestSession_AnonymizedFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "cv.pdf", want: "cv_anonymized.pdf"},
		{filename: "CV.PDF", want: "CV_anonymized.pdf"},
		{filename: "notes", want: "notes_anonymized.pdf"},
		{filename: ".pdf", want: "resume_anonymized.pdf"},
	}
	for _, tt := range tests {
		s := Session{Filename: tt.filename}
		if got := s.AnonymizedFilename(); got != tt.want {
			t.Fatalf("AnonymizedFilename(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestTextStyle(t *testing.T) {
	style := TextStyle{Color: 0x112233, Flags: styleFlagBold}
	if !style.IsBold() || style.IsItalic() {
		t.Fatalf("unexpected flags bold=%v italic=%v", style.IsBold(), style.IsItalic())
	}
	r, g, b := style.RGB()
	if r != 0x11 || g != 0x22 || b != 0x33 {
		t.Fatalf("unexpected rgb %x %x %x", r, g, b)
	}
}

func TestPIIType_Valid(t *testing.T) {
	if !PIITypeLinkedIn.Valid() {
		t.Fatalf("expected linkedin to be valid")
	}
	if PIIType("ssn").Valid() {
		t.Fatalf("expected unknown type to be invalid")
	}
}

func TestValidatePDFFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{name: "pdf", filename: "resume.pdf", wantErr: false},
		{name: "upper case extension", filename: "RESUME.PDF", wantErr: false},
		{name: "docx", filename: "resume.docx", wantErr: true},
		{name: "no extension", filename: "resume", wantErr: true},
		{name: "empty", filename: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePDFFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePDFFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFile) {
				t.Fatalf("expected ErrInvalidFile, got %v", err)
			}
		})
	}
}
