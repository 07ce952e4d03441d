package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resume-anonymizer/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

func TestClient_SaveSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/anonymizer/sessions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", got)
		}
		var s domain.Session
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			t.Errorf("decode: %v", err)
		}
		if s.Filename != "cv.pdf" {
			t.Errorf("expected filename cv.pdf, got %s", s.Filename)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "s-1"})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret", nopLogger{})
	id, err := c.Save(context.Background(), &domain.Session{FileID: "f", Filename: "cv.pdf"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "s-1" {
		t.Fatalf("expected s-1, got %s", id)
	}
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "cv.pdf" || string(data) != "%PDF-1.7" {
			t.Errorf("unexpected upload %s %q", header.Filename, data)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"session": map[string]interface{}{"session_id": "s-2", "file_id": "f", "filename": "cv.pdf", "num_pages": 1},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", nopLogger{})
	session, err := c.Upload(context.Background(), "/tmp/cv.pdf", strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if session.SessionID != "s-2" || session.NumPages != 1 {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestClient_DownloadPostsSessionState(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.URL.Path != "/api/anonymizer/sessions/s-1/render" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var s domain.Session
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(s.ManualBlurs) != 1 || !s.Detections[0].Blurred {
			t.Errorf("expected the local state to be posted, got %+v", s)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-out"))
	}))
	defer srv.Close()

	session := &domain.Session{
		SessionID:   "s-1",
		FileID:      "f",
		Filename:    "cv.pdf",
		NumPages:    1,
		Detections:  []domain.Detection{{ID: "d0", Type: domain.PIITypeEmail, Blurred: true}},
		ManualBlurs: []domain.ManualBlur{{ID: "m1"}},
	}
	pdf, err := New(srv.URL, "secret", nopLogger{}).Download(context.Background(), session)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(pdf) != "%PDF-out" {
		t.Fatalf("unexpected pdf %q", pdf)
	}
	if len(calls) != 1 {
		t.Fatalf("expected a single render call, got %v", calls)
	}
}

func TestClient_ShareClosesEditor(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case "/api/anonymizer/sessions/s-1/editor":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{})
		case "/api/anonymizer/sessions/s-1/share":
			_ = json.NewEncoder(w).Encode(map[string]string{"share_url": "https://app/s-1"})
		case "/api/anonymizer/sessions/s-1/editor/close":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	link, err := New(srv.URL, "secret", nopLogger{}).Share(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if link != "https://app/s-1" {
		t.Fatalf("unexpected link %s", link)
	}
	want := []string{
		"/api/anonymizer/sessions/s-1/editor",
		"/api/anonymizer/sessions/s-1/share",
		"/api/anonymizer/sessions/s-1/editor/close",
	}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		msg    string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"error":"session not found","type":"not_found"}`, want: domain.ErrSessionNotFound, msg: "session not found"},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"access denied"}`, want: domain.ErrAccessDenied, msg: "access denied"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"Invalid token"}`, want: domain.ErrInvalidToken, msg: "Invalid token"},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, body: `{"error":"bad pdf"}`, want: domain.ErrUnprocessableDocument, msg: "bad pdf"},
		{name: "plain text body", status: http.StatusServiceUnavailable, body: "upstream down", want: domain.ErrPIIServiceUnavailable, msg: "upstream down"},
		{name: "save failed", status: http.StatusServiceUnavailable, body: `{"error":"session could not be saved","type":"network"}`, want: domain.ErrSessionNotSaved, msg: "session could not be saved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "t", nopLogger{}).GetSession(context.Background(), "s-1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Message != tt.msg {
				t.Fatalf("expected message %q, got %v", tt.msg, err)
			}
		})
	}
}

func TestClient_DeleteNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL, "t", nopLogger{}).DeleteSession(context.Background(), "s-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
