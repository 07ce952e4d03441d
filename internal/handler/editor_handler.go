package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"resume-anonymizer/internal/anonymizer"
	"resume-anonymizer/internal/domain"
	"resume-anonymizer/internal/service"

	"github.com/gorilla/mux"
)

// EditorService is the set of editor operations the API exposes.
type EditorService interface {
	Open(ctx context.Context, userID, sessionID string, token string) (*service.EditorState, error)
	State(userID, sessionID string) (*service.EditorState, error)
	Toggle(userID, sessionID string, index int) (*service.ToggleResult, error)
	SetReplacement(userID, sessionID string, index int, text string) error
	SetAllBlurred(userID, sessionID string, blurred bool) error
	ApplySelection(userID, sessionID string, rects []anonymizer.ClientRect, origin anonymizer.Point) ([]domain.ManualBlur, error)
	RemoveManualBlur(userID, sessionID, blurID string) error
	Navigate(userID, sessionID, action string, value float64) (*anonymizer.PageView, error)
	Save(ctx context.Context, userID, sessionID string, token string) (string, error)
	Close(ctx context.Context, userID, sessionID string, token string) error
	Download(ctx context.Context, userID, sessionID string, token string) ([]byte, string, error)
	Render(ctx context.Context, userID string, session *domain.Session, token string) ([]byte, string, error)
	Share(ctx context.Context, userID, sessionID string, token string) (string, error)
	Drop(sessionID string)
}

// Uploader turns an uploaded PDF into a session with an open editor.
type Uploader interface {
	Upload(ctx context.Context, userID, filename string, file io.Reader, token string) (*service.EditorState, error)
}

// EditorHandler handles upload and editing requests
type EditorHandler struct {
	editors     EditorService
	uploader    Uploader
	maxFileSize int64
	logger      domain.Logger
}

func NewEditorHandler(editors EditorService, uploader Uploader, maxFileSize int64, logger domain.Logger) *EditorHandler {
	return &EditorHandler{
		editors:     editors,
		uploader:    uploader,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// DetectPII accepts a multipart "file" upload and opens an editor on the detected spans.
func (h *EditorHandler) DetectPII(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeDomainError(w, h.logger, domain.ErrFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	state, err := h.uploader.Upload(r.Context(), userID, header.Filename, file, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "user_id", userID, "filename", header.Filename)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *EditorHandler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	state, err := h.editors.Open(r.Context(), userID, sessionID, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *EditorHandler) GetEditor(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	state, err := h.editors.State(userID, sessionID)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *EditorHandler) ToggleDetection(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	index, err := detectionIndex(vars)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	result, err := h.editors.Toggle(userID, vars["id"], index)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", vars["id"])
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *EditorHandler) SetReplacement(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	index, err := detectionIndex(vars)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	var body struct {
		ReplacementText string `json:"replacement_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.editors.SetReplacement(userID, vars["id"], index, body.ReplacementText); err != nil {
		writeDomainError(w, h.logger, err, "session_id", vars["id"])
		return
	}
	h.writeState(w, userID, vars["id"])
}

func (h *EditorHandler) BlurAll(w http.ResponseWriter, r *http.Request) {
	h.setAllBlurred(w, r, true)
}

func (h *EditorHandler) RevealAll(w http.ResponseWriter, r *http.Request) {
	h.setAllBlurred(w, r, false)
}

func (h *EditorHandler) setAllBlurred(w http.ResponseWriter, r *http.Request, blurred bool) {
	userID, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	if err := h.editors.SetAllBlurred(userID, sessionID, blurred); err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	h.writeState(w, userID, sessionID)
}

type selectionRequest struct {
	Rects  []anonymizer.ClientRect `json:"rects"`
	Origin anonymizer.Point        `json:"origin"`
}

// ApplySelection converts the client rectangles of a text selection into manual blurs.
func (h *EditorHandler) ApplySelection(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	var body selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := h.editors.ApplySelection(userID, sessionID, body.Rects, body.Origin)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"manual_blurs": added})
}

func (h *EditorHandler) RemoveManualBlur(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	if err := h.editors.RemoveManualBlur(userID, vars["id"], vars["blurId"]); err != nil {
		writeDomainError(w, h.logger, err, "session_id", vars["id"])
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type viewerRequest struct {
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

func (h *EditorHandler) Viewer(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	var body viewerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.editors.Navigate(userID, sessionID, body.Action, body.Value)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *EditorHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	id, err := h.editors.Save(r.Context(), userID, sessionID, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

// Close saves the editor and discards it, as when returning to the session list.
func (h *EditorHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	if err := h.editors.Close(r.Context(), userID, sessionID, token); err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download saves the session and streams back the anonymized PDF.
func (h *EditorHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	pdf, filename, err := h.editors.Download(r.Context(), userID, sessionID, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writePDF(w, pdf, filename)
}

// Render streams back the anonymized PDF of the session state posted in the body, for
// clients that keep the editing state themselves.
func (h *EditorHandler) Render(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	var session domain.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if session.SessionID == "" {
		session.SessionID = sessionID
	}
	if session.SessionID != sessionID {
		writeDomainError(w, h.logger, &domain.ValidationError{Field: "session_id", Message: "does not match the URL"})
		return
	}

	pdf, filename, err := h.editors.Render(r.Context(), userID, &session, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writePDF(w, pdf, filename)
}

func writePDF(w http.ResponseWriter, pdf []byte, filename string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// Share saves the session and returns its public link.
func (h *EditorHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	sessionID := mux.Vars(r)["id"]

	link, err := h.editors.Share(r.Context(), userID, sessionID, token)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "share_url": link})
}

func (h *EditorHandler) writeState(w http.ResponseWriter, userID, sessionID string) {
	state, err := h.editors.State(userID, sessionID)
	if err != nil {
		writeDomainError(w, h.logger, err, "session_id", sessionID)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func detectionIndex(vars map[string]string) (int, error) {
	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 {
		return 0, &domain.ValidationError{Field: "index", Message: "detection index must be a non-negative integer"}
	}
	return index, nil
}
