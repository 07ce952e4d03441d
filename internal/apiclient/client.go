// Package apiclient is a typed client for the anonymizer server API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"resume-anonymizer/internal/domain"
)

const (
	defaultTimeout = 2 * time.Minute
	maxErrorBody   = 512
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code back onto the domain error the server reported.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrInvalidToken
	case http.StatusForbidden:
		return domain.ErrAccessDenied
	case http.StatusNotFound:
		return domain.ErrSessionNotFound
	case http.StatusConflict:
		return domain.ErrEditorNotOpen
	case http.StatusUnprocessableEntity:
		return domain.ErrUnprocessableDocument
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		if e.Message == domain.ErrSessionNotSaved.Error() {
			return domain.ErrSessionNotSaved
		}
		return domain.ErrPIIServiceUnavailable
	}
	return nil
}

// Client talks to the server on behalf of one authenticated user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     domain.Logger
}

func New(baseURL, token string, logger domain.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api",
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// UploadResult is the session created for an uploaded document.
type UploadResult struct {
	Session *domain.Session `json:"session"`
}

// Upload sends a PDF for detection. The server saves the new session before returning it.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) (*domain.Session, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var result UploadResult
	if err := c.do(ctx, http.MethodPost, "/anonymizer/detect-pii", writer.FormDataContentType(), &body, &result); err != nil {
		return nil, err
	}
	if result.Session == nil {
		return nil, fmt.Errorf("server returned no session")
	}
	return result.Session, nil
}

// Save creates the session when SessionID is empty and updates it otherwise.
func (c *Client) Save(ctx context.Context, session *domain.Session) (string, error) {
	var result struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/anonymizer/sessions", session, &result); err != nil {
		return "", err
	}
	return result.SessionID, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	var sessions []domain.SessionSummary
	if err := c.doJSON(ctx, http.MethodGet, "/anonymizer/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil)
}

// Download renders session as an anonymized PDF. The state is sent along, so the PDF
// matches the caller's copy even when it differs from the stored one.
func (c *Client) Download(ctx context.Context, session *domain.Session) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	var pdf bytes.Buffer
	if err := c.do(ctx, http.MethodPost, sessionPath(session.SessionID)+"/render", "application/json", bytes.NewReader(data), &pdf); err != nil {
		return nil, err
	}
	return pdf.Bytes(), nil
}

// Share returns the public link of the stored session. The server shares from an open
// editor, so one is opened on the stored state for the call and closed afterwards.
func (c *Client) Share(ctx context.Context, sessionID string) (string, error) {
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/editor", nil, nil); err != nil {
		return "", err
	}
	defer func() {
		if err := c.CloseEditor(ctx, sessionID); err != nil {
			c.logger.Warn("Failed to close editor after sharing", "session_id", sessionID, "error", err.Error())
		}
	}()

	var result struct {
		ShareURL string `json:"share_url"`
	}
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/share", nil, &result); err != nil {
		return "", err
	}
	return result.ShareURL, nil
}

// CloseEditor saves and closes the server-side editor of sessionID.
func (c *Client) CloseEditor(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/editor/close", nil, nil)
}

func sessionPath(sessionID string) string {
	return "/anonymizer/sessions/" + url.PathEscape(sessionID)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out)
}

// do sends the request and decodes a 2xx response into out. A *bytes.Buffer receives the raw body.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	c.logger.Debug("API request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if buf, ok := out.(*bytes.Buffer); ok {
		_, err := io.Copy(buf, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Type = payload.Type
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
