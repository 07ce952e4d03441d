package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"resume-anonymizer/internal/domain"

	"github.com/sony/gobreaker/v2"
)

const maxErrorBody = 512

// BreakerSettings configures the circuit breaker around the PII service.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

// DefaultBreakerSettings trips after half of at least five requests in a window fail.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.5,
	}
}

// PIIClient calls the external PII detection and PDF rendering service.
type PIIClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     domain.Logger
}

func NewPIIClient(baseURL string, timeout time.Duration, settings BreakerSettings, logger domain.Logger) *PIIClient {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "pii-service",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests &&
				failureRatio >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
		// The document being rejected says nothing about the service's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrUnprocessableDocument)
		},
	})

	return &PIIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		logger:     logger,
	}
}

// DetectPII uploads a PDF and returns the spans the service found.
func (c *PIIClient) DetectPII(ctx context.Context, filename string, file io.Reader) (*domain.DetectionResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	data, err := c.post(ctx, "/detect-pii", w.FormDataContentType(), body.Bytes())
	if err != nil {
		return nil, err
	}

	var result domain.DetectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed detection response: %v", domain.ErrUnprocessableDocument, err)
	}
	if result.Filename == "" {
		result.Filename = filename
	}
	if result.Detections == nil {
		result.Detections = []domain.Detection{}
	}

	c.logger.Info("PII detected",
		"file_id", result.FileID,
		"num_pages", result.NumPages,
		"detections", len(result.Detections))
	return &result, nil
}

// GenerateAnonymizedPDF renders the final PDF with the requested regions redacted.
func (c *PIIClient) GenerateAnonymizedPDF(ctx context.Context, req *domain.AnonymizeRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	pdf, err := c.post(ctx, "/generate-anonymized-pdf", "application/json", payload)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty PDF returned", domain.ErrUnprocessableDocument)
	}
	return pdf, nil
}

// State reports the breaker state for health output.
func (c *PIIClient) State() string {
	return c.breaker.State().String()
}

func (c *PIIClient) post(ctx context.Context, path, contentType string, payload []byte) ([]byte, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)

		c.logger.Debug("PII service request", "path", path, "bytes", len(payload))
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPIIServiceUnavailable, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrPIIServiceUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d: %s", domain.ErrPIIServiceUnavailable, resp.StatusCode, truncate(body))
		default:
			return nil, fmt.Errorf("%w: status %d: %s", domain.ErrUnprocessableDocument, resp.StatusCode, truncate(body))
		}
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrPIIServiceUnavailable, err)
	}
	if err != nil {
		c.logger.Error("PII service call failed", err, "path", path)
		return nil, err
	}
	return data, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
