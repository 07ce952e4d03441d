package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"resume-anonymizer/internal/anonymizer"
	"resume-anonymizer/internal/domain"
	"resume-anonymizer/internal/metrics"

	"github.com/google/uuid"
)

// DetectionService turns an uploaded PDF into a new session with an open editor.
type DetectionService struct {
	detector    domain.PIIDetector
	inspector   PDFInspector
	storage     domain.StorageService // optional
	editors     *EditorService
	metrics     *metrics.Metrics
	logger      domain.Logger
	maxFileSize int64
}

func NewDetectionService(
	detector domain.PIIDetector,
	inspector PDFInspector,
	storage domain.StorageService,
	editors *EditorService,
	maxFileSize int64,
	m *metrics.Metrics,
	logger domain.Logger,
) *DetectionService {
	return &DetectionService{
		detector:    detector,
		inspector:   inspector,
		storage:     storage,
		editors:     editors,
		metrics:     m,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// Upload validates the file, runs PII detection, stores the original, creates the session,
// saves it and opens its editor. Nothing leaves the process if validation fails.
func (s *DetectionService) Upload(ctx context.Context, userID, filename string, file io.Reader, token string) (*EditorState, error) {
	if err := domain.ValidatePDFFilename(filename); err != nil {
		return nil, err
	}

	fileBytes, err := io.ReadAll(io.LimitReader(file, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(fileBytes)) > s.maxFileSize {
		return nil, domain.ErrFileTooLarge
	}

	info, err := s.inspector.Inspect(fileBytes)
	if err != nil {
		return nil, err
	}

	result, err := s.detector.DetectPII(ctx, filepath.Base(filename), bytes.NewReader(fileBytes))
	if s.metrics != nil {
		s.metrics.DetectionRequests.WithLabelValues(metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("PII detection failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.DetectedSpans.Add(float64(len(result.Detections)))
	}

	session := s.newSession(userID, filename, info, result)

	if session.OriginalURL == "" && s.storage != nil {
		path := fmt.Sprintf("%s/%s.pdf", userID, session.FileID)
		url, err := s.storage.Upload(ctx, path, bytes.NewReader(fileBytes), token)
		if err != nil {
			// The editor works without the original; only the preview link is lost.
			s.logger.Warn("Failed to store original upload", "file_id", session.FileID, "error", err.Error())
		} else {
			session.OriginalURL = url
		}
	}

	return s.editors.Start(ctx, userID, session, token)
}

func (s *DetectionService) newSession(userID, filename string, info PDFMetadata, result *domain.DetectionResult) *domain.Session {
	numPages := result.NumPages
	if numPages <= 0 {
		numPages = info.PageCount
	}
	fileID := result.FileID
	if fileID == "" {
		fileID = uuid.NewString()
	}
	name := result.Filename
	if name == "" {
		name = filepath.Base(filename)
	}

	store := anonymizer.NewDetectionStore(nil)
	for _, d := range result.Detections {
		if err := d.Validate(numPages); err != nil {
			s.logger.Warn("Dropping invalid detection", "file_id", fileID, "page", d.Page, "error", err.Error())
			continue
		}
		store.Add(d)
	}

	return &domain.Session{
		SessionID:   uuid.NewString(),
		UserID:      userID,
		FileID:      fileID,
		Filename:    name,
		OriginalURL: result.OriginalURL,
		Detections:  store.All(),
		ManualBlurs: []domain.ManualBlur{},
		NumPages:    numPages,
	}
}
