package domain

import "errors"

// Domain errors
var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrAccessDenied          = errors.New("access denied")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidFile           = errors.New("invalid file")
	ErrFileTooLarge          = errors.New("file too large")
	ErrDetectionNotFound     = errors.New("detection not found")
	ErrManualBlurNotFound    = errors.New("manual blur not found")
	ErrEditorNotOpen         = errors.New("editor not open")
	ErrPIIServiceUnavailable = errors.New("pii service unavailable")
	ErrUnprocessableDocument = errors.New("document could not be processed")
	ErrSessionNotSaved       = errors.New("session could not be saved")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
