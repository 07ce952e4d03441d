package handler

import (
	"encoding/json"
	"net/http"

	"resume-anonymizer/internal/domain"
	apperrors "resume-anonymizer/pkg/errors"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) (*domain.SupabaseUser, bool) {
	user, ok := r.Context().Value(userContextKey).(*domain.SupabaseUser)
	return user, ok
}

// GetTokenFromContext extracts the authentication token from request context
func GetTokenFromContext(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(tokenContextKey).(string)
	return token, ok
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeDomainError maps err onto its HTTP status. Server-side failures are logged without
// exposing their cause, and denied access is logged as a warning.
func writeDomainError(w http.ResponseWriter, logger domain.Logger, err error, fields ...interface{}) {
	appErr := apperrors.FromDomain(err)
	status := apperrors.GetStatusCode(appErr)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("Request failed", err, fields...)
	case apperrors.IsType(appErr, apperrors.ErrorTypeForbidden):
		logger.Warn("Access denied", append(fields, "error", err.Error())...)
	}
	body := map[string]string{"error": appErr.Message, "type": string(appErr.Type)}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	writeJSON(w, status, body)
}

// requestIdentity returns the caller's user ID and token, writing a 401 when absent.
func requestIdentity(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return "", "", false
	}
	token, ok := GetTokenFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Token not found in context")
		return "", "", false
	}
	return user.ID, token, true
}
