package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *AuthHandler,
	sessionHandler *SessionHandler,
	editorHandler *EditorHandler,
	authMiddleware Middleware,
	rateLimit Middleware,
	metrics http.Handler,
	allowedOrigins []string,
) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "resume-anonymizer"})
	}).Methods("GET")

	if metrics != nil {
		router.Handle("/metrics", metrics).Methods("GET")
	}

	// Protected routes (require authentication)
	api := router.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(authMiddleware), mux.MiddlewareFunc(rateLimit))

	api.HandleFunc("/auth/validate", authHandler.ValidateToken).Methods("GET")

	anon := api.PathPrefix("/anonymizer").Subrouter()
	anon.HandleFunc("/detect-pii", editorHandler.DetectPII).Methods("POST")

	// Session routes
	anon.HandleFunc("/sessions", sessionHandler.ListSessions).Methods("GET")
	anon.HandleFunc("/sessions", sessionHandler.SaveSession).Methods("POST")
	anon.HandleFunc("/sessions/{id}", sessionHandler.GetSession).Methods("GET")
	anon.HandleFunc("/sessions/{id}", sessionHandler.DeleteSession).Methods("DELETE")
	anon.HandleFunc("/sessions/{id}/download", editorHandler.Download).Methods("POST")
	anon.HandleFunc("/sessions/{id}/render", editorHandler.Render).Methods("POST")
	anon.HandleFunc("/sessions/{id}/share", editorHandler.Share).Methods("POST")

	// Editor routes
	editor := anon.PathPrefix("/sessions/{id}/editor").Subrouter()
	editor.HandleFunc("", editorHandler.OpenEditor).Methods("POST")
	editor.HandleFunc("", editorHandler.GetEditor).Methods("GET")
	editor.HandleFunc("/detections/{index}/toggle", editorHandler.ToggleDetection).Methods("POST")
	editor.HandleFunc("/detections/{index}/replacement", editorHandler.SetReplacement).Methods("PUT")
	editor.HandleFunc("/blur-all", editorHandler.BlurAll).Methods("POST")
	editor.HandleFunc("/reveal-all", editorHandler.RevealAll).Methods("POST")
	editor.HandleFunc("/selection", editorHandler.ApplySelection).Methods("POST")
	editor.HandleFunc("/manual-blurs/{blurId}", editorHandler.RemoveManualBlur).Methods("DELETE")
	editor.HandleFunc("/viewer", editorHandler.Viewer).Methods("POST")
	editor.HandleFunc("/save", editorHandler.Save).Methods("POST")
	editor.HandleFunc("/close", editorHandler.Close).Methods("POST")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
