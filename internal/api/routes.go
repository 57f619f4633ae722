// Package api provides HTTP handlers for the QC server.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shahcompbio/alhena-lite/internal/hmmcopy"
	"github.com/shahcompbio/alhena-lite/internal/qc"
	"github.com/shahcompbio/alhena-lite/internal/service"
	"github.com/shahcompbio/alhena-lite/internal/session"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Service     *service.QCService
	Cookies     *session.Cookies
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello World!"))
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Session-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(cfg.Cookies.Middleware)

		// The directory is the rest of the path, e.g. /api/shared/run1/
		r.Get("/api/*", loadHandler(cfg.Service))
		r.Get("/cell_ids", cellIDsHandler(cfg.Service))
		r.Get("/bin/{cell_id}", binHandler(cfg.Service))
	})

	return r
}

// loadHandler loads a dataset directory into the session and returns the
// GC-bias curves and cells with nested segments.
func loadHandler(svc *service.QCService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := session.IDFromContext(r.Context())
		payload, err := svc.Load(r.Context(), sid, chi.URLParam(r, "*"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func cellIDsHandler(svc *service.QCService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := svc.CellIDs(session.IDFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ids)
	}
}

func binHandler(svc *service.QCService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bins, err := svc.CellBins(session.IDFromContext(r.Context()), chi.URLParam(r, "cell_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bins)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoData), errors.Is(err, service.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, hmmcopy.ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, hmmcopy.ErrMalformedDataset), errors.Is(err, qc.ErrDatasetShape):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	// Encode first so a failure can still produce an error status.
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("[API] failed to encode response: %v", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
	w.Write([]byte("\n"))
}
