package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/duli1982/aitalentsonardemo-sub003/logger"
)

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.corsMiddleware(s.logRequests(h)))
	}

	handle("GET /health", s.HandleHealth)

	handle("GET /api/jobs", s.HandleListJobs)                   // Job snapshots in registration order
	handle("GET /api/jobs/{id}/results", s.HandleJobResults)    // Recent run results (?limit=)
	handle("POST /api/jobs/{id}/run", s.HandleRunJob)           // Run now, waits for the result
	handle("PATCH /api/jobs/{id}", s.HandleUpdateJob)           // {"enabled": bool}
	handle("GET /api/proposals", s.HandleListProposals)         // Deduplicated, newest first
	handle("POST /api/proposals/{id}/apply", s.HandleApply)     // Mutate, then mark applied
	handle("POST /api/proposals/{id}/dismiss", s.HandleDismiss) // Mark dismissed
	handle("GET /api/candidates/{id}/events", s.HandleCandidateEvents)

	// Preflight for every API path
	handle("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {})

	mux.HandleFunc("GET /ws", s.HandleWebSocket)
	return mux
}

// corsMiddleware sets CORS headers for allowed origins and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+headerUserID)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func (s *Server) logRequests(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		s.logger.Debugw("HTTP request",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
}

// checkOrigin accepts requests without an Origin header and origins that
// start with one of the configured allowed origins, so any port matches.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowed := s.cfg.AllowedOrigins
	if len(allowed) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}
	for _, a := range allowed {
		if strings.HasPrefix(origin, a) {
			return true
		}
	}
	return false
}
