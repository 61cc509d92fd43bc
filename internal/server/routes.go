package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		// Memory endpoints. Every operation reads its input from the JSON body.
		r.Post("/memories", s.handleCreateMemory)
		r.Patch("/memories", s.handleUpdateMemory)
		r.Delete("/memories", s.handleDeleteMemory)
		r.Post("/memories/get", s.handleGetMemory)
		r.Post("/memories/user", s.handleGetUserMemories)

		r.Post("/embeddings", s.handleEmbed)
	})
}

// handleHealth returns health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"name":   "memory-engine",
	})
}

// handleStatus reports whether the database is reachable
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":   "ready",
		"database": s.dbDriver.Type(),
	}

	if err := s.dbDriver.Ping(r.Context()); err != nil {
		s.logger.Warn("Database ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["error"] = err.Error()
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
