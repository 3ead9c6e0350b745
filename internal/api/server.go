// Package api exposes the HTTP interface for the cache service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/cache"
	"github.com/citypulse/eventcache/internal/listing"
	"github.com/citypulse/eventcache/internal/metrics"
)

const requestTimeout = 60 * time.Second

var errInvalidCoord = errors.New("lat/lon must be decimal degrees")

// Cache is the read/refresh surface the handlers need.
type Cache interface {
	Refresh(ctx context.Context) []listing.Event
	Events(ctx context.Context, target listing.Target) []listing.Event
	CacheStatus() cache.Status
	HealthStatus() cache.HealthReport
	RawCache() listing.Snapshot
}

// Schedule starts and stops the recurring refresh trigger.
type Schedule interface {
	Start()
	Stop()
}

// Server wires HTTP handlers to the cache store and scheduler.
type Server struct {
	router   chi.Router
	cache    Cache
	schedule Schedule
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(c Cache, schedule Schedule, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cache:    c,
		schedule: schedule,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.getEvents)
		r.Post("/refresh", s.postRefresh)
		r.Route("/cache", func(r chi.Router) {
			r.Get("/status", s.getCacheStatus)
			r.Get("/raw", s.getRawCache)
		})
		r.Get("/health", s.getHealth)
		r.Route("/schedule", func(r chi.Router) {
			r.Post("/", s.postSchedule)
			r.Delete("/", s.deleteSchedule)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events := s.cache.Events(r.Context(), target)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	events := s.cache.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"count": len(events)})
}

func (s *Server) getCacheStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.CacheStatus())
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.HealthStatus())
}

func (s *Server) getRawCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.RawCache())
}

func (s *Server) postSchedule(w http.ResponseWriter, _ *http.Request) {
	if s.schedule == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler unavailable")
		return
	}
	s.schedule.Start()
	writeJSON(w, http.StatusOK, map[string]string{"schedule": "started"})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, _ *http.Request) {
	if s.schedule == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler unavailable")
		return
	}
	s.schedule.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"schedule": "stopped"})
}

func parseTarget(r *http.Request) (listing.Target, error) {
	var target listing.Target
	if raw := r.URL.Query().Get("lat"); raw != "" {
		lat, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return target, errInvalidCoord
		}
		target.Lat = lat
	}
	if raw := r.URL.Query().Get("lon"); raw != "" {
		lon, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return target, errInvalidCoord
		}
		target.Lon = lon
	}
	return target, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
