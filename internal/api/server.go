// Package api provides the HTTP server for avatargw: one thin route per
// submission operation, the polling routes, job history, drafts and the
// notification event stream.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/health"
	"github.com/avatarstudio/avatargw/internal/job"
	"github.com/avatarstudio/avatargw/internal/notify"
)

const defaultRequestTimeout = 10 * time.Minute

// Server is the avatargw HTTP API server.
type Server struct {
	jobs           *job.Service
	bridge         *notify.Bridge
	events         http.Handler // SSE hub (nil if not set)
	history        History
	drafts         domain.DraftStore
	checker        *health.Checker
	version        string
	metricsEnabled bool
	corsOrigins    []string
	requestTimeout time.Duration
	log            *slog.Logger
}

// NewServer creates a new API server.
func NewServer(jobs *job.Service, bridge *notify.Bridge) *Server {
	if bridge == nil {
		bridge = notify.NewBridge(nil, nil, nil)
	}
	return &Server{
		jobs:           jobs,
		bridge:         bridge,
		version:        "dev",
		requestTimeout: defaultRequestTimeout,
		log:            slog.Default().With("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetEvents mounts the notification event stream at /api/events.
func (s *Server) SetEvents(h http.Handler) { s.events = h }

// History is the read side of the job history. Implemented by sqlite.DB.
type History interface {
	ListJobs(limit int) ([]domain.JobRecord, error)
	GetJob(vendor domain.Vendor, taskID string) (*domain.JobRecord, error)
}

// SetHistory enables the /api/jobs routes.
func (s *Server) SetHistory(h History) { s.history = h }

// SetDrafts enables the /api/drafts routes.
func (s *Server) SetDrafts(d domain.DraftStore) { s.drafts = d }

// SetHealth reports checker results on /health.
func (s *Server) SetHealth(c *health.Checker) { s.checker = c }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// SetCORSOrigins restricts allowed origins. Empty or "*" allows all.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// SetRequestTimeout bounds non-streaming requests.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.requestTimeout = d
	}
}

// SetLogger sets the request and error logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l.With("component", "api")
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(s.localeMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	// Streaming routes stay outside the request timeout.
	if s.events != nil {
		r.Get("/api/events", s.events.ServeHTTP)
	}
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Route("/api", func(r chi.Router) {
			// Submissions
			r.Post("/audio/separate", handleSubmit(s, s.jobs.SeparateAudio, true))
			r.Post("/toolkit", handleSubmit(s, s.jobs.RunToolkit, true))
			r.Post("/lipsync", handleSubmit(s, s.jobs.SubmitLipSync, false))
			r.Post("/lipsync/prompt", handleSubmit(s, s.jobs.SubmitPromptLipSync, false))
			r.Post("/talking-head", handleSubmit(s, s.jobs.SubmitTalkingHead, true))
			r.Post("/avatars", handleSubmit(s, s.jobs.CreateAvatar, false))
			r.Post("/chanjing/videos", handleSubmit(s, s.jobs.CreateChanjingVideo, false))
			r.Post("/hedra", handleSubmit(s, s.jobs.SubmitHedra, false))
			r.Post("/topview", handleSubmit(s, s.jobs.SubmitTopView, false))
			r.Post("/tts", handleSubmit(s, s.jobs.SynthesizeSpeech, false))
			r.Post("/upload", s.handleUpload)

			// Polling
			r.Post("/poll-inline", s.handlePollInline)
			r.Post("/jobs/{vendor}/{taskId}/poll", s.handlePoll)
			if s.history != nil {
				r.Get("/jobs", s.handleListJobs)
				r.Get("/jobs/{vendor}/{taskId}", s.handleGetJob)
			}

			// Drafts
			if s.drafts != nil {
				r.Route("/drafts/{kind}", func(r chi.Router) {
					r.Get("/", s.handleListDrafts)
					r.Get("/{key}", s.handleGetDraft)
					r.Put("/{key}", s.handlePutDraft)
					r.Delete("/{key}", s.handleDeleteDraft)
				})
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.checker.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.checker.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRaw writes an already encoded JSON document.
func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(raw)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// corsMiddleware adds CORS headers for browser clients.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if len(s.corsOrigins) == 0 {
		return "*"
	}
	for _, o := range s.corsOrigins {
		if o == "*" {
			return "*"
		}
		if o == origin {
			return origin
		}
	}
	return ""
}

// localeMiddleware resolves Accept-Language once per request.
func (s *Server) localeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := s.bridge.Locales().Match(r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(notify.WithLocale(r.Context(), locale)))
	})
}

// requestLogger logs one line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
