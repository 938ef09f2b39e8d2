// Package api provides the admin HTTP API of the ex-gratia assistant.
//
// It exposes a health check, direct status lookups, the submission log, a
// JSON chat endpoint driven by the dialog controller and, when the Twilio
// transport is active, the Twilio inbound webhook.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartgov/exgratia/internal/models"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	maxBodyBytes = 64 << 10
)

// StatusLookup resolves an application ID.
type StatusLookup interface {
	Lookup(ctx context.Context, applicationID string) (models.LookupResult, error)
}

// SubmissionLog stores and lists submissions.
type SubmissionLog interface {
	Append(s models.Submission) (models.Submission, error)
	List() ([]models.Submission, error)
}

// ChatHandler answers one inbound event with a view.
type ChatHandler interface {
	Handle(ctx context.Context, ev models.Event) models.View
}

// Pinger reports whether a backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Opts holds optional server dependencies and settings.
type Opts struct {
	Addr          string
	Submissions   SubmissionLog
	Chat          ChatHandler
	TwilioWebhook http.HandlerFunc
	Pingers       map[string]Pinger
}

// Option defines a configuration option for the Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSubmissions enables the submission endpoints.
func WithSubmissions(log SubmissionLog) Option {
	return func(o *Opts) { o.Submissions = log }
}

// WithChat enables POST /api/chat.
func WithChat(h ChatHandler) Option {
	return func(o *Opts) { o.Chat = h }
}

// WithTwilioWebhook mounts the Twilio inbound webhook at /webhook/twilio.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// WithHealthCheck adds a named dependency to the health report.
func WithHealthCheck(name string, p Pinger) Option {
	return func(o *Opts) {
		if o.Pingers == nil {
			o.Pingers = make(map[string]Pinger)
		}
		o.Pingers[name] = p
	}
}

// Server is the admin HTTP API.
type Server struct {
	lookup StatusLookup
	opts   Opts
	mux    *http.ServeMux
}

// NewServer builds the API around a status lookup.
func NewServer(lookup StatusLookup, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{lookup: lookup, opts: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.healthHandler)
	s.mux.HandleFunc("GET /api/status/{id}", s.statusHandler)
	if s.opts.Submissions != nil {
		s.mux.HandleFunc("POST /api/submissions", s.createSubmissionHandler)
		s.mux.HandleFunc("GET /api/submissions", s.listSubmissionsHandler)
	}
	if s.opts.Chat != nil {
		s.mux.HandleFunc("POST /api/chat", s.chatHandler)
	}
	if s.opts.TwilioWebhook != nil {
		s.mux.HandleFunc("/webhook/twilio", s.opts.TwilioWebhook)
	}
}

// Handler returns the routed handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("API server failed", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	slog.Info("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("API request", "method", r.Method, "path", r.URL.Path, "status", rec.code, "duration", time.Since(start))
	})
}
