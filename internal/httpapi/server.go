// Package httpapi serves the JSON backend the chart view reads from:
// category ids and daily transaction series.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"moneyviz/internal/core"
	applog "moneyviz/internal/log"
	"moneyviz/internal/middleware/ratelimit"
	"moneyviz/internal/middleware/security"
	"moneyviz/internal/middleware/trace"
	"moneyviz/internal/services"
)

// SeriesProvider answers the two data endpoints.
type SeriesProvider interface {
	Categories(ctx context.Context) ([]string, error)
	Series(ctx context.Context, q services.SeriesQuery) (core.Series, error)
}

// ReadinessChecker reports whether the store can serve requests.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (version int64, dirty bool, err error)
}

// Metrics is the subset of the metrics registry the API reports to.
type Metrics interface {
	trace.Recorder
	RecordRateLimited()
	Handler() http.Handler
}

// Options tunes the API server.
type Options struct {
	Logger             *applog.Logger
	Metrics            Metrics
	ClientIP           *security.ClientIPResolver
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

type Server struct {
	series   SeriesProvider
	ready    ReadinessChecker
	validate *validator.Validate
	logger   *applog.Logger
	metrics  Metrics
	clientIP *security.ClientIPResolver
	limiter  *ratelimit.Limiter
	timeout  time.Duration
	handler  http.Handler
}

func New(series SeriesProvider, ready ReadinessChecker, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.ClientIP == nil {
		resolver, err := security.NewClientIPResolver()
		if err != nil {
			return nil, err
		}
		opts.ClientIP = resolver
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	logger := opts.Logger.WithComponent(applog.ComponentAPI)
	s := &Server{
		series:   series,
		ready:    ready,
		validate: newValidator(),
		logger:   logger,
		metrics:  opts.Metrics,
		clientIP: opts.ClientIP,
		timeout:  opts.RequestTimeout,
	}

	rlConfig := ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}
	if opts.Metrics != nil {
		rlConfig.OnLimit = opts.Metrics.RecordRateLimited
	}
	s.limiter = ratelimit.NewLimiter(rlConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("GET /transactions", s.handleTransactions)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "no such endpoint: "+r.URL.Path)
	})

	var recorder trace.Recorder
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}
	var h http.Handler = mux
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(logger)(h)
	h = s.limiter.Middleware(s.clientIP.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, please try again later")
	})(h)
	h = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(logger, s.clientIP.ClientIP, recorder).Middleware(h)
	s.handler = h
	return s, nil
}

// Handler returns the fully wrapped API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Limiter exposes the rate limiter so its buckets can be swept.
func (s *Server) Limiter() *ratelimit.Limiter {
	return s.limiter
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	cats, err := s.series.Categories(ctx)
	if err != nil {
		requestLog(ctx).LogError(ctx, "Failed to list categories", err, applog.ComponentAPI, applog.OpLoadCategories, nil)
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []string{}
	}
	_ = writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q, known, err := parseTransactionsQuery(s.validate, r.URL.Query())
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Invalid transactions query",
			applog.FieldQuery, r.URL.RawQuery,
			applog.FieldError, err)
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, validationMessage(err))
		return
	}
	if !known {
		_ = writeJSON(w, http.StatusOK, core.Series{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	series, err := s.series.Series(ctx, q)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			return
		}
		if errors.Is(err, services.ErrSpanTooLarge) {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, err.Error())
			return
		}
		fields := applog.NewFields().WithFilter(q.Category, dateString(q.Start), dateString(q.End), q.Smoothing.String(), q.Radius)
		requestLog(ctx).LogError(ctx, "Failed to build series", err, applog.ComponentAPI, applog.OpLoadTransactions, fields)
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "series query timed out")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to build series")
		return
	}
	_ = writeJSON(w, http.StatusOK, series)
}

// requestLog returns the request-scoped logger, which carries the request ID.
func requestLog(ctx context.Context) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(ctx))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ready.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "database unavailable")
		return
	}
	version, dirty, err := s.ready.SchemaVersion(ctx)
	if err != nil || dirty || version == 0 {
		s.logger.WarnContext(ctx, "Schema not ready", "version", version, "dirty", dirty, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "database schema not migrated")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func dateString(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
