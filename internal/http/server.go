package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"moneyviz/internal/cache"
	"moneyviz/internal/filtersync"
	applog "moneyviz/internal/log"
	"moneyviz/internal/metrics"
	"moneyviz/internal/middleware/ratelimit"
	"moneyviz/internal/middleware/security"
	"moneyviz/internal/middleware/trace"
	appweb "moneyviz/web"
)

// Options tunes the view server. Zero values fall back to defaults.
type Options struct {
	Logger             *applog.Logger
	Metrics            *metrics.Metrics
	ClientIP           *security.ClientIPResolver
	SessionTTL         time.Duration
	MaxSessions        int
	RateLimitPerMinute int
	// RequestTimeout bounds each backend round trip made for a page.
	RequestTimeout  time.Duration
	CleanupInterval time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	fetcher   filtersync.Fetcher
	sessions  *sessionStore
	limiter   *ratelimit.Limiter
	caches    *cache.Manager
	metrics   *metrics.Metrics
	clientIP  *security.ClientIPResolver
	logger    *applog.Logger
	timeout   time.Duration

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, fetcher filtersync.Fetcher, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	if opts.ClientIP == nil {
		resolver, err := security.NewClientIPResolver()
		if err != nil {
			return nil, err
		}
		opts.ClientIP = resolver
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		templates: t,
		fetcher:   fetcher,
		metrics:   opts.Metrics,
		clientIP:  opts.ClientIP,
		logger:    logger,
		timeout:   opts.RequestTimeout,
		caches:    cache.NewManager(opts.Logger),
	}

	var onSessions func(int)
	rlConfig := ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}
	if s.metrics != nil {
		onSessions = s.metrics.SetActiveSessions
		rlConfig.OnLimit = s.metrics.RecordRateLimited
		s.caches.OnSweep(s.metrics.RecordCacheSweep)
	}
	s.sessions = newSessionStore(opts.MaxSessions, opts.SessionTTL, onSessions)
	s.limiter = ratelimit.NewLimiter(rlConfig)

	s.caches.Register("sessions", s.sessions.clients)
	s.caches.Register("rate_limit", s.limiter.Cleaner())
	s.caches.StartCleanup(opts.CleanupInterval)

	// Static assets (served from embedded FS)
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	limited := s.limiter.Middleware(s.clientIP.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").Write(w)
	})
	mux.Handle("GET /{$}", limited(http.HandlerFunc(s.handleIndex)))
	mux.Handle("GET /ui/view", limited(http.HandlerFunc(s.handleView)))
	mux.Handle("GET /ui/series", limited(http.HandlerFunc(s.handleSeries)))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var recorder trace.Recorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	var h http.Handler = mux
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(logger, s.clientIP.ClientIP, recorder).Middleware(h)
	s.Handler = h

	return s, nil
}

// newClient builds the filter client of a new session.
func (s *Server) newClient(extra ...filtersync.Option) *filtersync.Client {
	opts := []filtersync.Option{filtersync.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, filtersync.WithRecorder(s.metrics))
	}
	return filtersync.New(s.fetcher, append(opts, extra...)...)
}

// Shutdown stops background cleanup, closes every session and then shuts
// the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		closed := s.sessions.closeAll()
		s.logger.InfoContext(ctx, "Sessions closed", "count", closed)

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

var templateFuncs = template.FuncMap{
	"radiusLabel": func(r int) string {
		if r == 0 {
			return "off"
		}
		return fmt.Sprintf("%d", r)
	},
}
