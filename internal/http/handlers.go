package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"moneyviz/internal/core"
	"moneyviz/internal/filtersync"
	applog "moneyviz/internal/log"
)

// handleIndex starts a fresh session and renders the whole page. Filter
// fields in the query string seed the session; the page uses this to
// rebuild itself after its session was lost.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	f, errResp := ParseFilterRequest(r, core.DefaultFilterState())
	if errResp != nil {
		errResp.Write(w)
		return
	}

	s.sessions.delete(sessionID(r))
	client := s.startSession(w, r, filtersync.WithInitialState(f))

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := client.Mount(ctx); err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logLoadError(ctx, "Initial load failed", err, client.State())
	}

	s.render(w, r, "index.html", newPageModel(client.Snapshot()), nil)
}

// handleView applies the filter form to the session's client and renders
// the chart partial. A request overtaken by a newer one from the same
// session gets 204 so the page keeps the newer result.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	client, ok := s.sessions.get(sessionID(r))
	base := core.DefaultFilterState()
	if ok {
		base = client.State()
	}

	f, errResp := ParseFilterRequest(r, base)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var err error
	restarted := !ok
	if restarted {
		// expired or unknown session: start over from the submitted form
		client = s.startSession(w, r, filtersync.WithInitialState(f))
		err = client.Mount(ctx)
	} else {
		err = client.Update(ctx, f)
	}

	switch {
	case errors.Is(err, core.ErrSuperseded):
		NoContent().Write(w)
		return
	case err != nil && r.Context().Err() != nil:
		// the browser dropped the request; nobody is waiting for a body
		return
	case err != nil:
		s.logLoadError(ctx, "Transactions load failed", err, f)
	}

	v := client.Snapshot()
	b := NewHTMXResponse().TriggerSeriesUpdated(v.Seq, string(v.Status))
	if restarted {
		b.TriggerSessionRestarted()
	}
	s.render(w, r, "chart", newPageModel(v), b)
}

// handleSeries returns the session's current series as JSON.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	client, ok := s.sessions.get(sessionID(r))
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no active session"}`))
		return
	}

	v := client.Snapshot()
	series := v.Series
	if series == nil {
		series = core.Series{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-MoneyViz-Status", string(v.Status))
	_ = json.NewEncoder(w).Encode(series)
}

// startSession registers a new session with its own client.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, opts ...filtersync.Option) *filtersync.Client {
	client := s.newClient(opts...)
	id := s.sessions.create(client)
	s.sessions.setCookie(w, r, id)
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Session started", applog.FieldSessionID, id)
	return client
}

// render executes a template into a buffer first so a failing template
// never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data pageModel, b *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		requestLog(r.Context()).LogError(r.Context(), "Template execution failed", err, applog.ComponentTemplate, applog.OpRender,
			applog.NewFields().WithOperation(name))
		InternalServerError("Rendering failed").Write(w)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	b.Header("Content-Type", "text/html; charset=utf-8").Body(buf.Bytes()).Write(w)
}

func (s *Server) logLoadError(ctx context.Context, msg string, err error, f core.FilterState) {
	fields := applog.NewFields().
		WithFilter(f.Category, f.StartDate, f.EndDate, f.Smoothing.String(), f.Radius)
	requestLog(ctx).LogError(ctx, msg, err, applog.ComponentHTTP, applog.OpLoadTransactions, fields)
}

// requestLog returns the request-scoped logger, which carries the request ID.
func requestLog(ctx context.Context) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(ctx))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks templates and backend reachability.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.fetcher.Categories(ctx); err != nil {
		checks["backend"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	checks["sessions"] = map[string]any{"active": s.sessions.count()}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
