// Package filtersync keeps one view's filter state, category list and
// transaction series in step with the backend.
package filtersync

import (
	"context"
	"errors"
	"sync"
	"time"

	"moneyviz/internal/core"
	applog "moneyviz/internal/log"
	"moneyviz/internal/metrics"
)

// Fetch kinds reported to the Recorder.
const (
	KindCategories   = "categories"
	KindTransactions = "transactions"
)

// Fetcher is the backend surface the client needs.
type Fetcher interface {
	Categories(ctx context.Context) ([]string, error)
	Transactions(ctx context.Context, f core.FilterState) (core.Series, error)
}

// Recorder receives one observation per finished fetch.
type Recorder interface {
	RecordFetch(kind, outcome string, d time.Duration)
}

// Status is the lifecycle state of the transaction series.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// View is a consistent copy of the client state for rendering.
type View struct {
	Filter     core.FilterState
	Categories []string
	Series     core.Series
	// HasSeries is false until the first series arrives. The chart is only
	// drawn once it is true.
	HasSeries bool
	Status    Status
	Error     string
	Seq       uint64
}

// Client synchronises a single view with the backend. Safe for concurrent use.
type Client struct {
	fetcher  Fetcher
	logger   *applog.Logger
	recorder Recorder
	now      func() time.Time

	mountOnce sync.Once

	mu         sync.Mutex
	state      core.FilterState
	categories []string
	series     core.Series
	hasSeries  bool
	status     Status
	lastErr    error
	seq        uint64
	cancel     context.CancelFunc
	closed     bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *applog.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(applog.ComponentFilterSync) }
}

// WithRecorder sets where fetch outcomes are counted.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithInitialState overrides the default filter state.
func WithInitialState(f core.FilterState) Option {
	return func(c *Client) { c.state = f.Normalize() }
}

// New creates a client in the default filter state with an empty category list.
func New(fetcher Fetcher, opts ...Option) *Client {
	c := &Client{
		fetcher:    fetcher,
		logger:     applog.Discard(),
		now:        time.Now,
		state:      core.DefaultFilterState(),
		categories: []string{},
		status:     StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount loads the category list once per client lifetime, then issues the
// initial transactions request for the current filter state.
func (c *Client) Mount(ctx context.Context) error {
	var catErr error
	c.mountOnce.Do(func() {
		catErr = c.LoadCategories(ctx)
	})
	txErr := c.LoadTransactions(ctx)
	if errors.Is(txErr, core.ErrSuperseded) {
		txErr = nil
	}
	return errors.Join(catErr, txErr)
}

// LoadCategories replaces the category list with the backend's, with the
// "all categories" sentinel "" first. On failure the list is left as it was.
func (c *Client) LoadCategories(ctx context.Context) error {
	start := c.now()
	cats, err := c.fetcher.Categories(ctx)
	if err != nil {
		c.record(KindCategories, outcomeFor(err), start)
		c.logger.WarnContext(ctx, "Failed to load categories",
			applog.FieldOperation, applog.OpLoadCategories,
			applog.FieldError, err)
		return err
	}

	list := make([]string, 0, len(cats)+1)
	list = append(list, "")
	for _, name := range cats {
		if name == "" {
			continue
		}
		list = append(list, name)
	}

	c.mu.Lock()
	c.categories = list
	c.mu.Unlock()

	c.record(KindCategories, metrics.OutcomeLoaded, start)
	c.logger.DebugContext(ctx, "Categories loaded", applog.FieldRecords, len(list)-1)
	return nil
}

// LoadTransactions fetches the series for the current filter state. Each
// call supersedes the previous one: the older request is cancelled and, if
// its response still arrives, it is discarded with ErrSuperseded.
//
// An empty response is not an error; it moves the client to StatusEmpty.
// A failed request keeps the previous series and moves to StatusError.
func (c *Client) LoadTransactions(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return context.Canceled
	}
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	state := c.state
	prevStatus := c.status
	if prevStatus == StatusLoading {
		prevStatus = c.settledStatus()
	}
	c.status = StatusLoading
	c.mu.Unlock()
	defer cancel()

	start := c.now()
	series, err := c.fetcher.Transactions(reqCtx, state)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		c.record(KindTransactions, metrics.OutcomeSuperseded, start)
		c.logger.DebugContext(ctx, "Discarding superseded transactions response",
			applog.FieldSeq, seq,
			applog.FieldLatestSeq, c.seq)
		return core.ErrSuperseded
	}
	c.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) && !core.IsNetworkError(err) {
			c.status = prevStatus
			c.record(KindTransactions, metrics.OutcomeCanceled, start)
			return err
		}
		c.status = StatusError
		c.lastErr = err
		c.record(KindTransactions, metrics.OutcomeError, start)
		c.logger.WarnContext(ctx, "Failed to load transactions",
			applog.FieldOperation, applog.OpLoadTransactions,
			applog.FieldSeq, seq,
			applog.FieldError, err)
		return err
	}

	if series == nil {
		series = core.Series{}
	}
	c.series = series
	c.hasSeries = true
	c.lastErr = nil
	if len(series) == 0 {
		c.status = StatusEmpty
		c.record(KindTransactions, metrics.OutcomeEmpty, start)
	} else {
		c.status = StatusLoaded
		c.record(KindTransactions, metrics.OutcomeLoaded, start)
	}
	return nil
}

// settledStatus is the status implied by the data already held. Callers
// hold c.mu.
func (c *Client) settledStatus() Status {
	switch {
	case c.lastErr != nil:
		return StatusError
	case !c.hasSeries:
		return StatusIdle
	case len(c.series) == 0:
		return StatusEmpty
	default:
		return StatusLoaded
	}
}

// Update replaces the filter state with its normalised form and reloads.
func (c *Client) Update(ctx context.Context, f core.FilterState) error {
	f = f.Normalize()
	c.mu.Lock()
	c.state = f
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Filter updated",
		applog.NewFields().WithFilter(f.Category, f.StartDate, f.EndDate, f.Smoothing.String(), f.Radius).ToSlice()...)
	return c.LoadTransactions(ctx)
}

// State returns the current filter state.
func (c *Client) State() core.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of everything a renderer needs.
func (c *Client) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Filter:     c.state,
		Categories: append([]string(nil), c.categories...),
		Series:     append(core.Series(nil), c.series...),
		HasSeries:  c.hasSeries,
		Status:     c.status,
		Seq:        c.seq,
	}
	switch {
	case c.status == StatusError && c.lastErr != nil:
		v.Error = c.lastErr.Error()
	case c.status == StatusEmpty:
		v.Error = core.ErrEmptyResult.Error()
	}
	return v
}

// Close cancels any request in flight. Later loads fail with context.Canceled.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Client) record(kind, outcome string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordFetch(kind, outcome, c.now().Sub(start))
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, context.Canceled) && !core.IsNetworkError(err) {
		return metrics.OutcomeCanceled
	}
	return metrics.OutcomeError
}
