package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"moneyviz/internal/amqp"
	"moneyviz/internal/cache"
	"moneyviz/internal/core"
	applog "moneyviz/internal/log"
	"moneyviz/internal/smoothing"
)

// MaxSpanDays bounds the number of days in one series, a little over ten
// years.
const MaxSpanDays = 3700

// ErrSpanTooLarge is returned for a query whose resolved date range is
// longer than MaxSpanDays.
var ErrSpanTooLarge = fmt.Errorf("date range longer than %d days", MaxSpanDays)

// Store is the read side of the transaction repository.
type Store interface {
	ListCategories(ctx context.Context) ([]string, error)
	DailyTotals(ctx context.Context, category string, start, end core.Date) ([]core.DailyTotal, error)
}

// CacheRecorder counts series cache lookups and the import notifications
// that invalidate them.
type CacheRecorder interface {
	RecordSeriesCache(hit bool)
	RecordImportNotification(status string)
}

// SeriesQuery is a validated request for one chart series.
type SeriesQuery struct {
	Category  string
	Start     core.Date
	End       core.Date
	Smoothing core.SmoothingMode
	Radius    int
}

func (q SeriesQuery) key() string {
	var b strings.Builder
	b.WriteString(q.Category)
	b.WriteByte('|')
	if !q.Start.IsZero() {
		b.WriteString(q.Start.String())
	}
	b.WriteByte('|')
	if !q.End.IsZero() {
		b.WriteString(q.End.String())
	}
	b.WriteByte('|')
	b.WriteString(q.Smoothing.String())
	if q.Smoothing.Enabled() {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(q.Radius))
	}
	return b.String()
}

// SeriesService builds chart series from stored daily totals. Results are
// cached per query and concurrent identical queries share one store read.
type SeriesService struct {
	store    Store
	cache    *cache.LRUCache[core.Series]
	group    singleflight.Group
	recorder CacheRecorder
	logger   *applog.Logger

	// generation is bumped on every purge so loads started before it
	// cannot repopulate the cache with stale data.
	generation atomic.Uint64
}

// SeriesOption configures a SeriesService.
type SeriesOption func(*SeriesService)

// WithCacheRecorder reports cache hits and misses.
func WithCacheRecorder(r CacheRecorder) SeriesOption {
	return func(s *SeriesService) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *applog.Logger) SeriesOption {
	return func(s *SeriesService) { s.logger = l.WithComponent(applog.ComponentAPI) }
}

func NewSeriesService(store Store, cacheSize int, ttl time.Duration, opts ...SeriesOption) *SeriesService {
	s := &SeriesService{
		store:  store,
		cache:  cache.NewLRUCache[core.Series](cacheSize, ttl),
		logger: applog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories lists every category id, sorted.
func (s *SeriesService) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Series returns the gap-filled, optionally smoothed series for q. The
// result is never nil.
func (s *SeriesService) Series(ctx context.Context, q SeriesQuery) (core.Series, error) {
	key := q.key()

	if cached, ok := s.cache.Get(key); ok {
		s.recordCache(true)
		return clone(cached), nil
	}
	s.recordCache(false)

	gen := s.generation.Load()
	ch := s.group.DoChan(strconv.FormatUint(gen, 10)+"#"+key, func() (any, error) {
		// detached so one caller giving up does not fail the others
		series, err := s.build(context.WithoutCancel(ctx), q)
		if err != nil {
			return nil, err
		}
		if s.generation.Load() == gen {
			s.cache.Set(key, series)
		}
		return series, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.(core.Series)), nil
	}
}

func (s *SeriesService) build(ctx context.Context, q SeriesQuery) (core.Series, error) {
	totals, err := s.store.DailyTotals(ctx, q.Category, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	if days := spanDays(totals, q.Start, q.End); days > MaxSpanDays {
		return nil, fmt.Errorf("%w: %d days", ErrSpanTooLarge, days)
	}
	points := smoothing.FillGaps(totals, q.Start, q.End)
	points = smoothing.Apply(points, q.Smoothing, q.Radius)
	return smoothing.ToSeries(points), nil
}

// spanDays is the number of days FillGaps would produce for the range,
// with open bounds taken from the totals.
func spanDays(totals []core.DailyTotal, start, end core.Date) int {
	if len(totals) > 0 {
		if start.IsZero() {
			start = totals[0].Date
		}
		if end.IsZero() {
			end = totals[len(totals)-1].Date
		}
	}
	if start.IsZero() || end.IsZero() || start.After(end.Time) {
		return 0
	}
	return int(end.Sub(start.Time).Hours()/24) + 1
}

// Invalidate drops every cached series and returns how many were dropped.
func (s *SeriesService) Invalidate() int {
	s.generation.Add(1)
	return s.cache.Purge()
}

// Cleaner exposes the series cache to a cache.Manager sweep.
func (s *SeriesService) Cleaner() cache.Cleaner {
	return s.cache
}

// HandleImportCompleted invalidates cached series after new transactions
// were imported. It is the AMQP consumer callback of the API.
func (s *SeriesService) HandleImportCompleted(ctx context.Context, msg *amqp.ImportCompletedMessage) error {
	dropped := s.Invalidate()
	if s.recorder != nil {
		s.recorder.RecordImportNotification("invalidated")
	}
	s.logger.InfoContext(ctx, "Series cache invalidated after import",
		applog.FieldFile, strings.Join(msg.Files, ","),
		applog.FieldRecords, msg.Inserted,
		"dropped", dropped)
	return nil
}

func (s *SeriesService) recordCache(hit bool) {
	if s.recorder != nil {
		s.recorder.RecordSeriesCache(hit)
	}
}

func clone(in core.Series) core.Series {
	out := make(core.Series, len(in))
	copy(out, in)
	return out
}
