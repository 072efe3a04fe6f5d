package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyviz/internal/amqp"
	"moneyviz/internal/core"
)

type fakeStore struct {
	categories []string
	totals     []core.DailyTotal
	err        error
	calls      atomic.Int32
	release    chan struct{}
}

func (s *fakeStore) ListCategories(context.Context) ([]string, error) {
	return s.categories, s.err
}

func (s *fakeStore) DailyTotals(_ context.Context, _ string, _, _ core.Date) ([]core.DailyTotal, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.totals, nil
}

type countingRecorder struct {
	mu            sync.Mutex
	hits, misses  int
	notifications int
}

func (r *countingRecorder) RecordImportNotification(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications++
}

func (r *countingRecorder) RecordSeriesCache(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func rawQuery() SeriesQuery {
	return SeriesQuery{
		Start:     core.NewDate(2024, 1, 1),
		End:       core.NewDate(2024, 1, 4),
		Smoothing: core.SmoothingNone,
	}
}

func TestSeries_GapFilled(t *testing.T) {
	store := &fakeStore{totals: []core.DailyTotal{
		{Date: core.NewDate(2024, 1, 2), Cents: -1250},
		{Date: core.NewDate(2024, 1, 4), Cents: 500},
	}}
	svc := NewSeriesService(store, 8, time.Minute)

	series, err := svc.Series(context.Background(), rawQuery())
	require.NoError(t, err)
	assert.Equal(t, core.Series{
		{Date: "2024-01-01", Amount: 0},
		{Date: "2024-01-02", Amount: -12.5},
		{Date: "2024-01-03", Amount: 0},
		{Date: "2024-01-04", Amount: 5},
	}, series)
}

func TestSeries_EmptyStoreIsEmptyArray(t *testing.T) {
	svc := NewSeriesService(&fakeStore{}, 8, time.Minute)

	series, err := svc.Series(context.Background(), SeriesQuery{Smoothing: core.SmoothingNone})
	require.NoError(t, err)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestSeries_Averaged(t *testing.T) {
	store := &fakeStore{totals: []core.DailyTotal{{Date: core.NewDate(2024, 1, 3), Cents: 300}}}
	svc := NewSeriesService(store, 8, time.Minute)

	q := SeriesQuery{
		Start:     core.NewDate(2024, 1, 1),
		End:       core.NewDate(2024, 1, 5),
		Smoothing: core.SmoothingAveraged,
		Radius:    1,
	}
	series, err := svc.Series(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 1, 0}, series.Amounts())
}

func TestSeries_CachesAndInvalidates(t *testing.T) {
	store := &fakeStore{totals: []core.DailyTotal{{Date: core.NewDate(2024, 1, 1), Cents: 100}}}
	rec := &countingRecorder{}
	svc := NewSeriesService(store, 8, time.Minute, WithCacheRecorder(rec))
	ctx := context.Background()

	first, err := svc.Series(ctx, rawQuery())
	require.NoError(t, err)
	first[0].Amount = 999

	second, err := svc.Series(ctx, rawQuery())
	require.NoError(t, err)
	assert.Equal(t, 1.0, second[0].Amount, "callers get their own copy")
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)

	err = svc.HandleImportCompleted(ctx, amqp.NewImportCompletedMessage([]string{"a.csv"}, 3, 0))
	require.NoError(t, err)

	_, err = svc.Series(ctx, rawQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.calls.Load())
	assert.Equal(t, 1, rec.notifications)
}

func TestSeries_CacheKeyIgnoresRadiusWithoutSmoothing(t *testing.T) {
	a := rawQuery()
	b := rawQuery()
	b.Radius = 14
	assert.Equal(t, a.key(), b.key())

	a.Smoothing, b.Smoothing = core.SmoothingSmoothed, core.SmoothingSmoothed
	assert.NotEqual(t, a.key(), b.key())
}

func TestSeries_ConcurrentCallsShareOneRead(t *testing.T) {
	store := &fakeStore{release: make(chan struct{})}
	svc := NewSeriesService(store, 8, time.Minute)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Series(context.Background(), rawQuery())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// give the remaining callers time to join the in-flight read
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestSeries_PurgeDuringLoadDoesNotCacheStaleData(t *testing.T) {
	store := &fakeStore{release: make(chan struct{})}
	svc := NewSeriesService(store, 8, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Series(context.Background(), rawQuery())
	}()

	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	svc.Invalidate()
	close(store.release)
	<-done

	_, err := svc.Series(context.Background(), rawQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.calls.Load())
}

func TestSeries_CallerCancelDoesNotFailOthers(t *testing.T) {
	store := &fakeStore{release: make(chan struct{})}
	svc := NewSeriesService(store, 8, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := svc.Series(ctx, rawQuery())
		canceled <- err
	}()
	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-canceled, context.Canceled)

	close(store.release)
	series, err := svc.Series(context.Background(), rawQuery())
	require.NoError(t, err)
	assert.Len(t, series, 4)
}

func TestSeries_StoreError(t *testing.T) {
	svc := NewSeriesService(&fakeStore{err: errors.New("db locked")}, 8, time.Minute)

	_, err := svc.Series(context.Background(), rawQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func TestCategories(t *testing.T) {
	svc := NewSeriesService(&fakeStore{categories: []string{"groceries", "rent"}}, 8, time.Minute)
	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"groceries", "rent"}, cats)

	svc = NewSeriesService(&fakeStore{err: errors.New("boom")}, 8, time.Minute)
	_, err = svc.Categories(context.Background())
	assert.Error(t, err)
}

func TestSeries_RejectsRangeLongerThanMax(t *testing.T) {
	first := core.NewDate(2000, 1, 1)
	store := &fakeStore{totals: []core.DailyTotal{
		{Date: first, Cents: 100},
		{Date: first.AddDays(MaxSpanDays), Cents: 100},
	}}
	svc := NewSeriesService(store, 8, time.Minute)

	// open bounds resolve to the first and last stored day
	_, err := svc.Series(context.Background(), SeriesQuery{Smoothing: core.SmoothingNone})
	assert.ErrorIs(t, err, ErrSpanTooLarge)

	_, err = svc.Series(context.Background(), SeriesQuery{Start: first, Smoothing: core.SmoothingNone})
	assert.ErrorIs(t, err, ErrSpanTooLarge)
	assert.Equal(t, int32(2), store.calls.Load(), "failed queries are not cached")

	series, err := svc.Series(context.Background(), SeriesQuery{
		Start:     first,
		End:       first.AddDays(MaxSpanDays - 1),
		Smoothing: core.SmoothingNone,
	})
	require.NoError(t, err)
	assert.Len(t, series, MaxSpanDays)
}
