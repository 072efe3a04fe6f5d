package smoothing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyviz/internal/core"
)

func constant(n int, v float64) []Point {
	out := make([]Point, n)
	start := core.NewDate(2024, 1, 1)
	for i := range out {
		out[i] = Point{Date: start.AddDays(i), Amount: v}
	}
	return out
}

func TestFillGaps(t *testing.T) {
	totals := []core.DailyTotal{
		{Date: core.NewDate(2024, 1, 1), Cents: 1050},
		{Date: core.NewDate(2024, 1, 3), Cents: -200},
	}

	got := FillGaps(totals, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 4))
	require.Len(t, got, 4)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}, ToSeries(got).Dates())
	assert.Equal(t, []float64{10.5, 0, -2, 0}, ToSeries(got).Amounts())
}

func TestFillGapsDefaultsToDataRange(t *testing.T) {
	totals := []core.DailyTotal{
		{Date: core.NewDate(2024, 2, 28), Cents: 100},
		{Date: core.NewDate(2024, 3, 1), Cents: 300},
	}
	got := FillGaps(totals, core.Date{}, core.Date{})
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, ToSeries(got).Dates())
}

func TestFillGapsEmpty(t *testing.T) {
	assert.Empty(t, FillGaps(nil, core.Date{}, core.Date{}))
	assert.Empty(t, FillGaps(nil, core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1)))

	got := FillGaps(nil, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 2))
	assert.Equal(t, []float64{0, 0}, ToSeries(got).Amounts())
}

func TestAveragedInteriorOfConstantSeries(t *testing.T) {
	const r = 2
	got := Averaged(constant(10, 1), r)
	for i := r; i < 10-r; i++ {
		assert.InDelta(t, 1.0, got[i].Amount, 1e-12, "index %d", i)
	}
	// the first day only receives mass from itself and r days after it
	assert.InDelta(t, 3.0/5.0, got[0].Amount, 1e-12)
}

func TestAveragedSpreadsSingleSpike(t *testing.T) {
	pts := constant(7, 0)
	pts[3].Amount = 7
	got := Averaged(pts, 1)
	assert.Equal(t, []float64{0, 0, 7.0 / 3, 7.0 / 3, 7.0 / 3, 0, 0}, ToSeries(got).Amounts())
	assert.Equal(t, pts[3].Date, got[3].Date)
}

func TestSmoothedInteriorOfConstantSeries(t *testing.T) {
	const r = 3
	got := Smoothed(constant(12, 2), r)
	for i := r; i+r < 12; i++ {
		assert.InDelta(t, 2.0, got[i].Amount, 1e-12, "index %d", i)
	}
}

func TestSmoothedTailIsPadded(t *testing.T) {
	got := Smoothed(constant(6, 1), 2)
	// last window is [x3, x4, x5, 0, 0] on y = 1, .5, 0, -.5, -1
	want := (bump(0.5) + bump(0)) / (2*bump(0.5) + bump(0))
	assert.InDelta(t, want, got[5].Amount, 1e-12)
	assert.Less(t, got[5].Amount, 1.0)
}

func TestSmoothedRadiusOneFallsBackToRaw(t *testing.T) {
	pts := constant(4, 0)
	for i := range pts {
		pts[i].Amount = float64(i + 1)
	}
	got := Smoothed(pts, 1)
	assert.Equal(t, 2.0, got[1].Amount)
	assert.Equal(t, 3.0, got[2].Amount)
}

func TestApply(t *testing.T) {
	pts := constant(5, 1)
	assert.Equal(t, pts, Apply(pts, core.SmoothingNone, 3))
	assert.Equal(t, Averaged(pts, 1), Apply(pts, core.SmoothingAveraged, 1))
	assert.Equal(t, Smoothed(pts, 2), Apply(pts, core.SmoothingSmoothed, 2))
}
