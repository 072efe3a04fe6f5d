// Package smoothing turns daily totals into the series served to the chart:
// a gap-filled raw series plus the two smoothing modes.
package smoothing

import (
	"math"

	"moneyviz/internal/core"
)

// Point is one day of a dense series.
type Point struct {
	Date   core.Date
	Amount float64
}

// FillGaps returns one point per day from start to end inclusive. Days with no
// total get a zero amount. A zero start or end defaults to the first or last
// total. Totals must be sorted by date ascending; totals outside the range are
// ignored.
func FillGaps(totals []core.DailyTotal, start, end core.Date) []Point {
	if start.IsZero() {
		if len(totals) == 0 {
			return nil
		}
		start = totals[0].Date
	}
	if end.IsZero() {
		if len(totals) == 0 {
			return nil
		}
		end = totals[len(totals)-1].Date
	}
	if start.After(end.Time) {
		return nil
	}

	byDay := make(map[string]int64, len(totals))
	for _, t := range totals {
		byDay[t.Date.String()] += t.Cents
	}

	days := int(end.Sub(start.Time).Hours()/24) + 1
	out := make([]Point, 0, days)
	for d := start; !d.After(end.Time); d = d.AddDays(1) {
		out = append(out, Point{Date: d, Amount: core.CentsToFloat(byDay[d.String()])})
	}
	return out
}

// Averaged spreads each day's amount evenly over the 2r+1 days centred on it.
// Mass that would land outside the series is dropped, so edge days come out lower.
func Averaged(points []Point, r int) []Point {
	n := len(points)
	out := make([]Point, n)
	width := float64(2*r + 1)
	for i := range points {
		out[i].Date = points[i].Date
	}
	for i, p := range points {
		share := p.Amount / width
		for d := -r; d <= r; d++ {
			if j := i + d; j >= 0 && j < n {
				out[j].Amount += share
			}
		}
	}
	return out
}

// Smoothed replaces each amount by a bump-kernel weighted mean of its
// neighbourhood, zero-padded past either end of the series.
func Smoothed(points []Point, r int) []Point {
	n := len(points)
	out := make([]Point, n)
	for i := range points {
		window := make([]float64, 0, 2*r+1)
		if i-r < 0 {
			window = append(window, make([]float64, r-i)...)
		}
		for j := max(0, i-r); j < min(n, i+r); j++ {
			window = append(window, points[j].Amount)
		}
		if i+r >= n {
			window = append(window, make([]float64, i+r-n+1)...)
		}

		v, ok := convolveBump(window)
		if !ok {
			v = points[i].Amount
		}
		out[i] = Point{Date: points[i].Date, Amount: v}
	}
	return out
}

// convolveBump weights x, taken as equidistant samples on [-1, 1], with the
// bump function and normalises so that a window of ones yields one. It reports
// false when every weight is zero.
func convolveBump(x []float64) (float64, bool) {
	n := len(x)
	if n == 0 {
		return 0, false
	}
	var sum, scale float64
	for k, v := range x {
		w := bump(linspace(k, n))
		sum += v * w
		scale += w
	}
	if scale == 0 {
		return 0, false
	}
	return sum / scale, true
}

// linspace returns the k-th of n equidistant points from 1 down to -1.
func linspace(k, n int) float64 {
	if n == 1 {
		return 1
	}
	return 1 - 2*float64(k)/float64(n-1)
}

func bump(y float64) float64 {
	if y <= -1 || y >= 1 {
		return 0
	}
	return math.Exp(-1 / (1 - y*y))
}

// Apply runs the smoothing selected by mode.
func Apply(points []Point, mode core.SmoothingMode, r int) []Point {
	switch mode {
	case core.SmoothingAveraged:
		return Averaged(points, r)
	case core.SmoothingSmoothed:
		return Smoothed(points, r)
	default:
		return points
	}
}

// ToSeries converts points into the wire series.
func ToSeries(points []Point) core.Series {
	out := make(core.Series, len(points))
	for i, p := range points {
		out[i] = core.Transaction{Date: p.Date.String(), Amount: p.Amount}
	}
	return out
}
