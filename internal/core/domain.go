package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire and in forms.
const DateLayout = "2006-01-02"

// MinYear is the earliest year a parsed date may carry. The zero Date
// stands for an unset bound, so no parsed date may collide with it.
const MinYear = 1000

const (
	SmoothingNone     SmoothingMode = "none"
	SmoothingAveraged SmoothingMode = "averaged"
	SmoothingSmoothed SmoothingMode = "smoothed"
)

// Radius bounds for the smoothing slider.
const (
	MinRadius = 1
	MaxRadius = 28
)

type (
	// SmoothingMode selects the backend aggregation applied to daily amounts.
	SmoothingMode string

	// FilterState is the user-controlled set of parameters driving the data query.
	FilterState struct {
		Category  string
		StartDate string
		EndDate   string
		Smoothing SmoothingMode
		Radius    int
	}

	// Transaction is one point of a series: the total amount for a date.
	Transaction struct {
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
	}

	// Series is an ordered, date-ascending sequence of transactions.
	Series []Transaction

	// Date wraps time.Time for calendar dates without a time of day.
	Date struct {
		time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidRange     = errors.New("start date after end date")
	ErrInvalidSmoothing = errors.New("invalid smoothing mode")
	ErrInvalidRadius    = errors.New("invalid smoothing radius")
)

// DefaultFilterState returns the state a fresh view starts with.
func DefaultFilterState() FilterState {
	return FilterState{
		Category:  "",
		StartDate: "2024-01-01",
		EndDate:   "2024-12-31",
		Smoothing: SmoothingSmoothed,
		Radius:    7,
	}
}

// ParseSmoothingMode maps a form or query value to a mode. The empty string
// is the "None" option of the form.
func ParseSmoothingMode(s string) (SmoothingMode, error) {
	switch SmoothingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SmoothingNone:
		return SmoothingNone, nil
	case SmoothingAveraged:
		return SmoothingAveraged, nil
	case SmoothingSmoothed:
		return SmoothingSmoothed, nil
	default:
		return SmoothingNone, ErrInvalidSmoothing
	}
}

// Enabled reports whether the mode asks the backend for any smoothing.
func (m SmoothingMode) Enabled() bool {
	return m == SmoothingAveraged || m == SmoothingSmoothed
}

func (m SmoothingMode) String() string {
	if m == "" {
		return string(SmoothingNone)
	}
	return string(m)
}

// Normalize returns a copy with the smoothing mode canonicalised and the
// radius clamped into [MinRadius, MaxRadius]. A zero radius is kept as zero
// so it stays omitted from queries.
func (f FilterState) Normalize() FilterState {
	out := f
	out.Category = strings.TrimSpace(f.Category)
	out.StartDate = strings.TrimSpace(f.StartDate)
	out.EndDate = strings.TrimSpace(f.EndDate)
	if mode, err := ParseSmoothingMode(string(f.Smoothing)); err == nil {
		out.Smoothing = mode
	} else {
		out.Smoothing = SmoothingNone
	}
	switch {
	case out.Radius == 0:
	case out.Radius < MinRadius:
		out.Radius = MinRadius
	case out.Radius > MaxRadius:
		out.Radius = MaxRadius
	}
	return out
}

// Validate checks dates and radius. Empty dates are allowed.
func (f FilterState) Validate() error {
	var start, end Date
	var err error
	if f.StartDate != "" {
		if start, err = ParseDate(f.StartDate); err != nil {
			return err
		}
	}
	if f.EndDate != "" {
		if end, err = ParseDate(f.EndDate); err != nil {
			return err
		}
	}
	if !start.IsZero() && !end.IsZero() && start.After(end.Time) {
		return ErrInvalidRange
	}
	if _, err := ParseSmoothingMode(string(f.Smoothing)); err != nil {
		return err
	}
	if f.Radius < 0 || f.Radius > MaxRadius {
		return ErrInvalidRadius
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD string. Years before MinYear are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil || t.Year() < MinYear {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Dates returns the x-axis labels of the series.
func (s Series) Dates() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.Date
	}
	return out
}

// Amounts returns the y-axis values of the series.
func (s Series) Amounts() []float64 {
	out := make([]float64, len(s))
	for i, t := range s {
		out[i] = t.Amount
	}
	return out
}
