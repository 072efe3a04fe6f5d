package core

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultQuery(t *testing.T) {
	got := DefaultFilterState().Query().Encode()
	assert.Equal(t, "start_date=2024-01-01&end_date=2024-12-31&smoothing=smoothed&avg_days=7", got)
}

func TestQueryCategory(t *testing.T) {
	st := DefaultFilterState()

	_, ok := st.Query().Get(ParamCategory)
	assert.False(t, ok, "empty category must be omitted")

	st.Category = "Groceries"
	v, ok := st.Query().Get(ParamCategory)
	assert.True(t, ok)
	assert.Equal(t, "Groceries", v)
	assert.Contains(t, st.Query().Encode(), "category=Groceries")
}

func TestQuerySmoothingNoneStillSendsRadius(t *testing.T) {
	st := DefaultFilterState()
	st.Smoothing = SmoothingNone

	q := st.Query()
	_, hasSmoothing := q.Get(ParamSmoothing)
	avg, hasAvg := q.Get(ParamAvgDays)

	assert.False(t, hasSmoothing)
	assert.True(t, hasAvg)
	assert.Equal(t, "7", avg)
	assert.Equal(t, "start_date=2024-01-01&end_date=2024-12-31&avg_days=7", q.Encode())
}

func TestQueryOmitsFalsyFields(t *testing.T) {
	st := FilterState{Smoothing: SmoothingAveraged}
	assert.Equal(t, "smoothing=averaged", st.Query().Encode())

	assert.Empty(t, FilterState{}.Query().Encode())
}

func TestQueryEscapesValues(t *testing.T) {
	st := FilterState{Category: "public transport"}
	assert.Equal(t, "category=public+transport", st.Query().Encode())
	assert.Equal(t, "public transport", st.Query().Values().Get(ParamCategory))
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   FilterState
		want FilterState
	}{
		{"clamp high", FilterState{Radius: 40, Smoothing: "smoothed"}, FilterState{Radius: MaxRadius, Smoothing: SmoothingSmoothed}},
		{"clamp low", FilterState{Radius: -3}, FilterState{Radius: MinRadius, Smoothing: SmoothingNone}},
		{"zero kept", FilterState{Radius: 0, Smoothing: ""}, FilterState{Radius: 0, Smoothing: SmoothingNone}},
		{"unknown smoothing", FilterState{Radius: 3, Smoothing: "wavy"}, FilterState{Radius: 3, Smoothing: SmoothingNone}},
		{"trim", FilterState{Category: " fuel ", Radius: 2, Smoothing: "AVERAGED"}, FilterState{Category: "fuel", Radius: 2, Smoothing: SmoothingAveraged}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultFilterState().Validate())
	assert.NoError(t, FilterState{}.Validate())
	assert.ErrorIs(t, FilterState{StartDate: "2024-13-01"}.Validate(), ErrInvalidDate)
	assert.ErrorIs(t, FilterState{StartDate: "2024-02-01", EndDate: "2024-01-01"}.Validate(), ErrInvalidRange)
	assert.ErrorIs(t, FilterState{Smoothing: "wavy"}.Validate(), ErrInvalidSmoothing)
	assert.ErrorIs(t, FilterState{Radius: 29}.Validate(), ErrInvalidRadius)
}

func TestFilterStateFromValues(t *testing.T) {
	base := DefaultFilterState()
	v := url.Values{}
	v.Set(ParamCategory, "fuel")
	v.Set(ParamSmoothing, "")
	v.Set(ParamAvgDays, "abc")

	got := FilterStateFromValues(v, base)
	assert.Equal(t, "fuel", got.Category)
	assert.Equal(t, SmoothingMode(""), got.Smoothing)
	assert.Equal(t, base.Radius, got.Radius, "bad radius keeps previous value")
	assert.Equal(t, base.StartDate, got.StartDate, "missing key keeps previous value")
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	assert.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, NewDate(2024, 3, 1), d.AddDays(2))

	_, err = ParseDate("28/02/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseDate_RejectsYearsBeforeMinYear(t *testing.T) {
	_, err := ParseDate("0001-01-01")
	assert.ErrorIs(t, err, ErrInvalidDate, "year 1 collides with the unset date")

	_, err = ParseDate("0999-12-31")
	assert.ErrorIs(t, err, ErrInvalidDate)

	d, err := ParseDate("1000-01-01")
	assert.NoError(t, err)
	assert.False(t, d.IsZero())

	f := DefaultFilterState()
	f.StartDate = "0001-01-01"
	assert.ErrorIs(t, f.Validate(), ErrInvalidDate)
}
