package http

import (
	"encoding/json"
	"fmt"
	"strconv"

	"moneyviz/internal/core"
	"moneyviz/internal/filtersync"
)

type selectOption struct {
	Value    string
	Label    string
	Selected bool
}

// chartModel is everything the chart partial needs. It is derived from a
// snapshot on every render, never kept between requests.
type chartModel struct {
	Status     string
	Error      string
	Empty      bool
	Draw       bool
	Seq        uint64
	LabelsJSON string
	ValuesJSON string
	Points     int
	Total      string
	Lowest     string
	Highest    string
}

type pageModel struct {
	Filter     core.FilterState
	Categories []selectOption
	Smoothing  []selectOption
	MinRadius  int
	MaxRadius  int
	Chart      chartModel
}

func newPageModel(v filtersync.View) pageModel {
	return pageModel{
		Filter:     v.Filter,
		Categories: categoryOptions(v.Categories, v.Filter.Category),
		Smoothing:  smoothingOptions(v.Filter.Smoothing),
		MinRadius:  core.MinRadius,
		MaxRadius:  core.MaxRadius,
		Chart:      newChartModel(v),
	}
}

func newChartModel(v filtersync.View) chartModel {
	m := chartModel{
		Status: string(v.Status),
		Error:  v.Error,
		Empty:  v.Status == filtersync.StatusEmpty,
		Seq:    v.Seq,
		Points: len(v.Series),
	}
	// an error keeps the last good chart on screen under the banner
	m.Draw = v.HasSeries && len(v.Series) > 0
	if !m.Draw {
		return m
	}

	labels, _ := json.Marshal(v.Series.Dates())
	values, _ := json.Marshal(v.Series.Amounts())
	m.LabelsJSON = string(labels)
	m.ValuesJSON = string(values)

	amounts := v.Series.Amounts()
	total, lo, hi := 0.0, amounts[0], amounts[0]
	for _, a := range amounts {
		total += a
		lo = min(lo, a)
		hi = max(hi, a)
	}
	m.Total = formatAmount(total)
	m.Lowest = formatAmount(lo)
	m.Highest = formatAmount(hi)
	return m
}

func categoryOptions(categories []string, selected string) []selectOption {
	out := make([]selectOption, 0, len(categories))
	for _, c := range categories {
		label := c
		if c == "" {
			label = "All categories"
		}
		out = append(out, selectOption{Value: c, Label: label, Selected: c == selected})
	}
	return out
}

func smoothingOptions(selected core.SmoothingMode) []selectOption {
	return []selectOption{
		{Value: "", Label: "None", Selected: !selected.Enabled()},
		{Value: string(core.SmoothingAveraged), Label: "Averaged", Selected: selected == core.SmoothingAveraged},
		{Value: string(core.SmoothingSmoothed), Label: "Smoothed", Selected: selected == core.SmoothingSmoothed},
	}
}

// formatAmount formats a dollar amount with two decimals, e.g. "-$12.50".
func formatAmount(v float64) string {
	cents := int64(v*100 + 0.5)
	if v < 0 {
		cents = int64(v*100 - 0.5)
	}
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-$" + s
	}
	return "$" + s
}
