package core

import (
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names understood by the transactions endpoint.
const (
	ParamCategory  = "category"
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
	ParamSmoothing = "smoothing"
	ParamAvgDays   = "avg_days"
)

// QueryParam is one key/value pair of a query string.
type QueryParam struct {
	Key   string
	Value string
}

// QueryParams keeps insertion order, unlike url.Values which sorts on Encode.
type QueryParams []QueryParam

// Query builds the transactions query for the state. Each field is included
// only when it is set: empty strings and a zero radius are omitted, and so is
// the "none" smoothing mode. The radius is sent regardless of the smoothing mode.
func (f FilterState) Query() QueryParams {
	var q QueryParams
	if f.Category != "" {
		q = append(q, QueryParam{ParamCategory, f.Category})
	}
	if f.StartDate != "" {
		q = append(q, QueryParam{ParamStartDate, f.StartDate})
	}
	if f.EndDate != "" {
		q = append(q, QueryParam{ParamEndDate, f.EndDate})
	}
	if f.Smoothing.Enabled() {
		q = append(q, QueryParam{ParamSmoothing, string(f.Smoothing)})
	}
	if f.Radius != 0 {
		q = append(q, QueryParam{ParamAvgDays, strconv.Itoa(f.Radius)})
	}
	return q
}

// Get returns the first value for key and whether it was present.
func (q QueryParams) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Encode renders the params as a query string in insertion order.
func (q QueryParams) Encode() string {
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Values converts to url.Values.
func (q QueryParams) Values() url.Values {
	v := make(url.Values, len(q))
	for _, p := range q {
		v.Add(p.Key, p.Value)
	}
	return v
}

// FilterStateFromValues reads a filter state from form or query values.
// Missing keys keep the value from base; an unparsable radius keeps base too.
func FilterStateFromValues(v url.Values, base FilterState) FilterState {
	out := base
	if _, ok := v[ParamCategory]; ok {
		out.Category = v.Get(ParamCategory)
	}
	if _, ok := v[ParamStartDate]; ok {
		out.StartDate = v.Get(ParamStartDate)
	}
	if _, ok := v[ParamEndDate]; ok {
		out.EndDate = v.Get(ParamEndDate)
	}
	if _, ok := v[ParamSmoothing]; ok {
		out.Smoothing = SmoothingMode(v.Get(ParamSmoothing))
	}
	if raw := strings.TrimSpace(v.Get(ParamAvgDays)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			out.Radius = n
		}
	}
	return out
}
