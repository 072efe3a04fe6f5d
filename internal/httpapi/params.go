package httpapi

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"moneyviz/internal/core"
	"moneyviz/internal/services"
)

// DefaultAvgDays is the smoothing radius used when the query omits it.
const DefaultAvgDays = 7

// transactionsParams mirrors the query string of GET /transactions.
type transactionsParams struct {
	Category  string `json:"category" validate:"max=200"`
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Smoothing string `json:"smoothing" validate:"max=32"`
	AvgDays   string `json:"avg_days" validate:"number"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type radiusParam struct {
	AvgDays int `json:"avg_days" validate:"min=1,max=365"`
}

// parseTransactionsQuery validates the query and turns it into a series
// query. known is false for a smoothing mode the API does not implement,
// which is answered with an empty series.
func parseTransactionsQuery(v *validator.Validate, values url.Values) (q services.SeriesQuery, known bool, err error) {
	p := transactionsParams{
		Category:  values.Get(core.ParamCategory),
		StartDate: strings.TrimSpace(values.Get(core.ParamStartDate)),
		EndDate:   strings.TrimSpace(values.Get(core.ParamEndDate)),
		Smoothing: values.Get(core.ParamSmoothing),
		AvgDays:   strings.TrimSpace(values.Get(core.ParamAvgDays)),
	}
	if p.AvgDays == "" {
		p.AvgDays = strconv.Itoa(DefaultAvgDays)
	}
	if err := v.Struct(p); err != nil {
		return q, false, err
	}

	radius, err := strconv.Atoi(p.AvgDays)
	if err != nil {
		return q, false, err
	}
	if err := v.Struct(radiusParam{AvgDays: radius}); err != nil {
		return q, false, err
	}

	q = services.SeriesQuery{Category: p.Category, Radius: radius}
	if p.StartDate != "" {
		if q.Start, err = core.ParseDate(p.StartDate); err != nil {
			return q, false, err
		}
	}
	if p.EndDate != "" {
		if q.End, err = core.ParseDate(p.EndDate); err != nil {
			return q, false, err
		}
	}

	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Sub(q.Start.Time) >= services.MaxSpanDays*24*time.Hour {
		return q, false, services.ErrSpanTooLarge
	}

	mode, err := core.ParseSmoothingMode(p.Smoothing)
	if err != nil {
		return q, false, nil
	}
	q.Smoothing = mode
	return q, true, nil
}
