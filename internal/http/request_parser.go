// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"moneyviz/internal/core"
)

// maxCategoryLength bounds the category value accepted from the form.
const maxCategoryLength = 200

// ParseFilterForm applies the filter form values on top of base. Missing
// fields keep their base value; the result is normalised.
func ParseFilterForm(form url.Values, base core.FilterState) core.FilterState {
	clean := make(url.Values, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		clean.Set(key, sanitizeInput(values[0]))
	}
	f := core.FilterStateFromValues(clean, base)
	f.Category = truncate(f.Category, maxCategoryLength)
	return f.Normalize()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ParseFilterRequest reads the filter form from the query string or a
// form-encoded body.
func ParseFilterRequest(r *http.Request, base core.FilterState) (core.FilterState, *HTMXResponseBuilder) {
	if err := r.ParseForm(); err != nil {
		return base, ErrorResponse(http.StatusBadRequest, "Invalid request format")
	}
	return ParseFilterForm(r.Form, base), nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
