// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data:
// budget filters, month parameters and file uploads.

package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"multitool/internal/core"
	"multitool/internal/services"
)

// MonthParams holds a required year/month pair.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters. Missing
// or malformed values are reported as core.ErrInvalidInput.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	year, errY := strconv.Atoi(strings.TrimSpace(query.Get("year")))
	month, errM := strconv.Atoi(strings.TrimSpace(query.Get("month")))
	if errY != nil || errM != nil || year <= 0 || month < 1 || month > 12 {
		return MonthParams{}, fmt.Errorf("%w: year/month required", core.ErrInvalidInput)
	}
	return MonthParams{Year: year, Month: month}, nil
}

// ParseDrilldownRequest reads a drilldown query. Validation of level and
// branch parameters is left to the budget service.
func ParseDrilldownRequest(query url.Values) (services.DrilldownRequest, error) {
	mp, err := ParseMonthParams(query)
	if err != nil {
		return services.DrilldownRequest{}, err
	}
	return services.DrilldownRequest{
		Year:   mp.Year,
		Month:  mp.Month,
		Level:  core.DrilldownLevel(strings.ToLower(strings.TrimSpace(query.Get("level")))),
		Major:  sanitizeInput(query.Get("major")),
		Minor:  sanitizeInput(query.Get("minor")),
		Majors: listParam(query, "majors"),
		Minors: listParam(query, "minors"),
	}, nil
}

// ParseFilterSpec reads the budget report form. same_month defaults to the
// current month; an unparseable value is passed through as 0 so the period
// resolver rejects it.
func ParseFilterSpec(form url.Values, now time.Time) core.FilterSpec {
	period := strings.TrimSpace(form.Get("period"))
	if period == "" {
		period = string(core.PeriodThisMonth)
	}
	sameMonth := int(now.Month())
	if v := strings.TrimSpace(form.Get("same_month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			sameMonth = m
		} else {
			sameMonth = 0
		}
	}
	return core.FilterSpec{
		Period:    core.PeriodKey(period),
		SameMonth: sameMonth,
		Majors:    listParam(form, "categories"),
		Minors:    listParam(form, "subcategory"),
	}
}

// listParam reads a repeated parameter under both key and key[].
func listParam(values url.Values, key string) []string {
	raw := append(append([]string(nil), values[key]...), values[key+"[]"]...)
	return cleanList(raw)
}

// cleanList sanitizes values and drops empties and duplicates, keeping
// the first occurrence order.
func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = sanitizeInput(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// errUploadTooLarge marks uploads over the configured limit.
var errUploadTooLarge = errors.New("upload too large")

// ReadUpload reads one multipart file field, bounded by maxBytes. A missing
// field is core.ErrInvalidInput.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidInput, errUploadTooLarge)
		}
		return nil, fmt.Errorf("%w: parse upload: %w", core.ErrInvalidInput, err)
	}
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: file is required", core.ErrInvalidInput)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %w", core.ErrInvalidInput, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", core.ErrInvalidInput)
	}
	return data, nil
}
