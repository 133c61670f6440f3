package core

import (
	"fmt"
	"time"
)

// PeriodKey is a symbolic reporting period chosen on the budget form.
type PeriodKey string

const (
	PeriodThisMonth     PeriodKey = "this_month"
	PeriodSameMonthPast PeriodKey = "same_month_past"
	PeriodPast3Months   PeriodKey = "past_3_months"
	PeriodPast1Year     PeriodKey = "past_1_year"
	PeriodPast2Years    PeriodKey = "past_2_years"
	PeriodAll           PeriodKey = "all"
)

// DateLayout is the ledger's date column format.
const DateLayout = "2006-01-02"

// PeriodKeys lists every supported period in form order.
var PeriodKeys = []PeriodKey{
	PeriodThisMonth,
	PeriodPast3Months,
	PeriodPast1Year,
	PeriodPast2Years,
	PeriodAll,
	PeriodSameMonthPast,
}

var periodLabels = map[PeriodKey]string{
	PeriodThisMonth:     "当月のデータ",
	PeriodPast3Months:   "過去3か月のデータ",
	PeriodPast1Year:     "過去1年のデータ",
	PeriodPast2Years:    "過去2年のデータ",
	PeriodAll:           "全期間のデータ",
	PeriodSameMonthPast: "同月の過去データ",
}

// trailing months covered by each rolling period, current month included
var trailingMonths = map[PeriodKey]int{
	PeriodThisMonth:   1,
	PeriodPast3Months: 3,
	PeriodPast1Year:   12,
	PeriodPast2Years:  24,
}

var epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Label returns the Japanese display label for the key.
func (k PeriodKey) Label() string {
	if l, ok := periodLabels[k]; ok {
		return l
	}
	return string(k)
}

// Period is a resolved reporting period. Either Start/End bound an
// inclusive date range, or MonthOnly selects one calendar month across
// every year.
type Period struct {
	Key       PeriodKey
	Start     time.Time
	End       time.Time
	MonthOnly int
}

// IsMonthOnly reports whether the period filters by month across years.
func (p Period) IsMonthOnly() bool {
	return p.MonthOnly != 0
}

// StartDate returns Start formatted as a ledger date.
func (p Period) StartDate() string { return p.Start.Format(DateLayout) }

// EndDate returns End formatted as a ledger date.
func (p Period) EndDate() string { return p.End.Format(DateLayout) }

// MonthString returns the two-digit month used by month-only filters.
func (p Period) MonthString() string { return fmt.Sprintf("%02d", p.MonthOnly) }

// ResolvePeriod maps a period key to a concrete date range anchored at
// today. sameMonth is consulted only for PeriodSameMonthPast.
func ResolvePeriod(key PeriodKey, sameMonth int, today time.Time) (Period, error) {
	y, m, d := today.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch key {
	case PeriodSameMonthPast:
		if sameMonth < 1 || sameMonth > 12 {
			return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidInput, sameMonth)
		}
		return Period{Key: key, MonthOnly: sameMonth}, nil
	case PeriodAll:
		return Period{Key: key, Start: epoch, End: end}, nil
	}

	n, ok := trailingMonths[key]
	if !ok {
		return Period{}, fmt.Errorf("%w: unknown period %q", ErrInvalidInput, key)
	}
	// time.Date normalizes month underflow into the previous year.
	start := time.Date(y, m-time.Month(n-1), 1, 0, 0, 0, 0, time.UTC)
	return Period{Key: key, Start: start, End: end}, nil
}
