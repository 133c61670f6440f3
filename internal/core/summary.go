package core

import "sort"

// DrilldownLevel selects the granularity of a month breakdown.
type DrilldownLevel string

const (
	LevelMajor  DrilldownLevel = "major"
	LevelMinor  DrilldownLevel = "minor"
	LevelDetail DrilldownLevel = "detail"
)

// MonthTotal is the summed spend of one calendar month.
type MonthTotal struct {
	Year  int
	Month int // 1-12
	Total int64
}

// CategoryTotal is the summed spend of one category name.
type CategoryTotal struct {
	Name  string
	Total int64
}

// Categories is the ledger's category master.
type Categories struct {
	Majors        []string
	MinorsByMajor map[string][]string
}

// SumByMonth groups entries by year and month, ordered ascending.
func SumByMonth(entries []LedgerEntry) []MonthTotal {
	type ym struct{ y, m int }
	sums := make(map[ym]int64)
	for _, e := range entries {
		k := ym{e.Year(), e.Month()}
		sums[k] += e.Amount
	}
	out := make([]MonthTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, MonthTotal{Year: k.y, Month: k.m, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// SumBy groups entries by the name key returns, ordered by total
// descending. Equal totals are ordered by name for stable output.
func SumBy(entries []LedgerEntry, key func(LedgerEntry) string) []CategoryTotal {
	sums := make(map[string]int64)
	for _, e := range entries {
		sums[key(e)] += e.Amount
	}
	out := make([]CategoryTotal, 0, len(sums))
	for name, total := range sums {
		out = append(out, CategoryTotal{Name: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SortDetail orders line items by date ascending, then amount descending.
func SortDetail(entries []LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].Amount > entries[j].Amount
	})
}
