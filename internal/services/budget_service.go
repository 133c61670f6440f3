package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"multitool/internal/cache"
	"multitool/internal/core"
	"multitool/internal/query"
	"multitool/internal/storage"
)

const categoriesKey = "categories"

// BudgetService builds the ledger reports: monthly totals for a period and
// the per-month drilldown by category.
type BudgetService struct {
	ledger     LedgerReader
	history    *HistoryLog
	categories cache.Cache[core.Categories]
	now        func() time.Time
}

func NewBudgetService(ledger LedgerReader, history *HistoryLog, categories cache.Cache[core.Categories], loc *time.Location) *BudgetService {
	if loc == nil {
		loc = time.UTC
	}
	if categories == nil {
		categories = cache.NewLRUCache[core.Categories](1, 10*time.Minute)
	}
	return &BudgetService{
		ledger:     ledger,
		history:    history,
		categories: categories,
		now:        func() time.Time { return time.Now().In(loc) },
	}
}

// Report is the index result: totals per month plus the filter label.
type Report struct {
	Period core.Period
	Label  string
	Months []core.MonthTotal
	Majors []string
	Minors []string
}

// MonthlyTotals sums the filtered ledger per calendar month.
func (s *BudgetService) MonthlyTotals(ctx context.Context, spec core.FilterSpec) (Report, error) {
	period, err := core.ResolvePeriod(spec.Period, spec.SameMonth, s.now())
	if err != nil {
		return Report{}, err
	}

	b := query.New()
	if period.IsMonthOnly() {
		b.StrftimeEq("%m", storage.ColumnDate, period.MonthString())
	} else {
		b.Between(storage.ColumnDate, period.StartDate(), period.EndDate())
	}
	b.In(storage.ColumnMajor, spec.Majors).In(storage.ColumnMinor, spec.Minors)

	entries, err := s.ledger.Entries(ctx, b)
	if err != nil {
		slog.ErrorContext(ctx, "Ledger query failed", "component", "budget", "period", spec.Period, "error", err)
		return Report{}, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	report := Report{
		Period: period,
		Label:  reportLabel(spec),
		Months: core.SumByMonth(entries),
		Majors: spec.Majors,
		Minors: spec.Minors,
	}
	if len(report.Months) > 0 && s.history != nil {
		s.history.Append(ctx, "期間: "+string(spec.Period), "")
	}
	return report, nil
}

func reportLabel(spec core.FilterSpec) string {
	majors, minors := "すべて", "すべて"
	if len(spec.Majors) > 0 {
		majors = strings.Join(spec.Majors, ", ")
	}
	if len(spec.Minors) > 0 {
		minors = strings.Join(spec.Minors, ", ")
	}
	period := spec.Period.Label()
	if spec.Period == core.PeriodSameMonthPast {
		period = fmt.Sprintf("%d月の過去データ", spec.SameMonth)
	}
	return fmt.Sprintf("集計期間: %s / 大項目: %s / 中項目: %s", period, majors, minors)
}

// monthBuilder restricts the ledger to one calendar month plus the
// pre-selected category sets.
func monthBuilder(year, month int, majors, minors []string) (*query.Builder, error) {
	if year <= 0 || month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: year/month required", core.ErrInvalidInput)
	}
	return query.New().
		StrftimeEq("%Y", storage.ColumnDate, fmt.Sprintf("%04d", year)).
		StrftimeEq("%m", storage.ColumnDate, fmt.Sprintf("%02d", month)).
		In(storage.ColumnMajor, majors).
		In(storage.ColumnMinor, minors), nil
}

// Details returns the raw line items of one month, date ascending then
// amount descending.
func (s *BudgetService) Details(ctx context.Context, year, month int, majors, minors []string) ([]core.LedgerEntry, error) {
	b, err := monthBuilder(year, month, majors, minors)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.Entries(ctx, b)
	if err != nil {
		slog.ErrorContext(ctx, "Ledger details query failed", "component", "budget", "year", year, "month", month, "error", err)
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	core.SortDetail(entries)
	return entries, nil
}

// DrilldownRequest selects one level of a month breakdown. Majors and
// Minors are the filters chosen on the report form; Major and Minor pick
// the branch being expanded.
type DrilldownRequest struct {
	Year   int
	Month  int
	Level  core.DrilldownLevel
	Major  string
	Minor  string
	Majors []string
	Minors []string
}

// Drilldown is one level of a month breakdown. Totals is set for the
// major and minor levels, Items for the detail level.
type Drilldown struct {
	Level  core.DrilldownLevel
	Totals []core.CategoryTotal
	Items  []core.LedgerEntry
}

// Count returns the number of rows at this level.
func (d Drilldown) Count() int {
	if d.Level == core.LevelDetail {
		return len(d.Items)
	}
	return len(d.Totals)
}

// Drilldown validates the request before touching storage, then returns
// category totals ordered by amount descending or line items ordered by
// date ascending and amount descending.
func (s *BudgetService) Drilldown(ctx context.Context, req DrilldownRequest) (Drilldown, error) {
	b, err := monthBuilder(req.Year, req.Month, req.Majors, req.Minors)
	if err != nil {
		return Drilldown{}, err
	}

	switch req.Level {
	case core.LevelMajor:
	case core.LevelMinor:
		if req.Major == "" {
			return Drilldown{}, fmt.Errorf("%w: major required", core.ErrMissingParameter)
		}
		b.Eq(storage.ColumnMajor, req.Major)
	case core.LevelDetail:
		if req.Major == "" || req.Minor == "" {
			return Drilldown{}, fmt.Errorf("%w: major/minor required", core.ErrMissingParameter)
		}
		b.Eq(storage.ColumnMajor, req.Major).Eq(storage.ColumnMinor, req.Minor)
	default:
		return Drilldown{}, fmt.Errorf("%w: invalid level %q", core.ErrInvalidInput, req.Level)
	}

	entries, err := s.ledger.Entries(ctx, b)
	if err != nil {
		slog.ErrorContext(ctx, "Ledger drilldown query failed",
			"component", "budget",
			"level", req.Level,
			"year", req.Year,
			"month", req.Month,
			"error", err)
		return Drilldown{}, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	out := Drilldown{Level: req.Level}
	switch req.Level {
	case core.LevelMajor:
		out.Totals = core.SumBy(entries, func(e core.LedgerEntry) string { return e.Major })
	case core.LevelMinor:
		out.Totals = core.SumBy(entries, func(e core.LedgerEntry) string { return e.Minor })
	case core.LevelDetail:
		core.SortDetail(entries)
		out.Items = entries
	}
	return out, nil
}

// Categories returns the category master for the report form. Results are
// cached; concurrent misses share one load.
func (s *BudgetService) Categories(ctx context.Context) (core.Categories, error) {
	cats, err := s.categories.GetOrLoad(ctx, categoriesKey, s.loadCategories)
	if err != nil {
		return core.Categories{}, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return cats, nil
}

func (s *BudgetService) loadCategories(ctx context.Context) (core.Categories, error) {
	var cats core.Categories
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		majors, err := s.ledger.Majors(gctx)
		cats.Majors = majors
		return err
	})
	g.Go(func() error {
		minors, err := s.ledger.MinorsByMajor(gctx)
		cats.MinorsByMajor = minors
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Categories{}, err
	}
	return cats, nil
}
