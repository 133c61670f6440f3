package http

import (
	"errors"
	"net/http"

	"multitool/internal/core"
	"multitool/internal/log"
)

const budgetBack = "/kakei_db/"

type periodOption struct {
	Key   core.PeriodKey
	Label string
}

// budgetItem is one row of the details and drilldown JSON. Fields not
// meaningful at a level are omitted.
type budgetItem struct {
	Date    string `json:"date,omitempty"`
	Content string `json:"content,omitempty"`
	Major   string `json:"major,omitempty"`
	Minor   string `json:"minor,omitempty"`
	Amount  int64  `json:"amount"`
}

func ledgerItems(entries []core.LedgerEntry) []budgetItem {
	items := make([]budgetItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, budgetItem{Date: e.Date, Content: e.Content, Major: e.Major, Minor: e.Minor, Amount: e.Amount})
	}
	return items
}

// budgetAPIError maps service errors onto the budget JSON error shape:
// 400 for bad input, 500 for anything else.
func budgetAPIError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, core.ErrInvalidInput) || errors.Is(err, core.ErrMissingParameter) {
		BadRequestError(inputMessage(err)).Write(w)
		return
	}
	ctx := r.Context()
	log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureBudget), log.OpRead, err)
	InternalServerError("database error").Write(w)
}

func (s *Server) handleBudgetForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cats, err := s.deps.Budget.Categories(ctx)
	var extra []Flash
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureBudget), log.OpList, err)
		extra = append(extra, Flash{Level: FlashWarning, Message: "カテゴリの読み込みに失敗しました"})
	}

	periods := make([]periodOption, 0, len(core.PeriodKeys))
	for _, k := range core.PeriodKeys {
		periods = append(periods, periodOption{Key: k, Label: k.Label()})
	}
	months := make([]int, 12)
	for i := range months {
		months[i] = i + 1
	}

	data := struct {
		Periods      []periodOption
		Months       []int
		CurrentMonth int
		Categories   core.Categories
	}{periods, months, int(s.now().Month()), cats}
	s.render(w, r, http.StatusOK, "budget_form.html", "家計簿DB", data, extra...)
}

// handleBudgetReport renders monthly totals for the submitted filter.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, budgetBack, FlashDanger, "リクエストの形式が正しくありません")
		return
	}

	spec := ParseFilterSpec(r.PostForm, s.now())
	report, err := s.deps.Budget.MonthlyTotals(ctx, spec)
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		redirectWithFlash(w, r, budgetBack, FlashWarning, inputMessage(err))
		return
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureBudget), log.OpRead, err)
		redirectWithFlash(w, r, budgetBack, FlashDanger, msgStorage)
		return
	}
	if len(report.Months) == 0 {
		redirectWithFlash(w, r, budgetBack, FlashInfo, msgNotFound)
		return
	}

	var total int64
	for _, m := range report.Months {
		total += m.Total
	}
	data := struct {
		Label  string
		Months []core.MonthTotal
		Total  int64
		Majors []string
		Minors []string
	}{report.Label, report.Months, total, report.Majors, report.Minors}
	s.render(w, r, http.StatusOK, "budget_result.html", "集計結果", data)
}

// handleBudgetDetails returns the raw line items of one month.
func (s *Server) handleBudgetDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mp, err := ParseMonthParams(q)
	if err != nil {
		budgetAPIError(w, r, err)
		return
	}
	entries, err := s.deps.Budget.Details(r.Context(), mp.Year, mp.Month, listParam(q, "major"), listParam(q, "minor"))
	if err != nil {
		budgetAPIError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"ok":    true,
		"items": ledgerItems(entries),
		"count": len(entries),
	}).Write(w)
}

// handleBudgetDrilldown returns one level of a month breakdown.
func (s *Server) handleBudgetDrilldown(w http.ResponseWriter, r *http.Request) {
	req, err := ParseDrilldownRequest(r.URL.Query())
	if err != nil {
		budgetAPIError(w, r, err)
		return
	}
	dd, err := s.deps.Budget.Drilldown(r.Context(), req)
	if err != nil {
		budgetAPIError(w, r, err)
		return
	}

	var items []budgetItem
	switch dd.Level {
	case core.LevelMajor:
		items = make([]budgetItem, 0, len(dd.Totals))
		for _, t := range dd.Totals {
			items = append(items, budgetItem{Major: t.Name, Amount: t.Total})
		}
	case core.LevelMinor:
		items = make([]budgetItem, 0, len(dd.Totals))
		for _, t := range dd.Totals {
			items = append(items, budgetItem{Major: req.Major, Minor: t.Name, Amount: t.Total})
		}
	default:
		items = ledgerItems(dd.Items)
	}

	NewResponse().JSON(map[string]any{
		"ok":    true,
		"level": dd.Level,
		"items": items,
		"count": dd.Count(),
	}).Write(w)
}
