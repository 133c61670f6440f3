package core

import "testing"

func TestSumByMonth(t *testing.T) {
	entries := []LedgerEntry{
		{Date: "2025-02-03", Amount: 100},
		{Date: "2024-12-31", Amount: 50},
		{Date: "2025-02-20", Amount: 25},
		{Date: "2025-01-10", Amount: 10},
	}
	got := SumByMonth(entries)
	want := []MonthTotal{
		{2024, 12, 50},
		{2025, 1, 10},
		{2025, 2, 125},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSumByOrdersDescending(t *testing.T) {
	entries := []LedgerEntry{
		{Major: "住居", Amount: 80000},
		{Major: "食費", Amount: 20000},
		{Major: "食費", Amount: 10000},
		{Major: "娯楽", Amount: 5000},
		{Major: "交通", Amount: 5000},
	}
	got := SumBy(entries, func(e LedgerEntry) string { return e.Major })
	for i := 1; i < len(got); i++ {
		if got[i-1].Total < got[i].Total {
			t.Fatalf("not descending at %d: %+v", i, got)
		}
	}
	if got[0].Name != "住居" || got[1].Name != "食費" || got[1].Total != 30000 {
		t.Fatalf("unexpected totals %+v", got)
	}
}

func TestSortDetail(t *testing.T) {
	entries := []LedgerEntry{
		{Date: "2025-07-02", Amount: 100},
		{Date: "2025-07-01", Amount: 50},
		{Date: "2025-07-01", Amount: 900},
	}
	SortDetail(entries)
	if entries[0].Amount != 900 || entries[1].Amount != 50 || entries[2].Date != "2025-07-02" {
		t.Fatalf("unexpected order %+v", entries)
	}
}
