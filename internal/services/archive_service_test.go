package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"multitool/internal/core"
)

func archiveRecords(n int) []core.ArchiveRecord {
	out := make([]core.ArchiveRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, core.ArchiveRecord{
			ID:       int64(i),
			TabSheet: "東京_雑談",
			Date:     fmt.Sprintf("2024-02-%02d", i),
			Time:     "10:00",
			Text:     fmt.Sprintf("post by taro %d", i),
		})
	}
	return out
}

func TestParseSearch(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"東京 taro", true},
		{"  東京　taro  ", true},
		{"東京", false},
		{"a b c", false},
		{"", false},
	}
	for _, tc := range cases {
		_, _, err := ParseSearch(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("%q: ok=%v err=%v", tc.in, tc.ok, err)
		}
		if err != nil && !errors.Is(err, core.ErrInvalidInput) {
			t.Fatalf("%q: expected ErrInvalidInput, got %v", tc.in, err)
		}
	}
}

func TestArchive_SearchTokenCountCheckedFirst(t *testing.T) {
	arch := &fakeArchive{records: archiveRecords(3)}
	svc := NewArchiveService(arch, nil)
	for _, in := range []string{"東京", "a b c"} {
		if _, err := svc.Search(context.Background(), in); !errors.Is(err, core.ErrInvalidInput) {
			t.Fatalf("%q expected ErrInvalidInput, got %v", in, err)
		}
	}
	if arch.calls != 0 {
		t.Fatalf("storage accessed %d times", arch.calls)
	}
}

func TestArchive_SearchRecordsHistoryOnHit(t *testing.T) {
	arch := &fakeArchive{records: archiveRecords(3)}
	store := &fakeHistoryStore{}
	svc := NewArchiveService(arch, NewHistoryService(store, nil, "pw", time.UTC).Log(core.FeatureArchive))

	res, err := svc.Search(context.Background(), "東京 taro")
	if err != nil || len(res.Records) != 3 || res.Tab != "東京" || res.Term != "taro" {
		t.Fatalf("unexpected %+v %v", res, err)
	}
	res, err = svc.Search(context.Background(), "大阪 nobody")
	if err != nil || len(res.Records) != 0 {
		t.Fatalf("unexpected %+v %v", res, err)
	}
	if store.count(core.FeatureArchive) != 1 || store.rows[0].InputDescription != "東京 taro" {
		t.Fatalf("expected exactly one history row, got %+v", store.rows)
	}
}

func TestArchive_DetailWithContext(t *testing.T) {
	arch := &fakeArchive{records: archiveRecords(40)}
	svc := NewArchiveService(arch, nil)

	d, err := svc.DetailWithContext(context.Background(), "東京_雑談", 20)
	if err != nil || !d.Found {
		t.Fatalf("unexpected %+v %v", d, err)
	}
	if len(d.Context) != 31 || d.Context[0].ID != 5 || d.Context[30].ID != 35 {
		t.Fatalf("unexpected window %d first=%d", len(d.Context), d.Context[0].ID)
	}

	d, err = svc.DetailWithContext(context.Background(), "東京_雑談", 999)
	if err != nil || d.Found || len(d.Context) != 0 {
		t.Fatalf("missing record must yield not-found without context: %+v %v", d, err)
	}
}

func TestArchive_ListTabsAndErrors(t *testing.T) {
	svc := NewArchiveService(&fakeArchive{}, nil)
	listing, err := svc.ListTabs(context.Background())
	if err != nil || len(listing.Tabs) != 2 || listing.UpdatedAt.IsZero() {
		t.Fatalf("unexpected %+v %v", listing, err)
	}

	failing := NewArchiveService(&fakeArchive{err: errBoom}, nil)
	if _, err := failing.Search(context.Background(), "a b"); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if _, err := failing.DetailWithContext(context.Background(), "a", 1); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
