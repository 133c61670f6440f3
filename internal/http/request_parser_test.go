package http

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"multitool/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantErr bool
	}{
		{"valid", "year=2025&month=07", MonthParams{2025, 7}, false},
		{"spaces trimmed", "year=+2024+&month=+12", MonthParams{2024, 12}, false},
		{"missing year", "month=7", MonthParams{}, true},
		{"missing month", "year=2025", MonthParams{}, true},
		{"month out of range", "year=2025&month=13", MonthParams{}, true},
		{"non numeric", "year=abc&month=1", MonthParams{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseMonthParams(q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDrilldownRequest(t *testing.T) {
	q, _ := url.ParseQuery("year=2025&month=7&level=MINOR&major=食費&majors=食費&majors=食費&majors=&minors=外食")
	req, err := ParseDrilldownRequest(q)
	if err != nil {
		t.Fatal(err)
	}
	if req.Level != core.LevelMinor || req.Major != "食費" || req.Minor != "" {
		t.Errorf("req = %+v", req)
	}
	if !reflect.DeepEqual(req.Majors, []string{"食費"}) || !reflect.DeepEqual(req.Minors, []string{"外食"}) {
		t.Errorf("filters = %v / %v", req.Majors, req.Minors)
	}

	q, _ = url.ParseQuery("year=2025&month=7&level=major&majors[]=住居&majors=食費&majors[]=住居&minors[]=家賃")
	req, err = ParseDrilldownRequest(q)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(req.Majors, []string{"食費", "住居"}) || !reflect.DeepEqual(req.Minors, []string{"家賃"}) {
		t.Errorf("bracketed filters = %v / %v", req.Majors, req.Minors)
	}

	if _, err := ParseDrilldownRequest(url.Values{"level": {"major"}}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("missing month err = %v", err)
	}
}

func TestParseFilterSpec(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	spec := ParseFilterSpec(url.Values{}, now)
	if spec.Period != core.PeriodThisMonth || spec.SameMonth != 3 || spec.Majors != nil {
		t.Errorf("defaults = %+v", spec)
	}

	form := url.Values{
		"period":      {"same_month_past"},
		"same_month":  {"03"},
		"categories":  {"住居", " 食費 "},
		"subcategory": {"外食"},
	}
	spec = ParseFilterSpec(form, now)
	want := core.FilterSpec{Period: core.PeriodSameMonthPast, SameMonth: 3, Majors: []string{"住居", "食費"}, Minors: []string{"外食"}}
	if !reflect.DeepEqual(spec, want) {
		t.Errorf("spec = %+v, want %+v", spec, want)
	}

	if got := ParseFilterSpec(url.Values{"same_month": {"march"}}, now).SameMonth; got != 0 {
		t.Errorf("bad same_month = %d, want 0", got)
	}
}

func multipartRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "photo.jpg")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	} else {
		_ = mw.WriteField("other", "x")
	}
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestReadUpload(t *testing.T) {
	data := []byte("\xff\xd8\xff\xe0 fake jpeg")

	got, err := ReadUpload(httptest.NewRecorder(), multipartRequest(t, "file", data), "file", 1<<20)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("ReadUpload() = %q, %v", got, err)
	}

	if _, err := ReadUpload(httptest.NewRecorder(), multipartRequest(t, "", nil), "file", 1<<20); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("missing field err = %v", err)
	}

	big := bytes.Repeat([]byte("a"), 4096)
	if _, err := ReadUpload(httptest.NewRecorder(), multipartRequest(t, "file", big), "file", 1024); !errors.Is(err, errUploadTooLarge) {
		t.Errorf("oversized err = %v", err)
	}
}

func TestCleanListAndSanitize(t *testing.T) {
	if got := cleanList([]string{"a", "", " a ", "b\x00"}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("cleanList = %v", got)
	}
	if got := sanitizeInput("  hi\x07\tthere\n "); got != "hi\tthere" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
