package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct public peer ignores headers", "203.0.113.9:5000", "1.1.1.1", "", "203.0.113.9"},
		{"trusted proxy uses first forwarded", "10.0.0.2:443", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"trusted proxy falls back to X-Real-IP", "127.0.0.1:80", "garbage", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy without headers", "192.168.1.5:80", "", "", "192.168.1.5"},
		{"unparseable remote addr", "unix", "", "", "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		method, target, ua string
		want               bool
	}{
		{http.MethodGet, "/kakei_db/", "Mozilla/5.0", false},
		{http.MethodGet, "/bakusai_db/?search_query=a+b", "Mozilla/5.0", false},
		{http.MethodGet, "/.env", "Mozilla/5.0", true},
		{http.MethodGet, "/wp-login.php", "", true},
		{http.MethodGet, "/", "sqlmap/1.7", true},
		{"TRACE", "/", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		r.Header.Set("User-Agent", tt.ua)
		if got := d.DetectSuspiciousRequest(r); got != tt.want {
			t.Errorf("%s %s (%q) = %v, want %v", tt.method, tt.target, tt.ua, got, tt.want)
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 4 {
		t.Errorf("suspicious count = %d, want 4", got)
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector()
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("TRACE", "/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("TRACE status = %d, want 405", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("probe path should pass through, got %d", rr.Code)
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("expected error for invalid CIDR")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(r); got != "198.51.100.1" {
		t.Errorf("ExtractClientIP() = %q", got)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("basic headers missing: %v", rr.Header())
	}
	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "media-src 'self'") {
		t.Errorf("CSP = %q", rr.Header().Get("Content-Security-Policy"))
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestStaticAndNoStore(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	StaticAssetMiddleware(3600)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("static Cache-Control = %q", got)
	}

	rr = httptest.NewRecorder()
	NoStore(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/speech/history", nil))
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("NoStore Cache-Control = %q", got)
	}
}
