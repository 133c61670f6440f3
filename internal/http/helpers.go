package http

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"multitool/internal/core"
)

const flashCookie = "flash"

// Flash levels, matching the CSS classes of the layout.
const (
	FlashDanger  = "danger"
	FlashWarning = "warning"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"l"`
	Message string `json:"m"`
}

// setFlash queues a message for the next page view. Messages accumulate
// until a page renders them.
func setFlash(w http.ResponseWriter, r *http.Request, level, message string) {
	flashes := append(readFlashes(r), Flash{Level: level, Message: message})
	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns queued messages and clears the cookie.
func popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := readFlashes(r)
	if len(flashes) > 0 {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
	return flashes
}

func readFlashes(r *http.Request) []Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}

// redirectWithFlash implements post/redirect/get with a message.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, level, message string) {
	setFlash(w, r, level, message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// formatYen formats whole yen with thousands separators (e.g. "¥12,345").
func formatYen(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-¥" + b.String()
	}
	return "¥" + b.String()
}

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// artifactURL is the public URL of a stored artifact.
func artifactURL(feature core.Feature, name string) string {
	return "/artifacts/" + url.PathEscape(string(feature)) + "/" + url.PathEscape(name)
}

func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"yen": formatYen,
		"artifactURL": func(feature any, name string) string {
			switch f := feature.(type) {
			case core.Feature:
				return artifactURL(f, name)
			case string:
				return artifactURL(core.Feature(f), name)
			}
			return ""
		},
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(loc).Format("2006-01-02 15:04:05")
		},
	}
}
