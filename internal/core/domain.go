package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Feature identifies one tool of the application. Each feature owns its own
// history namespace.
type Feature string

const (
	FeatureImageCaption      Feature = "image_caption"
	FeatureSpeech            Feature = "speech"
	FeatureBackgroundRemoval Feature = "background_removal"
	FeatureMediaDownload     Feature = "media_download"
	FeatureArchive           Feature = "archive"
	FeatureBudget            Feature = "budget"
)

// Features lists every known feature in display order.
var Features = []Feature{
	FeatureImageCaption,
	FeatureSpeech,
	FeatureBackgroundRemoval,
	FeatureMediaDownload,
	FeatureArchive,
	FeatureBudget,
}

// Valid reports whether f is one of the known features.
func (f Feature) Valid() bool {
	for _, known := range Features {
		if f == known {
			return true
		}
	}
	return false
}

const (
	VoiceMale   VoiceGender = "male"
	VoiceFemale VoiceGender = "female"

	FormatMP4 MediaFormat = "mp4"
	FormatMP3 MediaFormat = "mp3"
)

// MaxTextLength bounds free-text inputs (speech text, media URL).
const MaxTextLength = 300

type (
	VoiceGender string
	MediaFormat string

	// HistoryRecord is one append-only row of a feature's history log.
	HistoryRecord struct {
		ID               int64
		Feature          Feature
		Timestamp        time.Time
		InputDescription string
		OutputReference  string
	}

	// LedgerEntry is one row of the household budget ledger.
	LedgerEntry struct {
		Date    string // YYYY-MM-DD
		Content string
		Major   string
		Minor   string
		Amount  int64 // yen, normalized
	}

	// ArchiveRecord is one row of the classifieds archive.
	ArchiveRecord struct {
		ID       int64
		TabSheet string
		Date     string
		Time     string
		Text     string
	}

	// FilterSpec is the per-request ledger filter.
	FilterSpec struct {
		Period    PeriodKey
		SameMonth int // 1-12, used only with PeriodSameMonthPast
		Majors    []string
		Minors    []string
	}

	SpeechRequest struct {
		Text  string
		Voice VoiceGender
	}

	MediaRequest struct {
		URL    string
		Format MediaFormat
	}
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrMissingParameter = errors.New("missing parameter")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrStorage          = errors.New("storage failure")
	ErrExternalService  = errors.New("external service failure")
	ErrNotFound         = errors.New("not found")
)

// Year returns the year prefix of the entry date, or 0 when malformed.
func (e LedgerEntry) Year() int {
	y, _ := splitYearMonth(e.Date)
	return y
}

// Month returns the month part of the entry date, or 0 when malformed.
func (e LedgerEntry) Month() int {
	_, m := splitYearMonth(e.Date)
	return m
}

func splitYearMonth(date string) (int, int) {
	if len(date) < 7 {
		return 0, 0
	}
	var y, m int
	if _, err := fmt.Sscanf(date[:4], "%d", &y); err != nil {
		return 0, 0
	}
	if _, err := fmt.Sscanf(date[5:7], "%d", &m); err != nil {
		return y, 0
	}
	return y, m
}

func (r SpeechRequest) Validate() error {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return fmt.Errorf("%w: text too long (max %d characters)", ErrInvalidInput, MaxTextLength)
	}
	switch r.Voice {
	case VoiceMale, VoiceFemale:
	default:
		return fmt.Errorf("%w: unknown voice %q", ErrInvalidInput, r.Voice)
	}
	return nil
}

func (r MediaRequest) Validate() error {
	u := strings.TrimSpace(r.URL)
	if u == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(u) > MaxTextLength {
		return fmt.Errorf("%w: url too long (max %d characters)", ErrInvalidInput, MaxTextLength)
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("%w: url must be http or https", ErrInvalidInput)
	}
	switch r.Format {
	case FormatMP4, FormatMP3:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidInput, r.Format)
	}
	return nil
}
