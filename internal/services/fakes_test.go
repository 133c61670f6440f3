package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"multitool/internal/core"
	"multitool/internal/query"
)

type fakeHistoryStore struct {
	mu      sync.Mutex
	rows    []core.HistoryRecord
	failErr error
	lists   int
}

func (f *fakeHistoryStore) Insert(_ context.Context, rec core.HistoryRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return 0, f.failErr
	}
	rec.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, rec)
	return rec.ID, nil
}

func (f *fakeHistoryStore) List(_ context.Context, feat core.Feature) ([]core.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []core.HistoryRecord
	for _, r := range f.rows {
		if r.Feature == feat {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakeHistoryStore) Get(_ context.Context, feat core.Feature, id int64) (core.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Feature == feat && r.ID == id {
			return r, nil
		}
	}
	return core.HistoryRecord{}, core.ErrNotFound
}

func (f *fakeHistoryStore) count(feat core.Feature) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Feature == feat {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	events []int64
	err    error
}

func (p *fakePublisher) PublishHistoryAppended(_ context.Context, _ string, id int64) error {
	p.events = append(p.events, id)
	return p.err
}

// fakeLedger evaluates nothing from the builder; it records calls and
// returns canned entries.
type fakeLedger struct {
	entries []core.LedgerEntry
	err     error
	calls   int
	lastSQL string
	args    []any

	majorsCalls int
}

func (f *fakeLedger) Entries(_ context.Context, b *query.Builder) ([]core.LedgerEntry, error) {
	f.calls++
	f.lastSQL, f.args = b.Build()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]core.LedgerEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeLedger) Majors(context.Context) ([]string, error) {
	f.majorsCalls++
	return []string{"住居", "食費"}, f.err
}

func (f *fakeLedger) MinorsByMajor(context.Context) (map[string][]string, error) {
	return map[string][]string{"食費": {"外食", "食料品"}, "住居": {"家賃"}}, f.err
}

type fakeArchive struct {
	records []core.ArchiveRecord
	calls   int
	err     error
}

func (f *fakeArchive) TabSheets(context.Context) ([]string, error) {
	f.calls++
	return []string{"大阪_雑談", "東京_雑談"}, f.err
}

func (f *fakeArchive) UpdatedAt() (time.Time, error) {
	return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), nil
}

func (f *fakeArchive) Search(_ context.Context, tab, text string) ([]core.ArchiveRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []core.ArchiveRecord
	for _, r := range f.records {
		if strings.Contains(r.TabSheet, tab) && strings.Contains(r.Text, text) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeArchive) Tab(_ context.Context, name string) ([]core.ArchiveRecord, error) {
	f.calls++
	var out []core.ArchiveRecord
	for _, r := range f.records {
		if r.TabSheet == name {
			out = append(out, r)
		}
	}
	return out, f.err
}

func (f *fakeArchive) Find(_ context.Context, tab string, id int64) (core.ArchiveRecord, error) {
	f.calls++
	if f.err != nil {
		return core.ArchiveRecord{}, f.err
	}
	for _, r := range f.records {
		if r.TabSheet == tab && r.ID == id {
			return r, nil
		}
	}
	return core.ArchiveRecord{}, core.ErrNotFound
}

func (f *fakeArchive) Window(_ context.Context, target core.ArchiveRecord, radius int) ([]core.ArchiveRecord, error) {
	f.calls++
	tab, _ := f.Tab(context.Background(), target.TabSheet)
	idx := 0
	for i, r := range tab {
		if r.ID == target.ID {
			idx = i
		}
	}
	lo := idx - radius
	if lo < 0 {
		lo = 0
	}
	hi := lo + 2*radius + 1
	if hi > len(tab) {
		hi = len(tab)
	}
	return tab[lo:hi], nil
}

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) key(f core.Feature, name string) string { return string(f) + "/" + name }

func (m *memStore) Save(_ context.Context, f core.Feature, name string, r io.Reader, ct string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[m.key(f, name)] = b
	m.types[m.key(f, name)] = ct
	return nil
}

func (m *memStore) Open(_ context.Context, f core.Feature, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[m.key(f, name)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStore) Exists(_ context.Context, f core.Feature, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[m.key(f, name)]
	return ok, nil
}

func (m *memStore) Clear(_ context.Context, f core.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.files {
		if strings.HasPrefix(k, string(f)+"/") {
			delete(m.files, k)
		}
	}
	return nil
}

type fakeCaptioner struct {
	caption string
	err     error
	mime    string
	image   []byte
}

func (c *fakeCaptioner) Caption(_ context.Context, image []byte, mimeType string) (string, error) {
	c.image = image
	c.mime = mimeType
	return c.caption, c.err
}

type fakeSynth struct {
	err   error
	voice core.VoiceGender
	calls int
}

func (s *fakeSynth) Synthesize(_ context.Context, _ string, voice core.VoiceGender) (Audio, error) {
	s.calls++
	s.voice = voice
	if s.err != nil {
		return Audio{}, s.err
	}
	return Audio{Data: []byte("RIFF....WAVE"), Extension: ".wav", ContentType: "audio/wav"}, nil
}

type fakeRemover struct {
	out   []byte
	err   error
	image []byte
}

func (r *fakeRemover) RemoveBackground(_ context.Context, image []byte, _ string) ([]byte, error) {
	r.image = image
	return r.out, r.err
}

type fakeDownloader struct {
	reachErr error
	dlErr    error
	calls    int
}

func (d *fakeDownloader) CheckReachable(context.Context, string) error { return d.reachErr }

func (d *fakeDownloader) Download(_ context.Context, _ string, format core.MediaFormat, dir string) (string, error) {
	d.calls++
	if d.dlErr != nil {
		return "", d.dlErr
	}
	path := filepath.Join(dir, "video."+string(format))
	return path, os.WriteFile(path, []byte("media"), 0o644)
}

var errBoom = errors.New("boom")

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}, make([]byte, 32)...)
	pngBytes  = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 32)...)
)
