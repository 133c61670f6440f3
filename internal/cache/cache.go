package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error)
	Delete(key string)
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically evicts expired entries from registered caches.
type Manager struct {
	caches      map[string]Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		caches:      make(map[string]Cleaner),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a named cache to the manager for cleanup
func (m *Manager) Register(name string, cache Cleaner) {
	m.caches[name] = cache
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanAll()
		case <-m.stopCleanup:
			return
		}
	}
}

// CleanAll evicts expired entries now and returns the number removed.
func (m *Manager) CleanAll() int {
	total := 0
	for name, c := range m.caches {
		if n := c.CleanExpired(); n > 0 {
			slog.Debug("Cache entries expired", "component", "cache", "cache", name, "removed", n)
			total += n
		}
	}
	return total
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	select {
	case <-m.stopCleanup:
		return
	default:
	}
	close(m.stopCleanup)
	if m.started {
		<-m.cleanupDone
	}
}
