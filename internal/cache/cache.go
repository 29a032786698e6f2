package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cleaner is anything that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps expired entries out of registered caches.
type Manager struct {
	mu       sync.Mutex
	cleaners map[string]Cleaner

	stopSweep chan struct{}
	sweepDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		cleaners:  make(map[string]Cleaner),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
}

// Register adds a named cache to the sweep schedule.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaners[name] = c
}

// StartCleanup begins sweeping all registered caches at the given interval.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.sweepLoop(interval)
}

func (m *Manager) sweepLoop(interval time.Duration) {
	defer close(m.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopSweep:
			return
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, cleaner := range m.cleaners {
		if removed := cleaner.CleanExpired(); removed > 0 {
			slog.Debug("Swept expired cache entries", "cache", name, "removed", removed)
		}
	}
}

// Stop halts the sweep routine and waits for it to finish.
func (m *Manager) Stop() {
	close(m.stopSweep)
	<-m.sweepDone
}
