package http

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWritesPerMinute is the per-client budget for mutating requests
// when no limit is configured.
const DefaultWritesPerMinute = 60

// writeLimiter throttles mutating requests per client IP over a fixed
// one-minute window. Reads are never throttled: exports come out of the
// render cache and stay cheap even under load.
type writeLimiter struct {
	mu        sync.Mutex
	perMinute int
	windows   map[string]*writeWindow
	rejected  int64

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type writeWindow struct {
	start time.Time
	count int
}

func newWriteLimiter(perMinute int) *writeLimiter {
	if perMinute <= 0 {
		perMinute = DefaultWritesPerMinute
	}
	wl := &writeLimiter{
		perMinute:   perMinute,
		windows:     make(map[string]*writeWindow),
		stopCleanup: make(chan struct{}),
	}
	go wl.cleanupLoop()
	return wl
}

// allow reports whether the request may proceed. Safe methods always
// pass; a mutating request is counted against the client's window.
func (wl *writeLimiter) allow(method, clientIP string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}

	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := time.Now()
	win, ok := wl.windows[clientIP]
	if !ok || now.Sub(win.start) >= time.Minute {
		wl.windows[clientIP] = &writeWindow{start: now, count: 1}
		return true
	}

	win.count++
	if win.count > wl.perMinute {
		atomic.AddInt64(&wl.rejected, 1)
		return false
	}
	return true
}

// rejectedTotal returns how many writes have been turned away.
func (wl *writeLimiter) rejectedTotal() int64 {
	return atomic.LoadInt64(&wl.rejected)
}

func (wl *writeLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wl.dropStaleWindows()
		case <-wl.stopCleanup:
			return
		}
	}
}

// dropStaleWindows forgets clients whose window closed over ten
// minutes ago.
func (wl *writeLimiter) dropStaleWindows() {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, win := range wl.windows {
		if win.start.Before(cutoff) {
			delete(wl.windows, ip)
		}
	}
}

// stop shuts down the cleanup goroutine.
func (wl *writeLimiter) stop() {
	wl.stopOnce.Do(func() { close(wl.stopCleanup) })
}
