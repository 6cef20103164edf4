package http

import (
	"sync"
	"time"
)

const (
	rateLimitWindow   = time.Minute
	rateLimitRequests = 60
	// Windows idle this long are dropped by the sweeper.
	rateLimitIdle = 10 * time.Minute
)

// mutationLimiter caps mutating requests per client IP in fixed windows.
type mutationLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*clientWindow

	done     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	start time.Time
	count int
}

func newMutationLimiter(limit int, window time.Duration) *mutationLimiter {
	l := &mutationLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*clientWindow),
		done:    make(chan struct{}),
	}
	go l.sweepLoop(5 * time.Minute)
	return l
}

func (l *mutationLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

func (l *mutationLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-rateLimitIdle)
	for client, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, client)
		}
	}
}

func (l *mutationLimiter) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// allow counts one mutation for client. Once the window is spent it returns false
// with the time left until the window reopens.
func (l *mutationLimiter) allow(client string, metrics *securityMetrics) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[client]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[client] = &clientWindow{start: now, count: 1}
		return true, 0
	}
	if w.count >= l.limit {
		if metrics != nil {
			metrics.rateLimitHits.Inc()
		}
		return false, w.start.Add(l.window).Sub(now)
	}
	w.count++
	return true, 0
}

// retryAfterSeconds renders a wait as a Retry-After value, never below one second.
func retryAfterSeconds(wait time.Duration) int {
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
