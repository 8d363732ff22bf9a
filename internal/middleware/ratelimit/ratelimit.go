// Package ratelimit throttles API clients with a per-key fixed window.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Limiter counts requests per key within one-minute windows.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
	limit   int
	idleTTL time.Duration
	now     func() time.Time

	rejected atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	start    time.Time
	lastSeen time.Time
	count    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// CleanupInterval is how often idle keys are swept.
	CleanupInterval time.Duration
	// IdleTTL is how long a key may go unseen before it is forgotten.
	IdleTTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is the time left in the current window.
	Reset time.Duration
}

// NewLimiter starts a limiter and its sweeper; call Stop when done.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}

	rl := &Limiter{
		windows: make(map[string]*clientWindow),
		limit:   config.RequestsPerMinute,
		idleTTL: config.IdleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop(config.CleanupInterval)
	return rl
}

// Take counts one request for key.
func (rl *Limiter) Take(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= window {
		w = &clientWindow{start: now}
		rl.windows[key] = w
	}
	w.lastSeen = now
	w.count++

	d := Decision{
		Allowed:   w.count <= rl.limit,
		Limit:     rl.limit,
		Remaining: max(rl.limit-w.count, 0),
		Reset:     w.start.Add(window).Sub(now),
	}
	if !d.Allowed {
		rl.rejected.Add(1)
	}
	return d
}

// Allow reports whether key may make another request.
func (rl *Limiter) Allow(key string) bool {
	return rl.Take(key).Allowed
}

func (rl *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep forgets keys idle for longer than idleTTL and returns how many.
func (rl *Limiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	n := 0
	for key, w := range rl.windows {
		if w.lastSeen.Before(cutoff) {
			delete(rl.windows, key)
			n++
		}
	}
	return n
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	clients := int64(len(rl.windows))
	rl.mu.Unlock()

	return Metrics{
		TotalHits:   rl.rejected.Load(),
		ClientCount: clients,
	}
}

// Middleware limits requests by the key extractKey returns. Every response
// carries the X-RateLimit headers; rejected ones also get Retry-After and
// are answered by onLimit, or a plain 429 when onLimit is nil.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := rl.Take(extractKey(r))
			resetSecs := int(math.Ceil(d.Reset.Seconds()))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(resetSecs))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(max(resetSecs, 1)))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
