package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: fixed window in-process, para deploys single-process.
// El par check-and-increment ocurre bajo el mutex, que es el equivalente
// local del INCR atómico de Redis.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu       sync.Mutex
	counters map[string]*window
	ops      int64
	now      func() time.Time
}

type window struct {
	start time.Time
	hits  int64
}

// NewMemoryLimiter crea un limiter en memoria.
func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:      int64(max),
		Window:   win,
		counters: make(map[string]*window),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Ventana fija: el contador se resetea cuando now - start >= window,
	// sin decay parcial.
	w := l.counters[key]
	if w == nil || now.Sub(w.start) >= l.Window {
		w = &window{start: now}
		l.counters[key] = w
	}
	w.hits++

	// Poda periódica de ventanas vencidas para que el map no crezca sin tope.
	l.ops++
	if l.ops%4096 == 0 {
		for k, ww := range l.counters {
			if now.Sub(ww.start) >= l.Window {
				delete(l.counters, k)
			}
		}
	}

	remaining := l.Max - w.hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     w.hits <= l.Max,
		Remaining:   remaining,
		CurrentHits: w.hits,
		WindowTTL:   w.start.Add(l.Window).Sub(now),
	}
	if !res.Allowed {
		res.RetryAfter = res.WindowTTL
	}
	return res, nil
}
