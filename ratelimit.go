/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

const (
	limiterIdle      = 10 * time.Minute
	rateLimitMessage = "too many requests, slow down"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiter hands out one token bucket per client address.
type limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func newLimiter(perSecond float64, burst int) *limiter {
	return &limiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// sweep forgets clients not seen for idle, and returns how many were dropped.
func (l *limiter) sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)

	dropped := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			dropped++
		}
	}
	return dropped
}

func (l *limiter) run(ctx context.Context) {
	ticker := time.NewTicker(limiterIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep(limiterIdle)
		}
	}
}

// clientHost is realIP without the port, so every connection from one
// address shares a bucket.
func clientHost(r *http.Request) string {
	addr := realIP(r)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func rateLimited(cfg *Config, l *limiter, mt *metrics, errs chan<- error, next httprouter.Handle) httprouter.Handle {
	if l == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		host := clientHost(r)
		if !l.allow(host) {
			mt.limited.Inc()

			w.Header().Set("Retry-After", "1")
			writeJSON(cfg, w, http.StatusTooManyRequests, response{Error: rateLimitMessage}, errs)

			logf(cfg, "LIMIT: Rejected request from %s", host)

			return
		}

		next(w, r, p)
	}
}
