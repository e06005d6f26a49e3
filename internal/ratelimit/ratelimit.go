// Package ratelimit provides the injected per-client rate limiter used by the
// prompt preview endpoint: a fixed quota per rolling 60-second window, with
// eviction of expired windows so a long-running process does not grow without
// bound.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter answers whether a client may make another request right now.
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

type window struct {
	count int
	until time.Time
}

// Memory is a fixed-window in-process Limiter.
type Memory struct {
	limit int
	per   time.Duration

	mu      sync.Mutex
	windows map[string]*window

	lastSweep time.Time
}

// NewMemory creates a limiter allowing limit requests per window.
func NewMemory(limit int, per time.Duration) *Memory {
	return &Memory{
		limit:     limit,
		per:       per,
		windows:   make(map[string]*window),
		lastSweep: time.Now(),
	}
}

func (m *Memory) Allow(ctx context.Context, clientKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.sweepLocked(now)

	w, ok := m.windows[clientKey]
	if !ok || now.After(w.until) {
		w = &window{until: now.Add(m.per)}
		m.windows[clientKey] = w
	}

	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// sweepLocked drops expired windows. Runs at most once per window length so
// steady traffic doesn't pay the scan on every request.
func (m *Memory) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < m.per {
		return
	}
	m.lastSweep = now
	for key, w := range m.windows {
		if now.After(w.until) {
			delete(m.windows, key)
		}
	}
}

// ClientKey extracts the client identity for rate limiting: the first valid
// IP in X-Forwarded-For, falling back to the request's remote address.
func ClientKey(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}

var _ Limiter = (*Memory)(nil)
