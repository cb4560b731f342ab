package gateway

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	rateMaxIPs       = 10000 // max tracked IPs to prevent memory exhaustion
)

// ipWindow tracks timestamped hits per client IP over a sliding window.
type ipWindow struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	limit  int
}

func newIPWindow(window time.Duration, limit int) *ipWindow {
	w := &ipWindow{
		hits:   make(map[string][]time.Time),
		window: window,
		limit:  limit,
	}
	go w.periodicCleanup()
	return w
}

// periodicCleanup removes stale entries every minute.
func (l *ipWindow) periodicCleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.window)
		for ip, times := range l.hits {
			filtered := times[:0]
			for _, t := range times {
				if t.After(cutoff) {
					filtered = append(filtered, t)
				}
			}
			if len(filtered) == 0 {
				delete(l.hits, ip)
			} else {
				l.hits[ip] = filtered
			}
		}
		l.mu.Unlock()
	}
}

func (l *ipWindow) allow(remoteAddr string) bool {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.window)
	recent := l.hits[host]
	filtered := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		delete(l.hits, host)
		return true
	}
	l.hits[host] = filtered
	return len(filtered) < l.limit
}

func (l *ipWindow) record(remoteAddr string) {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Cap tracked IPs; evict the IP with the oldest first hit when full.
	if _, exists := l.hits[host]; !exists && len(l.hits) >= rateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.hits {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		if oldestIP != "" {
			delete(l.hits, oldestIP)
		}
	}

	l.hits[host] = append(l.hits[host], time.Now())
}

func hostOf(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}
	return host
}

// rateLimit guards a route with a per-IP sliding window. Every request
// counts against the window, allowed or not.
func (s *Server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.scanLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		s.scanLimiter.record(r.RemoteAddr)
		next(w, r)
	}
}
