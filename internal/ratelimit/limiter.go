package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	staleAfter    = 5 * time.Minute
	sweepInterval = 3 * time.Minute
)

// Limiter is a per-IP token bucket rate limiter. It tracks each client by IP
// address and sweeps out entries not seen for a while.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rps     rate.Limit
	burst   int
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a per-IP rate limiter allowing rps requests per second
// with the given burst size, and starts its background sweep goroutine.
func NewLimiter(rps float64, burst int) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go l.sweep()
	return l
}

// Allow reports whether a request from the given IP address should be
// permitted, creating a token bucket for new IPs.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()

	return c.limiter.Allow()
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for ip, c := range l.clients {
			if time.Since(c.lastSeen) >= staleAfter {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}
