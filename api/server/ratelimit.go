package server

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

const rateLimitWindow = 60 * time.Second
const maxRequestsPerWindow = 3000

// Progressive ban durations
var banDurations = []time.Duration{
	10 * time.Minute,
	1 * time.Hour,
	24 * time.Hour,
}

const permabanDuration = 100 * 365 * 24 * time.Hour // effectively permanent

// rateLimiter tracks per-host request rates on the peer endpoints and
// bans repeat offenders with escalating durations.
type rateLimiter struct {
	mu            sync.Mutex
	requestCounts map[string][]time.Time
	banned        map[string]time.Time
	banCounts     map[string]int
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		requestCounts: make(map[string][]time.Time),
		banned:        make(map[string]time.Time),
		banCounts:     make(map[string]int),
	}
}

// Allow checks and updates the rate limit for a host.
func (rl *rateLimiter) Allow(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if expiry, ok := rl.banned[host]; ok {
		if now.Before(expiry) {
			return false
		}
		delete(rl.banned, host)
	}

	var recent []time.Time
	for _, t := range rl.requestCounts[host] {
		if now.Sub(t) < rateLimitWindow {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	rl.requestCounts[host] = recent

	if len(recent) > maxRequestsPerWindow {
		rl.banCounts[host]++
		banCount := rl.banCounts[host]
		dur := permabanDuration
		if banCount <= len(banDurations) {
			dur = banDurations[banCount-1]
		}
		rl.banned[host] = now.Add(dur)
		log.Printf("[RATE LIMIT] banned %s for %s (violation #%d)", host, dur, banCount)
		return false
	}
	return true
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
