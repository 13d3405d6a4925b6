package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter enforces the politeness delay: a minimum spacing between
// successive request starts to the same domain. Each caller reserves the
// domain's next start slot under the lock, so concurrent workers hitting one
// domain are spaced out instead of racing a stale timestamp. Workers hitting
// different domains proceed independently.
type RateLimiter struct {
	domainNextStart   map[string]time.Time
	domainNextStartMu sync.Mutex
	log               *logrus.Entry
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		domainNextStart: make(map[string]time.Time),
		log:             log,
	}
}

// ApplyDelay reserves the next request-start slot for domain and blocks
// until it arrives, or ctx is cancelled. No jitter is applied: the delay is
// a politeness floor that must hold exactly, including when several workers
// contend for the same domain.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, domain string, minDelay time.Duration) {
	if minDelay <= 0 {
		return
	}

	now := time.Now()
	rl.domainNextStartMu.Lock()
	start := now
	if next, ok := rl.domainNextStart[domain]; ok && next.After(now) {
		start = next
	}
	rl.domainNextStart[domain] = start.Add(minDelay)
	rl.domainNextStartMu.Unlock()

	sleep := time.Until(start)
	if sleep <= 0 {
		return
	}
	rl.log.WithFields(logrus.Fields{
		"domain": domain, "sleep": sleep, "required_delay": minDelay,
	}).Debug("Rate limit applying sleep")

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
