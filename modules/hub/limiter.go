package hub

import (
	"sync"
	"time"
)

// Inbound message budget per connection: a bucket of burstSize tokens
// refilled continuously at messagesPerSecond.
const (
	messagesPerSecond = 10
	burstSize         = 20
)

// rateLimiter is a token bucket with lazy refill: tokens accrue as a
// function of elapsed time on each allow call, so idle connections
// cost nothing and sub-second refill is not rounded away.
type rateLimiter struct {
	mu     sync.Mutex
	tokens float64
	max    float64
	rate   float64 // tokens per second
	last   time.Time
}

func newRateLimiter(burst, perSecond int) *rateLimiter {
	return &rateLimiter{
		tokens: float64(burst),
		max:    float64(burst),
		rate:   float64(perSecond),
		last:   time.Now(),
	}
}

// allow spends one token if the bucket holds at least one.
func (l *rateLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.max {
		l.tokens = l.max
	}
	l.last = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
