// rate_limiter.go - Per-client rate limiting for the signaling service
package main

import (
	"sync"
	"time"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   time.Now(),
		refillPeriod: refillPeriod,
	}
}

// Allow checks if a request is allowed and consumes a token if so
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	refillCount := int(now.Sub(rl.lastRefill) / rl.refillPeriod)
	if refillCount > 0 {
		rl.tokens += refillCount * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// clientBucket pairs a limiter with its last activity for eviction
type clientBucket struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// ClientRateLimiter manages rate limiting per client address. Buckets idle
// for longer than maxIdle are swept out, so the map stays bounded by the
// set of recently active clients.
type ClientRateLimiter struct {
	mu           sync.Mutex
	buckets      map[string]*clientBucket
	maxTokens    int
	refillRate   int
	refillPeriod time.Duration
	maxIdle      time.Duration
	lastSweep    time.Time
}

// NewClientRateLimiter creates a new per-client rate limiter
func NewClientRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		buckets:      make(map[string]*clientBucket),
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
		maxIdle:      10 * time.Minute,
		lastSweep:    time.Now(),
	}
}

// Allow checks if a request from a client is allowed
func (crl *ClientRateLimiter) Allow(clientID string) bool {
	now := time.Now()

	crl.mu.Lock()
	if now.Sub(crl.lastSweep) > crl.maxIdle {
		for id, bucket := range crl.buckets {
			if now.Sub(bucket.lastSeen) > crl.maxIdle {
				delete(crl.buckets, id)
			}
		}
		crl.lastSweep = now
	}

	bucket, exists := crl.buckets[clientID]
	if !exists {
		bucket = &clientBucket{
			limiter: NewRateLimiter(crl.maxTokens, crl.refillRate, crl.refillPeriod),
		}
		crl.buckets[clientID] = bucket
	}
	bucket.lastSeen = now
	crl.mu.Unlock()

	return bucket.limiter.Allow()
}
