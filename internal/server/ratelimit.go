package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/roomweaver/internal/config"
)

// RequestLimiter counts rejected requests per client IP and locks out
// clients that keep sending them.
type RequestLimiter struct {
	mu                sync.Mutex
	rejects           map[string]*rejectInfo
	maxRejects        int
	lockoutSeconds    int
	maxLockoutSeconds int
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
}

type rejectInfo struct {
	rejected     int
	lockedUntil  time.Time
	lockoutCount int
}

// NewRequestLimiter creates a limiter and starts its cleanup goroutine.
func NewRequestLimiter(cfg config.RateLimitConfig) *RequestLimiter {
	rl := &RequestLimiter{
		rejects:           make(map[string]*rejectInfo),
		maxRejects:        cfg.MaxAttempts,
		lockoutSeconds:    cfg.LockoutSeconds,
		maxLockoutSeconds: cfg.MaxLockoutSeconds,
		cleanupInterval:   5 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}

	if rl.maxRejects == 0 {
		rl.maxRejects = 5
	}
	if rl.lockoutSeconds == 0 {
		rl.lockoutSeconds = 30
	}
	if rl.maxLockoutSeconds == 0 {
		rl.maxLockoutSeconds = 300
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the cleanup goroutine.
func (rl *RequestLimiter) Stop() {
	close(rl.stopCleanup)
}

// IsLocked checks if the given IP is currently locked out.
// Returns true if locked, along with the remaining lockout duration.
func (rl *RequestLimiter) IsLocked(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	info, exists := rl.rejects[ip]
	if !exists {
		return false, 0
	}

	if time.Now().Before(info.lockedUntil) {
		return true, time.Until(info.lockedUntil)
	}

	return false, 0
}

// RecordReject records a rejected request from the given IP.
// Returns true if the IP is now locked out, along with the lockout duration.
func (rl *RequestLimiter) RecordReject(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	info, exists := rl.rejects[ip]
	if !exists {
		info = &rejectInfo{}
		rl.rejects[ip] = info
	}

	if time.Now().Before(info.lockedUntil) {
		return true, time.Until(info.lockedUntil)
	}

	info.rejected++

	if info.rejected < rl.maxRejects {
		return false, 0
	}

	info.lockoutCount++
	info.rejected = 0
	d := rl.lockoutFor(info.lockoutCount)
	info.lockedUntil = time.Now().Add(d)
	return true, d
}

// lockoutFor returns the lockout for the nth lockout of one IP. The base
// duration doubles per lockout up to the configured max.
func (rl *RequestLimiter) lockoutFor(n int) time.Duration {
	d := time.Duration(rl.lockoutSeconds) * time.Second
	limit := time.Duration(rl.maxLockoutSeconds) * time.Second
	for i := 1; i < n && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	return d
}

// RecordAccepted clears the reject count after a request is accepted.
func (rl *RequestLimiter) RecordAccepted(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.rejects, ip)
}

// Rejects returns the current reject count for an IP.
func (rl *RequestLimiter) Rejects(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if info, exists := rl.rejects[ip]; exists {
		return info.rejected
	}
	return 0
}

// cleanupLoop periodically removes expired entries.
func (rl *RequestLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops entries unlocked for ten minutes with no pending rejects.
func (rl *RequestLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)

	for ip, info := range rl.rejects {
		if info.lockedUntil.Before(cutoff) && info.rejected == 0 {
			delete(rl.rejects, ip)
		}
	}
}
