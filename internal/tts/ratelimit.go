package tts

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds a TTS provider to at most MaxRequests HTTP calls within
// a trailing Window, and to at most MaxConcurrent calls in flight at once.
// It tracks recent call timestamps in a sliding window rather than a fixed
// bucket refill, so a burst followed by silence doesn't let a second burst
// through early.
type RateLimiter struct {
	mu            sync.Mutex
	maxRequests   int
	window        time.Duration
	timestamps    []time.Time
	inFlight      int
	maxConcurrent int
	cond          *sync.Cond
}

// NewRateLimiter creates a RateLimiter allowing maxRequests calls per window
// and at most maxConcurrent calls in flight simultaneously.
func NewRateLimiter(maxRequests int, window time.Duration, maxConcurrent int) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 6
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	rl := &RateLimiter{
		maxRequests:   maxRequests,
		window:        window,
		maxConcurrent: maxConcurrent,
	}
	rl.cond = sync.NewCond(&rl.mu)
	return rl
}

// prune drops timestamps older than the window. Caller must hold mu.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.timestamps) && rl.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		rl.timestamps = rl.timestamps[i:]
	}
}

// Wait blocks until a request slot is available under both the window and
// concurrency limits, then reserves it. The caller must call Release when
// the call completes. Returns ctx.Err() if ctx is cancelled first.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		rl.mu.Lock()
		rl.cond.Broadcast()
		rl.mu.Unlock()
	})
	defer stop()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()
		rl.pruneLocked(now)

		if rl.inFlight < rl.maxConcurrent && len(rl.timestamps) < rl.maxRequests {
			rl.timestamps = append(rl.timestamps, now)
			rl.inFlight++
			return nil
		}

		if len(rl.timestamps) >= rl.maxRequests {
			// Wake up once the oldest timestamp falls out of the window, plus
			// a 0.5s safety buffer so we never re-check a hair too early.
			waitFor := rl.timestamps[0].Add(rl.window).Add(500 * time.Millisecond).Sub(now)
			timer := time.AfterFunc(waitFor, func() {
				rl.mu.Lock()
				rl.cond.Broadcast()
				rl.mu.Unlock()
			})
			rl.cond.Wait()
			timer.Stop()
		} else {
			rl.cond.Wait()
		}
	}
}

// Release frees a concurrency slot reserved by Wait. It does not affect the
// window count: a completed call still counts against the 60s history.
func (rl *RateLimiter) Release() {
	rl.mu.Lock()
	if rl.inFlight > 0 {
		rl.inFlight--
	}
	rl.mu.Unlock()
	rl.cond.Broadcast()
}

// RecentCount returns the number of calls recorded within the current window.
func (rl *RateLimiter) RecentCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.pruneLocked(time.Now())
	return len(rl.timestamps)
}

// InFlight returns the number of calls currently reserved but not released.
func (rl *RateLimiter) InFlight() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.inFlight
}
