// Package health tracks process-level health signals for the API server:
// the shutdown flag, the prediction error rate, and rate-limit pressure.
// All trackers keep a sliding window of event timestamps.
package health

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool

	successes windowTracker
	errors    windowTracker
	requests  windowTracker
	denials   windowTracker
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// The health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// RecordPredictionSuccess records a successfully served prediction.
func RecordPredictionSuccess() {
	successes.record()
}

// RecordPredictionError records a failed prediction (model unavailable, no data, store error).
func RecordPredictionError() {
	errors.record()
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors.
func ErrorRate(window time.Duration) (errs, total int) {
	e := errors.count(window)
	s := successes.count(window)
	return e, e + s
}

// RecordRequest records a request on the rate-limited path.
func RecordRequest() {
	requests.record()
}

// RequestCount returns requests on the rate-limited path within the window.
func RequestCount(window time.Duration) int {
	return requests.count(window)
}

// RecordDenial records a request rejected by the rate limiter.
func RecordDenial() {
	denials.record()
}

// DenialCount returns rate-limit denials within the window.
func DenialCount(window time.Duration) int {
	return denials.count(window)
}

// Reset clears all trackers and the shutdown flag. For tests only.
func Reset() {
	shuttingDown.Store(false)
	successes.reset()
	errors.reset()
	requests.reset()
	denials.reset()
}

// windowTracker maintains a sliding window of event timestamps.
// Entries older than 30 minutes are pruned on every access.
type windowTracker struct {
	mu    sync.Mutex
	times []time.Time
}

func (t *windowTracker) record() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.times = append(t.times, now)
	t.pruneLocked(now)
}

func (t *windowTracker) count(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-window)
	t.pruneLocked(now)
	n := 0
	for _, ts := range t.times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

func (t *windowTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = nil
}

func (t *windowTracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-30 * time.Minute)
	i := 0
	for ; i < len(t.times) && t.times[i].Before(cutoff); i++ {
	}
	if i > 0 {
		t.times = append(t.times[:0], t.times[i:]...)
	}
}
