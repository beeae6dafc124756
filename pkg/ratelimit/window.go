package ratelimit

import (
	"sync"
	"time"
)

// Window implements a sliding window counter over a circular buffer of
// fixed-granularity buckets. Old buckets outside the window are pruned
// automatically, avoiding the "reset spike" problem of fixed windows.
//
// Unlike an in-memory rate limiter, this window must survive process
// restarts: Snapshot and RestoreWindow serialize the live buckets so the
// count is continuous across runs.
type Window struct {
	window     time.Duration // Window duration (e.g., 24 hours)
	bucketSize time.Duration // Granularity of each bucket (e.g., 1 hour)
	buckets    []bucket      // Circular buffer of buckets
	mu         sync.Mutex
}

// bucket represents a single time-stamped counter bucket.
type bucket struct {
	timestamp time.Time
	value     int64
}

// BucketSnapshot is the serializable form of one live bucket.
type BucketSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Value     int64     `json:"value"`
}

// NewWindow creates a sliding window counter. The number of buckets is
// window/bucketSize; smaller buckets are more accurate but produce larger
// persisted state.
func NewWindow(window, bucketSize time.Duration) *Window {
	numBuckets := int(window / bucketSize)
	if numBuckets == 0 {
		numBuckets = 1
	}
	return &Window{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]bucket, numBuckets),
	}
}

// RestoreWindow rebuilds a window from a persisted snapshot. Buckets that
// have aged out since the snapshot was taken are dropped on the next prune.
func RestoreWindow(window, bucketSize time.Duration, snapshot []BucketSnapshot) *Window {
	w := NewWindow(window, bucketSize)
	for _, bs := range snapshot {
		idx := w.index(bs.Timestamp)
		w.buckets[idx] = bucket{timestamp: bs.Timestamp.Truncate(bucketSize), value: bs.Value}
	}
	return w
}

// Add increments the counter by n in the bucket covering now.
func (w *Window) Add(now time.Time, n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)

	ts := now.Truncate(w.bucketSize)
	idx := w.index(now)
	if !w.buckets[idx].timestamp.Equal(ts) {
		w.buckets[idx] = bucket{timestamp: ts}
	}
	w.buckets[idx].value += n
}

// Sum returns the total count across all buckets still inside the window.
func (w *Window) Sum(now time.Time) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)

	var sum int64
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() {
			sum += w.buckets[i].value
		}
	}
	return sum
}

// Snapshot returns the live buckets for persistence.
func (w *Window) Snapshot(now time.Time) []BucketSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)

	var out []BucketSnapshot
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() {
			out = append(out, BucketSnapshot{
				Timestamp: w.buckets[i].timestamp,
				Value:     w.buckets[i].value,
			})
		}
	}
	return out
}

// Reset clears all buckets.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
}

// index maps a timestamp to its circular-buffer slot.
func (w *Window) index(t time.Time) int {
	slot := t.Truncate(w.bucketSize).UnixNano() / int64(w.bucketSize)
	idx := int(slot % int64(len(w.buckets)))
	if idx < 0 {
		idx += len(w.buckets)
	}
	return idx
}

// pruneLocked zeroes buckets older than the window. Caller holds mu.
func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() && w.buckets[i].timestamp.Before(cutoff.Truncate(w.bucketSize)) {
			w.buckets[i] = bucket{}
		}
	}
}
