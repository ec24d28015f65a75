package circuitbreaker

import "time"

type bucket struct {
	start     time.Time
	successes int
	failures  int
	timeouts  int
}

// rollingWindow keeps outcome counts for the last span, split into fixed-width
// buckets. Buckets are recycled as time moves past them.
type rollingWindow struct {
	width   time.Duration
	buckets []bucket
}

func newRollingWindow(span time.Duration, n int) *rollingWindow {
	width := span / time.Duration(n)
	if width <= 0 {
		width = time.Millisecond
	}
	return &rollingWindow{
		width:   width,
		buckets: make([]bucket, n),
	}
}

func (w *rollingWindow) bucket(now time.Time) *bucket {
	start := now.Truncate(w.width)
	idx := int((start.UnixNano() / int64(w.width)) % int64(len(w.buckets)))
	b := &w.buckets[idx]
	if !b.start.Equal(start) {
		*b = bucket{start: start}
	}
	return b
}

// totals returns the number of recorded calls in the window and how many of
// them failed or timed out.
func (w *rollingWindow) totals(now time.Time) (total, failures int) {
	oldest := now.Truncate(w.width).Add(-w.width * time.Duration(len(w.buckets)-1))
	for _, b := range w.buckets {
		if b.start.IsZero() || b.start.Before(oldest) || b.start.After(now) {
			continue
		}
		total += b.successes + b.failures + b.timeouts
		failures += b.failures + b.timeouts
	}
	return total, failures
}

func (w *rollingWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = bucket{}
	}
}
