package feed

import "sync"

// ScrollState is the input of the load-more decision.
type ScrollState struct {
	DistanceFromTop float64
	IsFetchingOlder bool
	HasMoreOlder    bool
	Errored         bool
	ItemCount       int
}

// ShouldLoadMore decides whether the viewport warrants fetching the next
// older page. Errored caches wait for an explicit retry.
func ShouldLoadMore(s ScrollState, threshold float64) bool {
	return s.DistanceFromTop <= threshold &&
		!s.IsFetchingOlder &&
		s.HasMoreOlder &&
		!s.Errored &&
		s.ItemCount > 0
}

// Coordinator turns a stream of scroll positions into at most one load per
// crossing of the threshold.
type Coordinator struct {
	threshold float64
	load      func()

	mu    sync.Mutex
	armed bool
}

// NewCoordinator returns a coordinator calling load when the viewport gets
// within threshold of the top of the loaded history.
func NewCoordinator(threshold float64, load func()) *Coordinator {
	return &Coordinator{threshold: threshold, load: load, armed: true}
}

// Observe feeds one scroll sample and reports whether load was called.
// The coordinator re-arms once the viewport moves back above the threshold.
func (c *Coordinator) Observe(s ScrollState) bool {
	c.mu.Lock()
	if s.DistanceFromTop > c.threshold {
		c.armed = true
		c.mu.Unlock()
		return false
	}
	if !c.armed || !ShouldLoadMore(s, c.threshold) {
		c.mu.Unlock()
		return false
	}
	c.armed = false
	c.mu.Unlock()

	if c.load != nil {
		c.load()
	}
	return true
}

// Rearm allows the next eligible sample to fire even without leaving the
// threshold zone, e.g. after a manual retry.
func (c *Coordinator) Rearm() {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()
}
