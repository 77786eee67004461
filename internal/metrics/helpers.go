package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Timer records elapsed time into a histogram
type Timer struct {
	histogram prometheus.Observer
	startTime time.Time
}

func NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		histogram: histogram,
		startTime: time.Now(),
	}
}

// ObserveDuration records the duration since the timer was created
func (t *Timer) ObserveDuration() {
	t.histogram.Observe(time.Since(t.startTime).Seconds())
}

// TimeFunc executes f and records its execution time
func TimeFunc(histogram prometheus.Observer, f func()) {
	timer := NewTimer(histogram)
	defer timer.ObserveDuration()
	f()
}

// TimeFuncWithResult executes f, records its execution time and returns its result
func TimeFuncWithResult[T any](histogram prometheus.Observer, f func() T) T {
	timer := NewTimer(histogram)
	defer timer.ObserveDuration()
	return f()
}

// TimeQuery times a store query under the given label
func TimeQuery(query string) *Timer {
	return NewTimer(StoreQueryDuration.WithLabelValues(query))
}
