package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sampler refreshes gauges that have to be polled rather than pushed.
type Sampler func()

// StoreSizeSampler reports the size of a bounded trade store.
func StoreSizeSampler(store string, size func() int) Sampler {
	gauge := StoredTrades.WithLabelValues(store)
	return func() {
		gauge.Set(float64(size()))
	}
}

// RunRuntimeCollector updates the runtime gauges and runs every sampler each
// interval until ctx is done.
func RunRuntimeCollector(ctx context.Context, interval time.Duration, samplers ...Sampler) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sample := func() {
		updateRuntimeMetrics()
		for _, fn := range samplers {
			fn()
		}
	}

	sample()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sample()
		}
	}
}

func updateRuntimeMetrics() {
	GoroutinesCount.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	MemoryAllocBytes.Set(float64(memStats.Alloc))
	HeapAllocBytes.Set(float64(memStats.HeapAlloc))
	HeapObjectsCount.Set(float64(memStats.HeapObjects))
	GCPauseNanosTotal.Set(float64(memStats.PauseTotalNs))
}

// UpdateChannelMetrics updates size and capacity gauges for a buffered channel
func UpdateChannelMetrics(chanLen, chanCap int, sizeGauge, capGauge prometheus.Gauge) {
	sizeGauge.Set(float64(chanLen))
	capGauge.Set(float64(chanCap))
}
