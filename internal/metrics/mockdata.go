package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MockTradesGeneratedTotal counts synthetic trades by purpose
	MockTradesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_mock_trades_generated_total",
		Help: "The total number of synthetic trades generated",
	}, []string{"source"})

	// MockTradesDroppedTotal counts streamed trades dropped due to backpressure
	MockTradesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_mock_trades_dropped_total",
		Help: "The total number of streamed synthetic trades dropped due to backpressure",
	})
)
