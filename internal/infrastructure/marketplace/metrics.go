package marketplace

import (
	"sync"
	"time"

	"github.com/craftshop/backend/internal/domain/integration"
)

// Metrics accumulates request counters for one transport. It is scoped to a
// single platform connection, like the breaker it rides alongside.
type Metrics struct {
	mu          sync.Mutex
	total       int64
	success     int64
	failures    int64
	rateLimited int64
	perEndpoint map[string]int64
	// rolling average latency over all observed requests
	avgLatency time.Duration
}

// NewMetrics creates an empty metrics accumulator.
func NewMetrics() *Metrics {
	return &Metrics{perEndpoint: make(map[string]int64)}
}

// Record observes one completed request.
func (m *Metrics) Record(endpoint string, latency time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.perEndpoint[endpoint]++
	// incremental rolling average: avg += (x - avg) / n
	m.avgLatency += (latency - m.avgLatency) / time.Duration(m.total)

	switch {
	case err == nil:
		m.success++
	default:
		if _, ok := integration.AsRateLimited(err); ok {
			m.rateLimited++
		}
		m.failures++
	}
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() integration.TransportMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	perEndpoint := make(map[string]int64, len(m.perEndpoint))
	for k, v := range m.perEndpoint {
		perEndpoint[k] = v
	}
	return integration.TransportMetrics{
		Total:       m.total,
		Success:     m.success,
		Failures:    m.failures,
		RateLimited: m.rateLimited,
		PerEndpoint: perEndpoint,
		AvgLatency:  m.avgLatency,
	}
}
