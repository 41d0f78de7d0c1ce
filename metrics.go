package qoptim

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Metrics aggregates what the pool has run.
type Metrics struct {
	mu sync.RWMutex

	WorkerCount int
	QueueSize   int

	SessionsRun        int64
	SessionsFailed     int64
	SchedulingFailures int64
	TotalIterations    int64
	TotalSessionTime   time.Duration

	AverageLatency time.Duration
	P95Latency     time.Duration
	P99Latency     time.Duration
	SuccessRate    float64

	// sliding window of the most recent latencies, in seconds
	latencies  []float64
	windowSize int
}

func newMetrics() *Metrics {
	return &Metrics{
		latencies:  make([]float64, 0, 1000),
		windowSize: 1000,
	}
}

func (m *Metrics) recordSession(started time.Time, iterations int, err error) {
	duration := time.Since(started)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SessionsRun++
	if err != nil {
		m.SessionsFailed++
	}
	m.TotalIterations += int64(iterations)
	m.TotalSessionTime += duration
	m.SuccessRate = float64(m.SessionsRun-m.SessionsFailed) / float64(m.SessionsRun)

	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) recordSchedulingFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SchedulingFailures++
}

func (m *Metrics) setQueueSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueueSize = n
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageLatency = m.TotalSessionTime / time.Duration(m.SessionsRun)

	m.latencies = append(m.latencies, duration.Seconds())
	if len(m.latencies) > m.windowSize {
		m.latencies = m.latencies[1:]
	}

	sorted := slices.Clone(m.latencies)
	slices.Sort(sorted)

	m.P95Latency = seconds(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	m.P99Latency = seconds(stat.Quantile(0.99, stat.Empirical, sorted, nil))
}

func (m *Metrics) ExportMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"worker_count":        m.WorkerCount,
		"queue_size":          m.QueueSize,
		"sessions_run":        m.SessionsRun,
		"sessions_failed":     m.SessionsFailed,
		"scheduling_failures": m.SchedulingFailures,
		"total_iterations":    m.TotalIterations,
		"success_rate":        m.SuccessRate,
		"avg_latency":         m.AverageLatency.Milliseconds(),
		"p95_latency":         m.P95Latency.Milliseconds(),
		"p99_latency":         m.P99Latency.Milliseconds(),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
