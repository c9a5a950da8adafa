package goMormot

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts completed handshakes.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts handshakes that committed nothing.
	MetricLoginFailure
	// MetricLogoutSuccess counts logouts acknowledged by the server.
	MetricLogoutSuccess
	// MetricLogoutFailure counts logouts whose server call failed.
	MetricLogoutFailure
	// MetricRequestSigned counts signed requests sent.
	MetricRequestSigned
	// MetricRequestUnsigned counts unsigned requests sent.
	MetricRequestUnsigned
	// MetricRequestFailure counts requests that returned an error.
	MetricRequestFailure
	// MetricServerRejection counts non-2xx responses.
	MetricServerRejection
	// MetricSessionResumed counts sessions restored from Redis.
	MetricSessionResumed
	// MetricSessionPersistFailure counts failed Redis saves or deletes.
	MetricSessionPersistFailure
	// MetricLoginLatency is the handshake latency histogram.
	MetricLoginLatency
	// MetricRequestLatency is the request latency histogram.
	MetricRequestLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:          "login_success",
	MetricLoginFailure:          "login_failure",
	MetricLogoutSuccess:         "logout_success",
	MetricLogoutFailure:         "logout_failure",
	MetricRequestSigned:         "request_signed",
	MetricRequestUnsigned:       "request_unsigned",
	MetricRequestFailure:        "request_failure",
	MetricServerRejection:       "server_rejection",
	MetricSessionResumed:        "session_resumed",
	MetricSessionPersistFailure: "session_persist_failure",
	MetricLoginLatency:          "login_latency",
	MetricRequestLatency:        "request_latency",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// IsLatency reports whether id is a histogram rather than a counter.
func (id MetricID) IsLatency() bool {
	return id == MetricLoginLatency || id == MetricRequestLatency
}

// MetricIDCount returns the number of defined metrics.
func MetricIDCount() int {
	return int(metricIDCount)
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the inclusive upper bounds of the latency
// buckets. The last bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free client counters.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter. Latency IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount || id.IsLatency() {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in a latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !id.IsLatency() {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns a counter value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot reads every counter atomically; the snapshot as a whole is not a
// single consistent cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id.IsLatency() {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricLoginLatency, MetricRequestLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
