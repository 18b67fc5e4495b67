package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace = "fdstream"
	subsystemStream  = "stream"

	DirectionRead  = "read"
	DirectionWrite = "write"
)

// StreamCollector counts stream activity and exposes it through a private
// Prometheus registry. A nil *StreamCollector is valid and records nothing.
type StreamCollector struct {
	mu        sync.RWMutex
	namespace string
	registry  *prometheus.Registry
	startTime time.Time

	bytesRead    uint64
	bytesWritten uint64
	chunksRead   uint64
	writes       uint64
	drains       uint64
	errors       uint64

	bytesTotal  *prometheus.CounterVec
	opsTotal    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	drainsTotal prometheus.Counter
	queued      prometheus.Gauge
}

// StreamSnapshot is a point-in-time view of the collected counters.
type StreamSnapshot struct {
	Elapsed      time.Duration
	BytesRead    uint64
	BytesWritten uint64
	ChunksRead   uint64
	Writes       uint64
	Drains       uint64
	Errors       uint64
	ReadBps      float64
	WriteBps     float64
}

func NewStreamCollector(namespace string) *StreamCollector {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	sc := &StreamCollector{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	sc.registerMetrics()
	return sc
}

func (sc *StreamCollector) registerMetrics() {
	sc.bytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: sc.namespace,
		Subsystem: subsystemStream,
		Name:      "bytes_total",
		Help:      "Bytes moved through file streams.",
	}, []string{"direction"})
	sc.opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: sc.namespace,
		Subsystem: subsystemStream,
		Name:      "operations_total",
		Help:      "Completed read and write operations.",
	}, []string{"direction"})
	sc.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: sc.namespace,
		Subsystem: subsystemStream,
		Name:      "errors_total",
		Help:      "Failed open, read and write operations.",
	}, []string{"direction"})
	sc.drainsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: sc.namespace,
		Subsystem: subsystemStream,
		Name:      "drains_total",
		Help:      "Drain signals emitted by write streams.",
	})
	sc.queued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: sc.namespace,
		Subsystem: subsystemStream,
		Name:      "queued_bytes",
		Help:      "Bytes accepted by write streams but not yet written.",
	})
	sc.registry.MustRegister(sc.bytesTotal, sc.opsTotal, sc.errorsTotal, sc.drainsTotal, sc.queued)
}

// Registry exposes the collectors, e.g. for promhttp.HandlerFor.
func (sc *StreamCollector) Registry() *prometheus.Registry {
	if sc == nil {
		return nil
	}
	return sc.registry
}

func (sc *StreamCollector) ObserveRead(n int) {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	sc.bytesRead += uint64(n)
	sc.chunksRead++
	sc.mu.Unlock()
	sc.bytesTotal.WithLabelValues(DirectionRead).Add(float64(n))
	sc.opsTotal.WithLabelValues(DirectionRead).Inc()
}

func (sc *StreamCollector) ObserveWrite(n int) {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	sc.bytesWritten += uint64(n)
	sc.writes++
	sc.mu.Unlock()
	sc.bytesTotal.WithLabelValues(DirectionWrite).Add(float64(n))
	sc.opsTotal.WithLabelValues(DirectionWrite).Inc()
}

func (sc *StreamCollector) ObserveError(direction string) {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	sc.errors++
	sc.mu.Unlock()
	sc.errorsTotal.WithLabelValues(direction).Inc()
}

func (sc *StreamCollector) ObserveDrain() {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	sc.drains++
	sc.mu.Unlock()
	sc.drainsTotal.Inc()
}

// AddQueued moves the queued-bytes gauge by delta.
func (sc *StreamCollector) AddQueued(delta int) {
	if sc == nil {
		return
	}
	sc.queued.Add(float64(delta))
}

func (sc *StreamCollector) Snapshot() StreamSnapshot {
	if sc == nil {
		return StreamSnapshot{}
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	elapsed := time.Since(sc.startTime)
	snap := StreamSnapshot{
		Elapsed:      elapsed,
		BytesRead:    sc.bytesRead,
		BytesWritten: sc.bytesWritten,
		ChunksRead:   sc.chunksRead,
		Writes:       sc.writes,
		Drains:       sc.drains,
		Errors:       sc.errors,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		snap.ReadBps = float64(sc.bytesRead) / secs
		snap.WriteBps = float64(sc.bytesWritten) / secs
	}
	return snap
}
