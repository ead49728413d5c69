package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics holds the engine-level gauges and counters of spec.md's
// observability surface: connection/stream population, packet throughput,
// HPACK dynamic-table pressure, and waiter cancellation. It replaces the
// teacher's request/upstream/WAF/cache/circuit-breaker metric set, which has
// no transport-engine-core analogue.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	activeConnections prometheus.Gauge
	connectionsTotal   *prometheus.CounterVec
	activeStreams      prometheus.Gauge
	streamsTotal       *prometheus.CounterVec

	packetsSent     prometheus.Counter
	packetsReceived prometheus.Counter
	bytesSent       prometheus.Counter
	bytesReceived   prometheus.Counter

	hpackDynamicTableEvictions *prometheus.CounterVec
	hpackDynamicTableSize      *prometheus.GaugeVec

	waiterTimeouts *prometheus.CounterVec
	waiterWaiting  *prometheus.GaugeVec

	customMetrics map[string]prometheus.Collector
	mutex         sync.RWMutex
}

// MetricsConfig configures the namespace and collection behavior, mirroring
// the teacher's MetricsConfig shape.
type MetricsConfig struct {
	Namespace            string
	CollectionInterval    time.Duration
	ExposeGoMetrics       bool
	ExposeProcessMetrics  bool
}

// DefaultMetricsConfig mirrors the teacher's defaults, renamespaced.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:            "quicd",
		CollectionInterval:   15 * time.Second,
		ExposeGoMetrics:      true,
		ExposeProcessMetrics: true,
	}
}

// MetricsCollector owns the registry, the periodic-collection goroutine, and
// the promhttp server, the teacher's structural pattern for exposing metrics
// over HTTP.
type MetricsCollector struct {
	prometheus *PrometheusMetrics
	config     MetricsConfig
	collectors []Collector
	server     *http.Server
	enabled    bool
	mutex      sync.RWMutex
}

// Collector is one periodically-polled metric source, e.g. a snapshot of the
// engine's live connection/stream tables.
type Collector interface {
	Collect() error
	Name() string
	Enabled() bool
}

func NewPrometheusMetrics(config MetricsConfig) *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	if config.Namespace == "" {
		config.Namespace = "quicd"
	}

	pm := &PrometheusMetrics{
		registry:      registry,
		customMetrics: make(map[string]prometheus.Collector),
	}
	pm.initializeMetrics(config)
	pm.registerMetrics()
	return pm
}

func (pm *PrometheusMetrics) initializeMetrics(config MetricsConfig) {
	pm.activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Subsystem: "connection",
		Name:      "active",
		Help:      "Number of connections currently open or accepting.",
	})
	pm.connectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "connection",
		Name:      "total",
		Help:      "Total connections by terminal outcome.",
	}, []string{"outcome"})

	pm.activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Subsystem: "stream",
		Name:      "active",
		Help:      "Number of streams currently open across all connections.",
	})
	pm.streamsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "stream",
		Name:      "total",
		Help:      "Total streams by direction and terminal outcome.",
	}, []string{"direction", "outcome"})

	pm.packetsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "packet",
		Name:      "sent_total",
		Help:      "Total datagrams handed to the socket for egress.",
	})
	pm.packetsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "packet",
		Name:      "received_total",
		Help:      "Total datagrams delivered from the socket for ingest.",
	})
	pm.bytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "packet",
		Name:      "bytes_sent_total",
		Help:      "Total bytes handed to the socket for egress.",
	})
	pm.bytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "packet",
		Name:      "bytes_received_total",
		Help:      "Total bytes delivered from the socket for ingest.",
	})

	pm.hpackDynamicTableEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "hpack",
		Name:      "dynamic_table_evictions_total",
		Help:      "Total entries evicted from an HPACK dynamic table to make room for an insertion.",
	}, []string{"side"})
	pm.hpackDynamicTableSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Subsystem: "hpack",
		Name:      "dynamic_table_size_bytes",
		Help:      "Current HPACK dynamic table size in bytes.",
	}, []string{"side"})

	pm.waiterTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "waiter",
		Name:      "timeouts_total",
		Help:      "Total waiter operations that completed with a deadline/cancellation error.",
	}, []string{"operation"})
	pm.waiterWaiting = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Subsystem: "waiter",
		Name:      "waiting",
		Help:      "Number of waiters currently parked on an operation.",
	}, []string{"operation"})
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.activeConnections,
		pm.connectionsTotal,
		pm.activeStreams,
		pm.streamsTotal,
		pm.packetsSent,
		pm.packetsReceived,
		pm.bytesSent,
		pm.bytesReceived,
		pm.hpackDynamicTableEvictions,
		pm.hpackDynamicTableSize,
		pm.waiterTimeouts,
		pm.waiterWaiting,
	)
}

// SetActiveConnections reports the current number of live connections.
func (pm *PrometheusMetrics) SetActiveConnections(count int) {
	pm.activeConnections.Set(float64(count))
}

// RecordConnectionClosed increments the terminal-outcome counter for a
// connection reaching connstate.VariantClosed (spec.md §3 "error" / "closed"
// are both terminal outcomes tagged here).
func (pm *PrometheusMetrics) RecordConnectionClosed(outcome string) {
	pm.connectionsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveStreams reports the current number of open streams.
func (pm *PrometheusMetrics) SetActiveStreams(count int) {
	pm.activeStreams.Set(float64(count))
}

// RecordStreamClosed increments the terminal-outcome counter for one stream.
func (pm *PrometheusMetrics) RecordStreamClosed(direction, outcome string) {
	pm.streamsTotal.WithLabelValues(direction, outcome).Inc()
}

// RecordPacketSent records one outgoing datagram of n bytes.
func (pm *PrometheusMetrics) RecordPacketSent(n int) {
	pm.packetsSent.Inc()
	pm.bytesSent.Add(float64(n))
}

// RecordPacketReceived records one incoming datagram of n bytes.
func (pm *PrometheusMetrics) RecordPacketReceived(n int) {
	pm.packetsReceived.Inc()
	pm.bytesReceived.Add(float64(n))
}

// RecordHPACKEviction records one dynamic-table eviction on the given side
// ("encoder" or "decoder").
func (pm *PrometheusMetrics) RecordHPACKEviction(side string) {
	pm.hpackDynamicTableEvictions.WithLabelValues(side).Inc()
}

// SetHPACKDynamicTableSize reports the current dynamic table size in bytes.
func (pm *PrometheusMetrics) SetHPACKDynamicTableSize(side string, bytes int) {
	pm.hpackDynamicTableSize.WithLabelValues(side).Set(float64(bytes))
}

// RecordWaiterTimeout records one waiter operation (connect, accept, read,
// write, read_headers, write_headers) completing via cancellation/deadline
// rather than completion, per spec.md §4, item 8's waiter protocol.
func (pm *PrometheusMetrics) RecordWaiterTimeout(operation string) {
	pm.waiterTimeouts.WithLabelValues(operation).Inc()
}

// SetWaiterWaiting reports the current number of parked waiters for operation.
func (pm *PrometheusMetrics) SetWaiterWaiting(operation string, count int) {
	pm.waiterWaiting.WithLabelValues(operation).Set(float64(count))
}

// AddCustomMetric registers an additional collector under name, the
// extension point the teacher's metrics package also exposes.
func (pm *PrometheusMetrics) AddCustomMetric(name string, collector prometheus.Collector) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.customMetrics[name] = collector
	pm.registry.MustRegister(collector)
}

// GetRegistry returns the underlying prometheus.Registry.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// NewMetricsCollector builds a MetricsCollector, optionally registering the
// standard Go/process collectors (teacher default: both enabled).
func NewMetricsCollector(config MetricsConfig) *MetricsCollector {
	mc := &MetricsCollector{
		prometheus: NewPrometheusMetrics(config),
		config:     config,
		collectors: make([]Collector, 0),
		enabled:    true,
	}
	if config.ExposeGoMetrics {
		mc.prometheus.registry.MustRegister(prometheus.NewGoCollector())
	}
	if config.ExposeProcessMetrics {
		mc.prometheus.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	return mc
}

// AddCollector registers a periodic Collector for StartCollection to poll.
func (mc *MetricsCollector) AddCollector(c Collector) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.collectors = append(mc.collectors, c)
}

// StartCollection starts the periodic-poll goroutine over all registered
// collectors, ticking at config.CollectionInterval (default 15s).
func (mc *MetricsCollector) StartCollection(ctx context.Context) {
	if mc.config.CollectionInterval == 0 {
		mc.config.CollectionInterval = 15 * time.Second
	}
	ticker := time.NewTicker(mc.config.CollectionInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.collectMetrics()
			}
		}
	}()
}

func (mc *MetricsCollector) collectMetrics() {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	if !mc.enabled {
		return
	}
	for _, collector := range mc.collectors {
		if collector.Enabled() {
			collector.Collect()
		}
	}
}

// StartServer serves /metrics and /health on addr, blocking until the
// listener errors (typically from a Shutdown via StopServer).
func (mc *MetricsCollector) StartServer(addr string) error {
	handler := promhttp.HandlerFor(mc.prometheus.registry, promhttp.HandlerOpts{})

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mc.server = &http.Server{Addr: addr, Handler: mux}
	return mc.server.ListenAndServe()
}

// StopServer gracefully shuts down the metrics HTTP server.
func (mc *MetricsCollector) StopServer(ctx context.Context) error {
	if mc.server != nil {
		return mc.server.Shutdown(ctx)
	}
	return nil
}

// GetPrometheus returns the underlying PrometheusMetrics.
func (mc *MetricsCollector) GetPrometheus() *PrometheusMetrics {
	return mc.prometheus
}

func (mc *MetricsCollector) Enable() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.enabled = true
}

func (mc *MetricsCollector) Disable() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.enabled = false
}

// EngineCollector snapshots an engine's live connection/stream population
// into the gauges above, the transport-engine counterpart of the teacher's
// ProxyCollector (which snapshotted per-backend connection counts).
type EngineCollector struct {
	metrics *PrometheusMetrics
	snap    func() (connections, streams int)
}

// NewEngineCollector builds an EngineCollector; snap is called once per
// collection tick to obtain the current population.
func NewEngineCollector(metrics *PrometheusMetrics, snap func() (connections, streams int)) *EngineCollector {
	return &EngineCollector{metrics: metrics, snap: snap}
}

func (ec *EngineCollector) Collect() error {
	connections, streams := ec.snap()
	ec.metrics.SetActiveConnections(connections)
	ec.metrics.SetActiveStreams(streams)
	return nil
}

func (ec *EngineCollector) Name() string    { return "engine" }
func (ec *EngineCollector) Enabled() bool   { return ec.snap != nil }
