// Package metrics exposes Prometheus metrics for the name service on a dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/peer-name-service/interfaces"
)

// MetricsServer owns a Prometheus registry and the HTTP server publishing it.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	events     *prometheus.CounterVec
	operations *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	records    prometheus.GaugeFunc
	resolvers  prometheus.GaugeFunc
	namespace  string
}

// New creates a metrics server for namespace listening on addr.
func New(namespace, addr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	m := &MetricsServer{
		registry:  reg,
		namespace: namespace,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_events_total",
			Help:      "Registry events emitted, by kind",
		}, []string{"kind"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_operations_total",
			Help:      "Registry operations received over the API, by operation and outcome",
		}, []string{"op", "outcome"}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_operation_duration_seconds",
			Help:      "Time spent handling registry operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	m.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m, nil
}

// Registry returns the underlying Prometheus registry.
func (m *MetricsServer) Registry() *prometheus.Registry {
	return m.registry
}

// Emit counts ev. MetricsServer can be used as an interfaces.EventSink.
func (m *MetricsServer) Emit(ev interfaces.Event) {
	m.events.WithLabelValues(string(ev.Kind())).Inc()
}

// ObserveOperation records one API operation.
func (m *MetricsServer) ObserveOperation(op, outcome string, duration time.Duration) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// TrackRegistrySize exports gauges reading the current record and resolver counts.
func (m *MetricsServer) TrackRegistrySize(stats func() (records, resolvers int)) {
	m.records = promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "registry_records",
		Help:      "Names and subnames with an active record",
	}, func() float64 {
		records, _ := stats()
		return float64(records)
	})
	m.resolvers = promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "registry_resolvers",
		Help:      "Nodes with a resolver entry",
	}, func() float64 {
		_, resolvers := stats()
		return float64(resolvers)
	})
}

// Handler returns the /metrics handler, for tests and embedding.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

// ListenAndServe serves metrics until Shutdown.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// OperationObserver records API operation outcomes.
type OperationObserver interface {
	ObserveOperation(op, outcome string, duration time.Duration)
}

var (
	_ interfaces.EventSink = (*MetricsServer)(nil)
	_ OperationObserver    = (*MetricsServer)(nil)
)
