// Package metrics содержит Prometheus-метрики мастер-сессии.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Направления конвертов
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Результаты решений и автосохранения
const (
	ResultAdmitted = "admitted"
	ResultRejected = "rejected"
	ResultOK       = "ok"
	ResultFailed   = "failed"
)

// Registry holds all metrics of a master session
type Registry struct {
	registry *prometheus.Registry

	// Peers
	PeersConnected prometheus.Gauge
	PeerJoinsTotal *prometheus.CounterVec

	// Protocol
	EnvelopesTotal     *prometheus.CounterVec
	EnvelopeBytesTotal *prometheus.CounterVec

	// Validation
	DecisionsTotal *prometheus.CounterVec

	// Persistence
	AutosaveTotal    *prometheus.CounterVec
	AutosaveDuration prometheus.Histogram
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initPeerMetrics()
	r.initProtocolMetrics()
	r.initPersistenceMetrics()
	return r
}

func (r *Registry) initPeerMetrics() {
	r.PeersConnected = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gophreview_peers_connected",
			Help: "Current number of authenticated peers",
		},
	)

	r.PeerJoinsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophreview_peer_joins_total",
			Help: "Total number of join attempts by result",
		},
		[]string{"result"},
	)
}

func (r *Registry) initProtocolMetrics() {
	r.EnvelopesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophreview_envelopes_total",
			Help: "Total number of protocol envelopes by direction and kind",
		},
		[]string{"direction", "kind"},
	)

	r.EnvelopeBytesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophreview_envelope_bytes_total",
			Help: "Total size of protocol envelopes in bytes",
		},
		[]string{"direction"},
	)

	r.DecisionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophreview_decisions_total",
			Help: "Total number of validation decisions by result and operation",
		},
		[]string{"result", "op"},
	)
}

func (r *Registry) initPersistenceMetrics() {
	r.AutosaveTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophreview_autosave_total",
			Help: "Total number of session saves by result",
		},
		[]string{"result"},
	)

	r.AutosaveDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gophreview_autosave_duration_seconds",
			Help:    "Session save latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
}

// Handler returns an HTTP handler serving this registry
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer returns the underlying gatherer
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
