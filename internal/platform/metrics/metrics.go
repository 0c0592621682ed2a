package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	IdentifyRequests *prometheus.CounterVec
	ContactsCreated  *prometheus.CounterVec
	ClusterMerges    prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IdentifyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_identify_requests_total",
			Help: "Identify requests by outcome (ok, invalid, error)",
		}, []string{"outcome"}),
		ContactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_contacts_created_total",
			Help: "Contacts created by link precedence",
		}, []string{"precedence"}),
		ClusterMerges: factory.NewCounter(prometheus.CounterOpts{
			Name: "unify_cluster_merges_total",
			Help: "Cluster merges where a younger primary was demoted",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unify_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
