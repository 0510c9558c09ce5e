package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docverify"

var (
	analysisBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160}
	lagBuckets      = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}
	uploadBuckets   = prometheus.ExponentialBuckets(16*1024, 4, 8)
)

// registry is a per-process collector set; processes never share the
// global default registry.
type registry struct {
	reg *prometheus.Registry
}

func newRegistry() registry {
	return registry{reg: prometheus.NewRegistry()}
}

func (r registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r registry) counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	r.reg.MustRegister(c)
	return c
}

func (r registry) histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	r.reg.MustRegister(h)
	return h
}

func (r registry) gauge(subsystem, name, help, service string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": service},
	})
	r.reg.MustRegister(g)
	return g
}
