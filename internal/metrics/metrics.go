package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paper_navigator"

// Recorder holds the pipeline and HTTP collectors on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	documentsIngested prometheus.Counter
	chunksIndexed     prometheus.Gauge
	indexBuilds       *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	queryErrors       prometheus.Counter
	httpDuration      *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		documentsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents loaded into the index.",
		}),
		chunksIndexed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks_indexed",
			Help:      "Chunks currently stored in the vector collection.",
		}),
		indexBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index build attempts by result.",
		}, []string{"result"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end question answering latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}),
		queryErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Questions that failed.",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
}

// DocumentsIngested counts documents loaded by a build.
func (r *Recorder) DocumentsIngested(n int) {
	r.documentsIngested.Add(float64(n))
}

// ChunksIndexed sets the current collection size.
func (r *Recorder) ChunksIndexed(n int) {
	r.chunksIndexed.Set(float64(n))
}

// IndexBuild records a build with result "built", "empty" or "error".
func (r *Recorder) IndexBuild(result string) {
	r.indexBuilds.WithLabelValues(result).Inc()
}

// Query observes one answered or failed question.
func (r *Recorder) Query(d time.Duration, err error) {
	r.queryDuration.Observe(d.Seconds())
	if err != nil {
		r.queryErrors.Inc()
	}
}

// HTTPRequest observes one HTTP request.
func (r *Recorder) HTTPRequest(route, method, code string, d time.Duration) {
	r.httpDuration.WithLabelValues(route, method, code).Observe(d.Seconds())
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
