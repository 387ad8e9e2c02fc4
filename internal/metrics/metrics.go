package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patchsplit",
			Name:      "pages_classified_total",
			Help:      "Pages classified, by class (content, divider)",
		},
		[]string{"class"},
	)

	segmentsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "patchsplit",
			Name:      "segments_written_total",
			Help:      "Segment documents written",
		},
	)

	splitRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patchsplit",
			Name:      "split_runs_total",
			Help:      "Segmentation runs by result (success, failed)",
		},
		[]string{"result"},
	)

	splitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "patchsplit",
			Name:      "split_duration_seconds",
			Help:      "Duration of segmentation runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	jobsQueued = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "patchsplit",
			Name:      "jobs_queued",
			Help:      "Split jobs waiting for a dispatcher worker",
		},
	)

	registerOnce sync.Once
)

// Init registers collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(pagesClassified, segmentsWritten, splitRuns, splitLatency, jobsQueued)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncPage(class string) { pagesClassified.WithLabelValues(class).Inc() }
func IncSegment()          { segmentsWritten.Inc() }
func SetQueued(n int)      { jobsQueued.Set(float64(n)) }

// ObserveSplit records one run outcome and its duration.
func ObserveSplit(err error, dur time.Duration) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	splitRuns.WithLabelValues(result).Inc()
	splitLatency.Observe(dur.Seconds())
}
