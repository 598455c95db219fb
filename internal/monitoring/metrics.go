package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the crawler.
type Metrics struct {
	VideosTotal       *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	ExtractionSeconds prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VideosTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_videos_processed_total",
			Help: "The total number of videos processed, by terminal outcome",
		}, []string{"outcome"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'audio_download', 'extraction', 'db_save'
		ExtractionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_extraction_duration_seconds",
			Help:    "Time spent per AI extraction call",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) IncVideo(outcome string) {
	m.VideosTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncError(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveExtraction(d time.Duration) {
	m.ExtractionSeconds.Observe(d.Seconds())
}
