package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the retrieval and summarisation
// pipelines.
type Metrics struct {
	// CDS retrieval metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	BytesDownloaded  prometheus.Counter
	DownloadsActive  prometheus.Gauge
	DownloadsSkipped prometheus.Counter

	// Summarisation metrics
	SummariesTotal   *prometheus.CounterVec
	SummaryDuration  *prometheus.HistogramVec
	PixelsSummarised prometheus.Counter

	startTime time.Time
}

// New creates a metrics collector registered on reg. Pass nil to use the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geofeatures_cds_requests_total",
				Help: "Total number of CDS API requests",
			},
			[]string{"dataset", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geofeatures_cds_request_duration_seconds",
				Help:    "End-to-end CDS request duration, including queue time",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 7200},
			},
			[]string{"dataset"},
		),
		BytesDownloaded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geofeatures_cds_bytes_downloaded_total",
				Help: "Total bytes downloaded from the CDS",
			},
		),
		DownloadsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "geofeatures_cds_downloads_active",
				Help: "Number of in-flight CDS downloads",
			},
		),
		DownloadsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geofeatures_cds_downloads_skipped_total",
				Help: "Downloads skipped because the output file already existed",
			},
		),

		SummariesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geofeatures_summaries_total",
				Help: "Total number of zonal summaries computed",
			},
			[]string{"kind"},
		),
		SummaryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geofeatures_summary_duration_seconds",
				Help:    "Zonal summary duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 30, 120},
			},
			[]string{"kind"},
		),
		PixelsSummarised: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geofeatures_pixels_summarised_total",
				Help: "Total raster cells visited while summarising",
			},
		),
	}
}

// ObserveRequest records a completed CDS request.
func (m *Metrics) ObserveRequest(dataset, status string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(dataset, status).Inc()
	m.RequestDuration.WithLabelValues(dataset).Observe(elapsed.Seconds())
}

// ObserveSummary records a completed zonal summary.
func (m *Metrics) ObserveSummary(kind string, elapsed time.Duration, pixels int) {
	m.SummariesTotal.WithLabelValues(kind).Inc()
	m.SummaryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.PixelsSummarised.Add(float64(pixels))
}

// Uptime returns time elapsed since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
