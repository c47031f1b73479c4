// Package metrics exposes Prometheus metrics for the detection API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeProcessingError  = "processing_error"
	OutcomeBadRequest       = "bad_request"
	OutcomeModelUnavailable = "model_unavailable"
	OutcomeUnauthorized     = "unauthorized"
)

type Metrics struct {
	registry *prometheus.Registry

	detectRequestsTotal *prometheus.CounterVec
	detectionsPerImage  prometheus.Histogram
	inferenceDuration   prometheus.Histogram
	pipelineDuration    prometheus.Histogram
	modelLoadsTotal     *prometheus.CounterVec
	gpsImagesTotal      *prometheus.CounterVec
}

func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.detectRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecobot_detect_requests_total",
			Help: "Detect requests by outcome",
		},
		[]string{"outcome"},
	)
	m.detectionsPerImage = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecobot_detections_per_image",
		Help:    "Number of objects detected per processed image",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
	m.inferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecobot_inference_duration_seconds",
		Help:    "Time spent in model inference",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	m.pipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecobot_pipeline_duration_seconds",
		Help:    "Time from upload read to encoded response",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	m.modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecobot_model_loads_total",
			Help: "Model load attempts by status",
		},
		[]string{"status"},
	)
	m.gpsImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecobot_gps_images_total",
			Help: "Processed images by GPS metadata presence",
		},
		[]string{"gps"},
	)
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.detectRequestsTotal.Describe(ch)
	m.detectionsPerImage.Describe(ch)
	m.inferenceDuration.Describe(ch)
	m.pipelineDuration.Describe(ch)
	m.modelLoadsTotal.Describe(ch)
	m.gpsImagesTotal.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.detectRequestsTotal.Collect(ch)
	m.detectionsPerImage.Collect(ch)
	m.inferenceDuration.Collect(ch)
	m.pipelineDuration.Collect(ch)
	m.modelLoadsTotal.Collect(ch)
	m.gpsImagesTotal.Collect(ch)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(outcome string) {
	m.detectRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDetections(count int) {
	m.detectionsPerImage.Observe(float64(count))
}

func (m *Metrics) RecordInference(d time.Duration) {
	m.inferenceDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordPipeline(d time.Duration) {
	m.pipelineDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordGPS(found bool) {
	label := "absent"
	if found {
		label = "present"
	}
	m.gpsImagesTotal.WithLabelValues(label).Inc()
}

// RecordModelLoad matches the model.Handle OnLoad callback.
func (m *Metrics) RecordModelLoad(err error, _ time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.modelLoadsTotal.WithLabelValues(status).Inc()
}
