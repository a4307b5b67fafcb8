package server

import (
	"Pictor/core"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess      = "success"
	resultInvalidInput = "invalid_input"
	resultUpstream     = "upstream_error"
	resultStorage      = "storage_error"
)

type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	listedImages       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pictor",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pictor",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "route"},
		),
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pictor",
				Name:      "generations_total",
				Help:      "Image generation requests by style and result",
			},
			[]string{"style", "result"},
		),
		generationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pictor",
				Name:      "generation_duration_seconds",
				Help:      "Duration of the whole generate, download and store pipeline",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		listedImages: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pictor",
				Name:      "listed_images",
				Help:      "Number of images returned by the last listing",
			},
		),
	}
}

func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordGeneration(style string, err error, duration time.Duration) {
	if !core.ValidStyle(style) {
		style = "other"
	}
	m.generationsTotal.WithLabelValues(style, generationResult(err)).Inc()
	if err == nil {
		m.generationDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) RecordListing(count int) {
	m.listedImages.Set(float64(count))
}

func generationResult(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, core.ErrInvalidInput):
		return resultInvalidInput
	case errors.Is(err, core.ErrUpstream):
		return resultUpstream
	default:
		return resultStorage
	}
}
