// Package metrics defines the assembler's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flow labels
const (
	FlowCompose = "compose"
	FlowPDF     = "pdf"
	FlowConvert = "convert"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds every collector, registered on one registry
type Metrics struct {
	Registry *prometheus.Registry

	Runs               *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	Conversions        *prometheus.CounterVec
	ConverterWaiting   prometheus.Gauge
	ArtifactsPublished *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affidavit_runs_total",
				Help: "Total number of assembly runs by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "affidavit_run_duration_seconds",
				Help:    "Duration of assembly runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"flow"},
		),
		Conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affidavit_conversions_total",
				Help: "Total number of converter attempts by outcome",
			},
			[]string{"outcome"},
		),
		ConverterWaiting: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "affidavit_converter_waiting",
				Help: "Number of callers waiting for the converter",
			},
		),
		ArtifactsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affidavit_artifacts_published_total",
				Help: "Total number of artifacts published by kind",
			},
			[]string{"kind"},
		),
	}
}
