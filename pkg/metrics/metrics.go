// Package metrics exposes prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ParsesTotal counts parse attempts by detected format and outcome.
	// Outcome is "ok" or the ingest error kind.
	ParsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_parses_total",
		Help: "Parse attempts by detected format and outcome.",
	}, []string{"format", "outcome"})

	// DetectionsTotal counts format detections by result and signal source.
	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_detections_total",
		Help: "Format detections by detected format and signal source.",
	}, []string{"format", "source"})
)
