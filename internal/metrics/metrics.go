package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the ingest and recognition pathways, exposed on /metrics.
var (
	CheckInsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_checkins_recorded_total",
		Help: "Check-ins that created a new attendance log.",
	})
	CheckInsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_checkins_skipped_total",
		Help: "Check-ins suppressed by the debounce window.",
	})
	RecognitionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_recognition_failures_total",
		Help: "Face identification calls that errored or found no candidate.",
	})
)
