package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alsaio",
			Subsystem: "stream",
			Name:      "recoveries_total",
			Help:      "Total number of stream recoveries by kind (underrun, suspend, other) and result",
		},
		[]string{"kind", "result"},
	)

	commitErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alsaio",
			Subsystem: "stream",
			Name:      "commit_errors_total",
			Help:      "Total number of failed or short ring buffer commits",
		},
		[]string{"direction"},
	)

	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alsaio",
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Total number of frames committed to the ring buffer",
		},
		[]string{"direction"},
	)

	playbackUnderrunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "alsaio",
			Subsystem: "playback",
			Name:      "underruns_total",
			Help:      "Total number of underruns or suspends seen by the playback worker",
		},
	)
)

// RecordRecovery records the outcome of a recovery attempt.
func RecordRecovery(kind string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}

	recoveriesTotal.WithLabelValues(kind, result).Inc()
}

// RecordCommitError records a failed commit for a direction.
func RecordCommitError(direction string) {
	commitErrorsTotal.WithLabelValues(direction).Inc()
}

// RecordFrames records frames committed for a direction.
func RecordFrames(direction string, frames int) {
	framesTotal.WithLabelValues(direction).Add(float64(frames))
}

// RecordUnderrun records an underrun detected by the playback worker.
func RecordUnderrun() {
	playbackUnderrunsTotal.Inc()
}
