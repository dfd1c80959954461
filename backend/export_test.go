package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecoverStream = recoverStream
	Transfer      = transfer
	Available     = available
)

var (
	RecoveriesTotal        = recoveriesTotal
	CommitErrorsTotal      = commitErrorsTotal
	FramesTotal            = framesTotal
	PlaybackUnderrunsTotal prometheus.Counter = playbackUnderrunsTotal
)

// SetTimings shortens the delays for tests and returns a function restoring them.
func SetTimings(reopen, idle, resume time.Duration, resumeAttempts int) func() {
	oldReopen, oldIdle, oldResume, oldAttempts := reopenDelay, idleBackoff, resumeBackoff, maxResumeAttempts
	reopenDelay, idleBackoff, resumeBackoff, maxResumeAttempts = reopen, idle, resume, resumeAttempts

	return func() {
		reopenDelay, idleBackoff, resumeBackoff, maxResumeAttempts = oldReopen, oldIdle, oldResume, oldAttempts
	}
}

// CopyOut exposes the capture region copy for tests.
func CopyOut(dst []byte) func(Region) {
	return copyOut(dst)
}
