package backend

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	alsa "github.com/gen2brain/alsaio"
)

var (
	// maxResumeAttempts bounds the resume retries of a suspended stream before it is restarted.
	maxResumeAttempts = 1000
	resumeBackoff     = time.Millisecond
)

// recoverStream brings a stream back to a running state after cause was reported.
// An underrun is restarted, a suspended stream is resumed (or restarted when resume fails),
// any other cause is returned wrapped in ErrRecoveryFailed.
func recoverStream(h Handle, cause error) error {
	switch {
	case errors.Is(cause, syscall.EPIPE):
		err := restart(h)
		RecordRecovery("underrun", err == nil)

		return err
	case errors.Is(cause, syscall.ESTRPIPE):
		err := resume(h)
		if err != nil {
			err = restart(h)
		}

		RecordRecovery("suspend", err == nil)

		return err
	default:
		RecordRecovery("other", false)

		return fmt.Errorf("%w: %w", ErrRecoveryFailed, cause)
	}
}

func resume(h Handle) error {
	var err error
	for range maxResumeAttempts {
		err = h.Resume()
		if !errors.Is(err, syscall.EAGAIN) {
			return err
		}

		time.Sleep(resumeBackoff)
	}

	return err
}

func restart(h Handle) error {
	if err := h.Prepare(); err != nil {
		return fmt.Errorf("%w: prepare failed: %w", ErrRecoveryFailed, err)
	}

	if err := h.Start(); err != nil {
		return fmt.Errorf("%w: start failed: %w", ErrRecoveryFailed, err)
	}

	return nil
}

// stateError maps a stream state that needs recovery to the errno reported for it.
func stateError(state alsa.PcmState) error {
	switch state {
	case alsa.SNDRV_PCM_STATE_XRUN:
		return syscall.EPIPE
	case alsa.SNDRV_PCM_STATE_SUSPENDED:
		return syscall.ESTRPIPE
	default:
		return nil
	}
}
