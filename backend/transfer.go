package backend

import (
	"fmt"
	"syscall"

	alsa "github.com/gen2brain/alsaio"
)

// maxBeginFailures bounds consecutive recovered MmapBegin failures within one transfer.
const maxBeginFailures = 8

// regionFunc fills or drains one granted region.
type regionFunc func(r Region)

// available returns the frames ready for transfer. A failed query is recovered once and repeated.
func available(h Handle) (int, error) {
	avail, err := h.AvailUpdate()
	if err == nil && avail >= 0 {
		return avail, nil
	}

	if err == nil {
		err = fmt.Errorf("negative available frames %d: %w", avail, syscall.EPIPE)
	}

	if err := recoverStream(h, err); err != nil {
		return 0, err
	}

	avail, err = h.AvailUpdate()
	if err != nil {
		return 0, fmt.Errorf("available frames after recovery: %w", err)
	}

	if avail < 0 {
		return 0, fmt.Errorf("negative available frames %d after recovery", avail)
	}

	return avail, nil
}

// transfer moves up to frames frames through op, one granted region at a time, and returns
// the frames committed. A region smaller than requested is not an error. A failed begin is
// recovered and retried, a failed recovery aborts the transfer. A commit that does not
// cover the whole region returns ErrShortCommit and its frames are not counted.
func transfer(h Handle, frames int, op regionFunc) (int, error) {
	moved := 0
	failures := 0

	for moved < frames {
		r, err := h.MmapBegin(frames - moved)
		if err != nil {
			if err := recoverStream(h, err); err != nil {
				return moved, err
			}

			failures++
			if failures >= maxBeginFailures {
				return moved, fmt.Errorf("%w %d times: %w", ErrBeginFailed, failures, err)
			}

			continue
		}

		failures = 0

		if r.Frames == 0 {
			break
		}

		op(r)

		committed, err := h.MmapCommit(r.Offset, r.Frames)
		if err != nil {
			return moved, fmt.Errorf("%w: %w", ErrShortCommit, err)
		}

		if committed != r.Frames {
			return moved, fmt.Errorf("%w: %d of %d frames", ErrShortCommit, committed, r.Frames)
		}

		moved += committed
	}

	return moved, nil
}

func silenceOp(format alsa.PcmFormat) regionFunc {
	return func(r Region) {
		alsa.FormatSilence(r.Bytes(), format)
	}
}

func mixOp(m Mixer, format Format) regionFunc {
	return func(r Region) {
		m.MixInto(r.Bytes(), format)
	}
}

// copyOut copies each region into dst, advancing dst by the region length.
func copyOut(dst []byte) regionFunc {
	return func(r Region) {
		n := copy(dst, r.Bytes())
		dst = dst[n:]
	}
}
