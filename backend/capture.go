package backend

import (
	"errors"
	"fmt"
	"log/slog"

	alsa "github.com/gen2brain/alsaio"
)

// capturePeriods is the fixed period count of capture streams.
const capturePeriods = 4

// Capture is an open capture stream. Samples are pulled by the caller, there is no worker.
// A Capture is not safe for concurrent use.
type Capture struct {
	name       string
	handle     Handle
	format     Format
	frameSize  int
	bufferSize uint32
	errs       ErrorReporter
	log        *slog.Logger

	staging []byte
	closed  bool
}

// OpenCapture opens the named capture device with the given rate and sample format
// and a ring buffer of at least frames frames. An empty name selects the default device.
func (b *Backend) OpenCapture(name string, frequency uint32, format Format, frames uint32) (*Capture, error) {
	entry, ok := b.registry.lookupCapture(name)
	if !ok {
		b.errs.SetError(InvalidValue)

		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}

	route := entry.Route(b.captureRoute)

	pcmFormat := captureEncoding(format)
	if pcmFormat == alsa.SNDRV_PCM_FORMAT_INVALID {
		b.log.Warn("Unsupported capture sample width", "device", entry.Name, "bytes", format.BytesPerSample())
	}

	h, err := b.open(route, alsa.SNDRV_PCM_STREAM_CAPTURE)
	if err != nil {
		return nil, err
	}

	err = negotiate(h, []negotiateStep{
		{"set access", func(hp HWParams) error { return hp.SetAccess(alsa.SNDRV_PCM_ACCESS_MMAP_INTERLEAVED) }},
		{"set format", func(hp HWParams) error { return hp.SetFormat(pcmFormat) }},
		{"set channels", func(hp HWParams) error { return hp.SetChannels(uint32(format.NumChannels)) }},
		{"set periods near", func(hp HWParams) error {
			_, err := hp.SetPeriodsNear(capturePeriods)

			return err
		}},
		{"set rate", func(hp HWParams) error { return hp.SetRate(frequency) }},
		{"set buffer size min", func(hp HWParams) error {
			_, err := hp.SetBufferSizeMin(frames)

			return err
		}},
	})
	if err != nil {
		_ = h.Close()

		return nil, err
	}

	if err := h.Prepare(); err != nil {
		_ = h.Close()

		return nil, fmt.Errorf("prepare failed: %w", err)
	}

	format.SampleRate = int(frequency)
	bufferSize := h.BufferSize()

	c := &Capture{
		name:       entry.Name,
		handle:     h,
		format:     format,
		frameSize:  format.FrameSize(),
		bufferSize: bufferSize,
		errs:       b.errs,
		log:        b.log.With("device", entry.Name),
	}

	c.log.Info("Capture opened", "route", route, "rate", frequency, "channels", format.NumChannels, "buffer_size", bufferSize)

	return c, nil
}

// Start starts the hardware clock. A stopped stream is prepared again first.
func (c *Capture) Start() error {
	if c.closed {
		return ErrClosed
	}

	if c.handle.State() == alsa.SNDRV_PCM_STATE_SETUP {
		if err := c.handle.Prepare(); err != nil {
			return fmt.Errorf("prepare failed: %w", err)
		}
	}

	if err := c.handle.Start(); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	return nil
}

// Stop stops the hardware clock. Frames already captured stay readable.
func (c *Capture) Stop() error {
	if c.closed {
		return ErrClosed
	}

	if err := c.handle.Drain(); err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}

	return nil
}

// Samples copies exactly frames frames into dst. When fewer frames are available, or the transfer
// fails part way, nothing is copied and the returned error wraps ErrInvalidValue.
func (c *Capture) Samples(dst []byte, frames int) error {
	if c.closed {
		return ErrClosed
	}

	need := frames * c.frameSize
	if frames < 0 || len(dst) < need {
		c.errs.SetError(InvalidValue)

		return fmt.Errorf("%w: %d frames do not fit in %d bytes", ErrInvalidValue, frames, len(dst))
	}

	avail, err := available(c.handle)
	if err != nil {
		c.errs.SetError(InvalidValue)

		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	if avail < frames {
		c.errs.SetError(InvalidValue)

		return fmt.Errorf("%w: %d frames requested, %d available", ErrInvalidValue, frames, avail)
	}

	if cap(c.staging) < need {
		c.staging = make([]byte, need)
	}

	staging := c.staging[:need]

	moved, err := transfer(c.handle, frames, copyOut(staging))
	RecordFrames("capture", moved)

	if err == nil && moved != frames {
		err = fmt.Errorf("transferred %d of %d frames", moved, frames)
	}

	if err != nil {
		if errors.Is(err, ErrShortCommit) {
			RecordCommitError("capture")
		}

		c.log.Warn("Capture transfer failed", "frames", moved, "error", err)
		c.errs.SetError(InvalidValue)

		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	copy(dst, staging)

	return nil
}

// Available returns the number of captured frames ready to be read. It never returns a negative count,
// a stream that cannot be recovered reports InvalidDevice and yields zero.
func (c *Capture) Available() int {
	if c.closed {
		return 0
	}

	avail, err := available(c.handle)
	if err != nil {
		c.log.Error("Capture available frames failed", "error", err)
		c.errs.SetError(InvalidDevice)

		return 0
	}

	return avail
}

// Close closes the device. Further calls are no-ops.
func (c *Capture) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	c.log.Info("Capture closed")

	if err := c.handle.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}

	return nil
}

// Name returns the registry name of the device.
func (c *Capture) Name() string {
	return c.name
}

// Format returns the stream format.
func (c *Capture) Format() Format {
	return c.format
}

// BufferSize returns the ring buffer size in frames granted by the hardware.
func (c *Capture) BufferSize() uint32 {
	return c.bufferSize
}

func captureEncoding(f Format) alsa.PcmFormat {
	switch f.BytesPerSample() {
	case 1:
		return alsa.SNDRV_PCM_FORMAT_U8
	case 2:
		return alsa.SNDRV_PCM_FORMAT_S16_LE
	default:
		return alsa.SNDRV_PCM_FORMAT_INVALID
	}
}
