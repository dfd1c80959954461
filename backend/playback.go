package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	alsa "github.com/gen2brain/alsaio"
)

const defaultPeriods = 4

// PlaybackParams describe the requested playback configuration.
// The hardware may adjust the rate and the buffer size, the adjusted values are reported by the Playback.
type PlaybackParams struct {
	Format Format
	// UpdateSize is the requested ring buffer size in frames.
	UpdateSize uint32
}

// Playback is an open playback stream fed by a Mixer from a background worker.
type Playback struct {
	name       string
	handle     Handle
	format     Format
	pcmFormat  alsa.PcmFormat
	updateSize uint32
	periods    uint32
	log        *slog.Logger

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// OpenPlayback opens the named playback device and starts rendering from mixer.
// An empty name selects the default device. The returned stream must be closed exactly once.
func (b *Backend) OpenPlayback(name string, params PlaybackParams, mixer Mixer) (*Playback, error) {
	entry, ok := b.registry.lookupPlayback(name)
	if !ok {
		b.errs.SetError(InvalidValue)

		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}

	route := entry.Route(b.playbackRoute)

	h, err := b.open(route, alsa.SNDRV_PCM_STREAM_PLAYBACK)
	if err != nil {
		return nil, err
	}

	p := &Playback{
		name:      entry.Name,
		handle:    h,
		format:    params.Format,
		pcmFormat: playbackEncoding(params.Format),
		log:       b.log.With("device", entry.Name),
	}

	if p.pcmFormat == alsa.SNDRV_PCM_FORMAT_INVALID {
		p.log.Warn("Unsupported playback sample width", "bits", params.Format.BitDepth)
	}

	periods := b.cfg.GetInt("alsa", "periods", defaultPeriods)
	if periods <= 0 {
		periods = defaultPeriods
	}

	rate := uint32(params.Format.SampleRate)

	err = negotiate(h, []negotiateStep{
		{"set access", func(hp HWParams) error { return hp.SetAccess(alsa.SNDRV_PCM_ACCESS_MMAP_INTERLEAVED) }},
		{"set format", func(hp HWParams) error { return hp.SetFormat(p.pcmFormat) }},
		{"set channels", func(hp HWParams) error { return hp.SetChannels(uint32(params.Format.NumChannels)) }},
		{"set periods near", func(hp HWParams) (err error) {
			p.periods, err = hp.SetPeriodsNear(uint32(periods))

			return err
		}},
		{"set rate near", func(hp HWParams) (err error) {
			rate, err = hp.SetRateNear(rate)

			return err
		}},
		{"set buffer size near", func(hp HWParams) error {
			_, err := hp.SetBufferSizeNear(params.UpdateSize)

			return err
		}},
	})
	if err != nil {
		_ = h.Close()

		return nil, err
	}

	p.format.SampleRate = int(rate)
	p.updateSize = h.BufferSize()

	if err := p.prime(); err != nil {
		_ = h.Close()

		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group, ctx = errgroup.WithContext(ctx)
	p.group.Go(func() error {
		return p.run(ctx, mixOp(mixer, p.format))
	})

	p.log.Info("Playback started",
		"route", route, "rate", rate, "channels", p.format.NumChannels, "buffer_size", p.updateSize, "periods", p.periods)

	return p, nil
}

// prime prepares the device, fills the whole ring with silence and starts it.
// A failed silence fill is logged, the device is started anyway.
func (p *Playback) prime() error {
	if err := p.handle.Prepare(); err != nil {
		return fmt.Errorf("prepare failed: %w", err)
	}

	avail, err := available(p.handle)
	if err != nil {
		return fmt.Errorf("available frames failed: %w", err)
	}

	if moved, err := transfer(p.handle, avail, silenceOp(p.pcmFormat)); err != nil {
		p.log.Warn("Silence fill failed", "frames", moved, "error", err)
	}

	if err := p.handle.Start(); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	return nil
}

// run keeps the ring buffer filled until ctx is cancelled or recovery fails.
func (p *Playback) run(ctx context.Context, op regionFunc) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for ctx.Err() == nil {
		if cause := stateError(p.handle.State()); cause != nil {
			RecordUnderrun()

			if err := recoverStream(p.handle, cause); err != nil {
				p.log.Error("Playback recovery failed", "error", err)

				return err
			}
		}

		avail, err := available(p.handle)
		if err != nil {
			if errors.Is(err, ErrRecoveryFailed) {
				p.log.Error("Playback recovery failed", "error", err)

				return err
			}

			p.log.Warn("Playback available frames failed", "error", err)
		}

		if avail == 0 {
			if !sleep(ctx, timer, idleBackoff) {
				return nil
			}

			continue
		}

		moved, err := transfer(p.handle, avail, op)
		RecordFrames("playback", moved)

		if err != nil {
			if errors.Is(err, ErrRecoveryFailed) {
				p.log.Error("Playback transfer failed", "error", err)

				return err
			}

			if errors.Is(err, ErrShortCommit) {
				RecordCommitError("playback")
			}

			p.log.Warn("Playback transfer failed", "frames", moved, "error", err)
		}
	}

	return nil
}

// sleep waits d on timer and reports whether ctx is still live.
func sleep(ctx context.Context, timer *time.Timer, d time.Duration) bool {
	timer.Reset(d)

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close stops the worker, waits for it to exit and closes the device. Further calls return the first result.
func (p *Playback) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()

		// The worker logs its own failure.
		_ = p.group.Wait()

		if err := p.handle.Close(); err != nil {
			p.closeErr = fmt.Errorf("close failed: %w", err)
		}

		p.log.Info("Playback stopped")
	})

	return p.closeErr
}

// Name returns the registry name of the device.
func (p *Playback) Name() string {
	return p.name
}

// Format returns the stream format with the rate granted by the hardware.
func (p *Playback) Format() Format {
	return p.format
}

// Frequency returns the sample rate granted by the hardware.
func (p *Playback) Frequency() uint32 {
	return uint32(p.format.SampleRate)
}

// UpdateSize returns the ring buffer size in frames granted by the hardware.
func (p *Playback) UpdateSize() uint32 {
	return p.updateSize
}

// Periods returns the period count granted by the hardware.
func (p *Playback) Periods() uint32 {
	return p.periods
}

// Channels returns the channel count.
func (p *Playback) Channels() int {
	return p.format.NumChannels
}

func playbackEncoding(f Format) alsa.PcmFormat {
	switch f.BitDepth {
	case 8:
		return alsa.SNDRV_PCM_FORMAT_U8
	case 16:
		return alsa.SNDRV_PCM_FORMAT_S16_LE
	default:
		return alsa.SNDRV_PCM_FORMAT_INVALID
	}
}
