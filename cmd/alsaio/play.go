package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsaio/backend"
)

const decodeFrames = 4096

func newPlayCmd(a *app) *cobra.Command {
	var (
		device string
		buffer uint32
		ringMs int
	)

	cmd := &cobra.Command{
		Use:   "play <file.wav|file.mp3|file.ogg>",
		Short: "Play a WAV, MP3 or Ogg Vorbis file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dec, closer, err := openDecoder(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			format := backend.Format{
				Format:   audio.Format{NumChannels: dec.NumChans(), SampleRate: dec.SampleRate()},
				BitDepth: 16,
			}

			mixer := newRingMixer(format.SampleRate * format.FrameSize() * ringMs / 1000)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			produced := make(chan error, 1)
			go func() {
				produced <- produce(ctx, dec, mixer)
			}()

			p, err := a.backend().OpenPlayback(device, backend.PlaybackParams{Format: format, UpdateSize: buffer}, mixer)
			if err != nil {
				return err
			}
			defer p.Close()

			if p.Frequency() != uint32(format.SampleRate) {
				a.logger.Warn("Device rate differs from the file, playback speed changes",
					"file_rate", format.SampleRate, "device_rate", p.Frequency())
			}

			printf(cmd, "Playing %s (%d-bit, %d channels, %d Hz) on %s: %d Hz, buffer %d frames\n",
				args[0], dec.BitDepth(), dec.NumChans(), dec.SampleRate(), p.Name(), p.Frequency(), p.UpdateSize())

			select {
			case <-ctx.Done():
			case <-mixer.Done():
				// Let the frames still in the device ring play out.
				time.Sleep(time.Duration(p.UpdateSize()) * time.Second / time.Duration(p.Frequency()))
			}

			if err := <-produced; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			a.logger.Info("Playback finished",
				"bytes", mixer.played.Load(), "underflows", mixer.underflows.Load())

			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Playback device name as listed by devices (default device when empty)")
	cmd.Flags().Uint32Var(&buffer, "buffer", 4096, "Ring buffer size in frames")
	cmd.Flags().IntVar(&ringMs, "ring-ms", 250, "Decoder buffer in milliseconds of audio")

	return cmd
}

// produce decodes into the mixer ring until the input ends or ctx is done.
func produce(ctx context.Context, dec AudioDecoder, mixer *ringMixer) error {
	defer mixer.finish()

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: dec.NumChans(), SampleRate: dec.SampleRate()},
		Data:   make([]int, decodeFrames*dec.NumChans()),
	}

	var pcm []byte

	for {
		n, err := dec.PCMBuffer(buf)
		if n > 0 {
			pcm = appendS16(pcm[:0], buf.Data[:n], dec.BitDepth())
			if werr := writeRing(ctx, mixer, pcm); werr != nil {
				return werr
			}
		}

		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("decoding failed: %w", err)
		}
	}
}

// writeRing writes all of p, waiting for the mixer to make room.
func writeRing(ctx context.Context, mixer *ringMixer, p []byte) error {
	for len(p) > 0 {
		n, _ := mixer.ring.TryWrite(p)
		p = p[n:]

		if len(p) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}

	return nil
}
