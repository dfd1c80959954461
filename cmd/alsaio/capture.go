package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsaio/backend"
)

func newCaptureCmd(a *app) *cobra.Command {
	var (
		device   string
		rate     int
		channels int
		bits     int
		buffer   uint32
		chunk    int
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture <output.wav>",
		Short: "Record from a capture device into a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := backend.Format{
				Format:   audio.Format{NumChannels: channels, SampleRate: rate},
				BitDepth: bits,
			}

			c, err := a.backend().OpenCapture(device, uint32(rate), format, buffer)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer out.Close()

			enc := wav.NewEncoder(out, rate, bits, channels, 1)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			ctx, cancelTimeout := context.WithTimeout(ctx, duration)
			defer cancelTimeout()

			printf(cmd, "Capturing from %s into %s: %d channels, %d Hz, %d-bit, buffer %d frames\n",
				c.Name(), args[0], channels, rate, bits, c.BufferSize())

			if err := c.Start(); err != nil {
				return err
			}

			frames, err := record(ctx, c, enc, chunk)
			if err != nil {
				return err
			}

			if err := c.Stop(); err != nil {
				a.logger.Warn("Stopping capture failed", "error", err)
			}

			if err := enc.Close(); err != nil {
				return fmt.Errorf("finishing WAV file failed: %w", err)
			}

			a.logger.Info("Capture finished", "frames", frames, "file", args[0])

			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Capture device name as listed by devices (default device when empty)")
	cmd.Flags().IntVarP(&rate, "rate", "r", 48000, "Sample rate in Hz")
	cmd.Flags().IntVar(&channels, "channels", 2, "Number of channels")
	cmd.Flags().IntVar(&bits, "bits", 16, "Sample width, 8 or 16")
	cmd.Flags().Uint32Var(&buffer, "buffer", 4096, "Minimum ring buffer size in frames")
	cmd.Flags().IntVar(&chunk, "chunk", 1024, "Frames pulled per read")
	cmd.Flags().DurationVarP(&duration, "duration", "t", 5*time.Second, "How long to record")

	return cmd
}

// record pulls captured frames into enc until ctx is done and returns the frames written.
func record(ctx context.Context, c *backend.Capture, enc *wav.Encoder, chunk int) (int, error) {
	format := c.Format()
	frameSize := format.FrameSize()
	if frameSize == 0 || chunk <= 0 {
		return 0, fmt.Errorf("invalid capture layout: %d bytes per frame, %d frames per read", frameSize, chunk)
	}

	raw := make([]byte, chunk*frameSize)
	buf := &audio.IntBuffer{Format: &format.Format, SourceBitDepth: format.BitDepth}
	total := 0

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return total, nil
		case <-ticker.C:
		}

		for {
			n := min(c.Available(), chunk)
			if n == 0 {
				break
			}

			data := raw[:n*frameSize]
			if err := c.Samples(data, n); err != nil {
				return total, err
			}

			if format.BitDepth == 8 {
				buf.Data = u8ToInts(buf.Data, data)
			} else {
				buf.Data = s16ToInts(buf.Data, data)
			}

			if err := enc.Write(buf); err != nil {
				return total, fmt.Errorf("writing WAV file failed: %w", err)
			}

			total += n
		}
	}
}
