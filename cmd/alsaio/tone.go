package main

import (
	"context"
	"time"

	"github.com/go-audio/audio"
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsaio/backend"
)

func newToneCmd(a *app) *cobra.Command {
	var (
		device    string
		frequency float64
		amplitude float64
		rate      int
		channels  int
		bits      int
		buffer    uint32
		duration  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tone",
		Short: "Play a sine tone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := backend.Format{
				Format:   audio.Format{NumChannels: channels, SampleRate: rate},
				BitDepth: bits,
			}

			p, err := a.backend().OpenPlayback(device, backend.PlaybackParams{Format: format, UpdateSize: buffer},
				&toneMixer{frequency: frequency, amplitude: amplitude})
			if err != nil {
				return err
			}
			defer p.Close()

			printf(cmd, "Playing %.0f Hz on %s: %d channels, %d Hz, buffer %d frames\n",
				frequency, p.Name(), p.Channels(), p.Frequency(), p.UpdateSize())

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			ctx, cancelTimeout := context.WithTimeout(ctx, duration)
			defer cancelTimeout()

			<-ctx.Done()

			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Playback device name as listed by devices (default device when empty)")
	cmd.Flags().Float64VarP(&frequency, "frequency", "f", 440, "Tone frequency in Hz")
	cmd.Flags().Float64Var(&amplitude, "amplitude", 0.5, "Tone amplitude between 0 and 1")
	cmd.Flags().IntVarP(&rate, "rate", "r", 48000, "Sample rate in Hz")
	cmd.Flags().IntVar(&channels, "channels", 2, "Number of channels")
	cmd.Flags().IntVar(&bits, "bits", 16, "Sample width, 8 or 16")
	cmd.Flags().Uint32Var(&buffer, "buffer", 4096, "Ring buffer size in frames")
	cmd.Flags().DurationVarP(&duration, "duration", "t", 3*time.Second, "How long to play")

	return cmd
}
