package main

import (
	"github.com/spf13/cobra"

	alsa "github.com/gen2brain/alsaio"
)

func newInfoCmd(a *app) *cobra.Command {
	var capture bool

	cmd := &cobra.Command{
		Use:   "info [hw:C,D]",
		Short: "Show the hardware parameter ranges of a PCM device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "default"
			if len(args) > 0 {
				name = args[0]
			}

			card, device, err := alsa.ParsePcmName(name)
			if err != nil {
				return err
			}

			flags := alsa.PCM_OUT
			stream := alsa.SNDRV_PCM_STREAM_PLAYBACK
			if capture {
				flags = alsa.PCM_IN
				stream = alsa.SNDRV_PCM_STREAM_CAPTURE
			}

			params, err := alsa.QueryHwParams(card, device, flags)
			if err != nil {
				return err
			}
			defer params.Free()

			a.logger.Debug("Queried hardware parameters", "card", card, "device", device, "stream", stream)

			printf(cmd, "PCM card %d, device %d, stream %s:\n", card, device, stream)
			printf(cmd, "%s\n", params)

			return nil
		},
	}

	cmd.Flags().BoolVar(&capture, "capture", false, "Query the capture stream")

	return cmd
}
