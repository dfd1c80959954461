package main

import (
	"github.com/spf13/cobra"

	alsa "github.com/gen2brain/alsaio"
	"github.com/gen2brain/alsaio/backend"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List sound cards and the playback and capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cards, err := alsa.Cards()
			if err != nil {
				a.logger.Debug("Card list unavailable", "error", err)
			}

			printf(cmd, "Cards:\n")
			for _, card := range cards {
				printf(cmd, "  %s\n", card)
			}

			reg := a.backend().Registry()

			printEntries(cmd, "Playback devices", reg.Playback())
			printEntries(cmd, "All playback devices", reg.AllDevices())
			printEntries(cmd, "Capture devices", reg.Capture())

			return nil
		},
	}
}

func printEntries(cmd *cobra.Command, title string, entries []backend.DeviceEntry) {
	printf(cmd, "\n%s:\n", title)

	for i, e := range entries {
		if e.Default() {
			printf(cmd, "  %2d  %s\n", i, e.Name)

			continue
		}

		printf(cmd, "  %2d  %s (%s)\n", i, e.Name, e.Route(""))
	}
}
