package backend_test

import (
	"fmt"
	"log/slog"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/alsaio/backend"
)

func twoCards() []fakeCard {
	return []fakeCard{
		{index: 0, name: "HDA Intel", devices: []fakeDevice{
			{num: 0, name: "ALC887 Analog", playback: true, capture: true},
			{num: 1, name: "ALC887 Digital", playback: true},
		}},
		{index: 1, name: "USB Audio", devices: []fakeDevice{
			{num: 0, name: "USB Audio", playback: true},
		}},
	}
}

func TestEnumerate(t *testing.T) {
	t.Run("TwoCards", func(t *testing.T) {
		names := &nameRecorder{}
		r := backend.Enumerate(&fakeSubsystem{cards: twoCards()}, names, slog.Default())

		assert.Equal(t, []backend.DeviceEntry{
			{Name: backend.DefaultPlaybackName, Card: -1, Device: -1},
			{Name: "ALSA Software on HDA Intel", Card: 0, Device: 0},
			{Name: "ALSA Software on USB Audio", Card: 1, Device: 0},
		}, r.Playback())

		assert.Equal(t, []backend.DeviceEntry{
			{Name: backend.DefaultPlaybackName, Card: -1, Device: -1},
			{Name: "ALSA Software on HDA Intel [ALC887 Analog]", Card: 0, Device: 0},
			{Name: "ALSA Software on HDA Intel [ALC887 Digital]", Card: 0, Device: 1},
			{Name: "ALSA Software on USB Audio [USB Audio]", Card: 1, Device: 0},
		}, r.AllDevices())

		assert.Equal(t, []backend.DeviceEntry{
			{Name: backend.DefaultCaptureName, Card: -1, Device: -1},
			{Name: "ALSA Capture on HDA Intel", Card: 0, Device: 0},
		}, r.Capture())

		assert.Len(t, names.playback, 3)
		assert.Len(t, names.all, 4)
		assert.Equal(t, []string{backend.DefaultCaptureName, "ALSA Capture on HDA Intel"}, names.capture)
	})

	t.Run("NoCards", func(t *testing.T) {
		r := backend.Enumerate(&fakeSubsystem{}, &nameRecorder{}, slog.Default())

		require.Len(t, r.Playback(), 1)
		require.Len(t, r.AllDevices(), 1)
		require.Len(t, r.Capture(), 1)
		assert.True(t, r.Playback()[0].Default())
		assert.True(t, r.AllDevices()[0].Default())
		assert.True(t, r.Capture()[0].Default())
	})

	t.Run("SkipsBrokenCardsAndDevices", func(t *testing.T) {
		cards := twoCards()
		cards[0].openErr = syscall.EACCES
		cards[1].devices = append(cards[1].devices,
			fakeDevice{num: 2, name: "capture only", capture: true},
			fakeDevice{num: 3, name: "Second", playback: true})

		r := backend.Enumerate(&fakeSubsystem{cards: cards}, &nameRecorder{}, slog.Default())

		assert.Equal(t, []backend.DeviceEntry{
			{Name: backend.DefaultPlaybackName, Card: -1, Device: -1},
			{Name: "ALSA Software on USB Audio [USB Audio]", Card: 1, Device: 0},
			{Name: "ALSA Software on USB Audio [Second]", Card: 1, Device: 3},
		}, r.AllDevices())
		assert.Len(t, r.Playback(), 2)
		assert.Len(t, r.Capture(), 2)
	})

	t.Run("Capacity", func(t *testing.T) {
		var cards []fakeCard
		for i := range 20 {
			card := fakeCard{index: i, name: fmt.Sprintf("Card%d", i)}
			for d := range 3 {
				card.devices = append(card.devices, fakeDevice{num: d, name: fmt.Sprintf("pcm%d", d), playback: true})
			}

			cards = append(cards, card)
		}

		r := backend.Enumerate(&fakeSubsystem{cards: cards}, &nameRecorder{}, slog.Default())

		assert.Len(t, r.Playback(), backend.MaxDevices)
		assert.Len(t, r.AllDevices(), backend.MaxAllDevices)
		assert.Equal(t, "ALSA Software on Card14", r.Playback()[backend.MaxDevices-1].Name)
	})

	t.Run("CardsBeyondShortListStillWalked", func(t *testing.T) {
		cards := []fakeCard{{index: 20, name: "Late", devices: []fakeDevice{{num: 0, name: "pcm", playback: true}}}}

		r := backend.Enumerate(&fakeSubsystem{cards: cards}, &nameRecorder{}, slog.Default())

		assert.Len(t, r.Playback(), 1)
		require.Len(t, r.AllDevices(), 2)
		assert.Equal(t, 20, r.AllDevices()[1].Card)
	})

	t.Run("SnapshotIsImmutable", func(t *testing.T) {
		r := backend.Enumerate(&fakeSubsystem{cards: twoCards()}, &nameRecorder{}, slog.Default())

		entries := r.AllDevices()
		entries[1].Card = 9

		assert.Equal(t, 0, r.AllDevices()[1].Card)
	})
}

func TestDeviceEntryRoute(t *testing.T) {
	assert.Equal(t, "hw:1", backend.DeviceEntry{Card: -1, Device: -1}.Route("hw:1"))
	assert.Equal(t, "hw:1,3", backend.DeviceEntry{Card: 1, Device: 3}.Route("default"))
}
