package backend

import (
	"fmt"
	"log/slog"
	"slices"

	alsa "github.com/gen2brain/alsaio"
)

const (
	// MaxDevices is the capacity of the by-card lists, the default entry included.
	MaxDevices = 16
	// MaxAllDevices is the capacity of the detailed playback list, the default entry included.
	MaxAllDevices = 32

	// DefaultPlaybackName is the name of the default playback device.
	DefaultPlaybackName = "ALSA Software on default"
	// DefaultCaptureName is the name of the default capture device.
	DefaultCaptureName = "ALSA Capture on default"
)

// DeviceEntry is an enumerated device name and its hardware route.
type DeviceEntry struct {
	Name   string
	Card   int
	Device int
}

// Default reports whether the entry is the default device, routed through the configured alias.
func (e DeviceEntry) Default() bool {
	return e.Card < 0
}

// Route returns the hardware route of the entry, or def for the default entry.
func (e DeviceEntry) Route(def string) string {
	if e.Default() {
		return def
	}

	return fmt.Sprintf("hw:%d,%d", e.Card, e.Device)
}

// Registry is the immutable result of device enumeration.
// Entry 0 of every list is the default device.
type Registry struct {
	playback   []DeviceEntry
	allDevices []DeviceEntry
	capture    []DeviceEntry
}

// Playback returns the by-card playback devices.
func (r *Registry) Playback() []DeviceEntry {
	return slices.Clone(r.playback)
}

// AllDevices returns every playback PCM device.
func (r *Registry) AllDevices() []DeviceEntry {
	return slices.Clone(r.allDevices)
}

// Capture returns the by-card capture devices.
func (r *Registry) Capture() []DeviceEntry {
	return slices.Clone(r.capture)
}

// lookupPlayback resolves a playback name. The detailed list is searched before the by-card list.
func (r *Registry) lookupPlayback(name string) (DeviceEntry, bool) {
	if name == "" {
		return r.allDevices[0], true
	}

	if e, ok := lookup(r.allDevices, name); ok {
		return e, true
	}

	return lookup(r.playback, name)
}

func (r *Registry) lookupCapture(name string) (DeviceEntry, bool) {
	if name == "" {
		return r.capture[0], true
	}

	return lookup(r.capture, name)
}

func lookup(entries []DeviceEntry, name string) (DeviceEntry, bool) {
	i := slices.IndexFunc(entries, func(e DeviceEntry) bool {
		return e.Name == name
	})
	if i < 0 {
		return DeviceEntry{}, false
	}

	return entries[i], true
}

// Enumerate walks the sound cards of hw and builds the device registry.
// Cards whose control interface cannot be opened are logged and skipped. Having no cards is not an error.
func Enumerate(hw Subsystem, names NameLists, log *slog.Logger) *Registry {
	r := &Registry{
		playback:   []DeviceEntry{{Name: names.AddPlayback(DefaultPlaybackName), Card: -1, Device: -1}},
		allDevices: []DeviceEntry{{Name: names.AddAllDevices(DefaultPlaybackName), Card: -1, Device: -1}},
		capture:    []DeviceEntry{{Name: names.AddCapture(DefaultCaptureName), Card: -1, Device: -1}},
	}

	walkCards(hw, log, func(card int, ctl Control) {
		cardName := ctl.CardName()

		if card < MaxDevices-1 {
			name := names.AddPlayback(fmt.Sprintf("ALSA Software on %s", cardName))
			r.playback = append(r.playback, DeviceEntry{Name: name, Card: card, Device: 0})
		}

		device := -1
		for len(r.allDevices) < MaxAllDevices {
			var err error
			device, err = ctl.PcmNextDevice(device)
			if err != nil {
				log.Warn("Failed to get next PCM device", "card", card, "error", err)

				break
			}

			if device < 0 {
				break
			}

			info, err := ctl.PcmInfo(device, 0, alsa.SNDRV_PCM_STREAM_PLAYBACK)
			if err != nil {
				log.Debug("Skipping PCM device", "card", card, "device", device, "error", err)

				continue
			}

			name := names.AddAllDevices(fmt.Sprintf("ALSA Software on %s [%s]", cardName, info.Name))
			r.allDevices = append(r.allDevices, DeviceEntry{Name: name, Card: card, Device: device})
		}
	})

	walkCards(hw, log, func(card int, ctl Control) {
		if card >= MaxDevices-1 || !hasCapture(ctl) {
			return
		}

		name := names.AddCapture(fmt.Sprintf("ALSA Capture on %s", ctl.CardName()))
		r.capture = append(r.capture, DeviceEntry{Name: name, Card: card, Device: 0})
	})

	log.Debug("Enumerated devices",
		"playback", len(r.playback)-1, "all_devices", len(r.allDevices)-1, "capture", len(r.capture)-1)

	return r
}

// walkCards calls fn for each card in ascending order with its control interface open.
func walkCards(hw Subsystem, log *slog.Logger, fn func(card int, ctl Control)) {
	card, err := hw.CardNext(-1)
	if err != nil {
		log.Warn("Failed to find a card", "error", err)

		return
	}

	for card >= 0 {
		ctl, err := hw.OpenControl(card)
		if err != nil {
			log.Warn("Failed to open control", "card", card, "error", err)
		} else {
			fn(card, ctl)
			_ = ctl.Close()
		}

		card, err = hw.CardNext(card)
		if err != nil {
			log.Warn("Failed to find next card", "error", err)

			return
		}
	}
}

// hasCapture reports whether any PCM device of the card can capture.
func hasCapture(ctl Control) bool {
	device := -1
	for {
		var err error
		device, err = ctl.PcmNextDevice(device)
		if err != nil || device < 0 {
			return false
		}

		if _, err := ctl.PcmInfo(device, 0, alsa.SNDRV_PCM_STREAM_CAPTURE); err == nil {
			return true
		}
	}
}
