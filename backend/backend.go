// Package backend streams audio to and from ALSA devices through their memory-mapped ring buffers.
//
// A Backend enumerates the sound cards once, resolves device names against that registry,
// and opens playback streams driven by a background worker or capture streams read by the caller.
package backend

import (
	"fmt"
	"log/slog"
	"time"

	alsa "github.com/gen2brain/alsaio"
)

var (
	// reopenDelay is the pause before the second attempt to open a busy device.
	reopenDelay = 200 * time.Millisecond
	// idleBackoff is the pause of the playback worker while the ring buffer is full.
	idleBackoff = time.Millisecond
)

// Options configure a Backend. Zero fields get defaults.
type Options struct {
	// Subsystem drives the hardware. Defaults to Hardware().
	Subsystem Subsystem
	// Config provides the alsa section lookups. Defaults to an empty MapConfig.
	// The routes alsa.default and alsa.capture accept "default" and "hw:C[,D]",
	// other values are replaced by "default".
	Config Config
	// Errors receives conditions surfaced to the device owner.
	Errors ErrorReporter
	// Names stores the enumerated device names.
	Names NameLists
	Logger *slog.Logger
}

// Backend opens playback and capture streams on enumerated devices.
type Backend struct {
	hw       Subsystem
	cfg      Config
	errs     ErrorReporter
	log      *slog.Logger
	registry *Registry

	playbackRoute string
	captureRoute  string
}

// New enumerates the devices of the subsystem and returns a Backend serving them.
func New(opts Options) *Backend {
	if opts.Subsystem == nil {
		opts.Subsystem = Hardware()
	}

	if opts.Config == nil {
		opts.Config = MapConfig{}
	}

	if opts.Errors == nil {
		opts.Errors = discardErrors{}
	}

	if opts.Names == nil {
		opts.Names = identityNames{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default().With("module", "alsa")
	}

	return &Backend{
		hw:            opts.Subsystem,
		cfg:           opts.Config,
		errs:          opts.Errors,
		log:           opts.Logger,
		registry:      Enumerate(opts.Subsystem, opts.Names, opts.Logger),
		playbackRoute: configuredRoute(opts.Config, "default", opts.Logger),
		captureRoute:  configuredRoute(opts.Config, "capture", opts.Logger),
	}
}

// configuredRoute reads the route of the default device from alsa.<key>.
func configuredRoute(cfg Config, key string, log *slog.Logger) string {
	route := cfg.GetString("alsa", key, "default")
	if route == "default" {
		return route
	}

	if _, _, err := alsa.ParsePcmName(route); err != nil {
		log.Warn("Unsupported device route, using default", "key", "alsa."+key, "route", route, "error", err)

		return "default"
	}

	return route
}

// Registry returns the devices found at construction.
func (b *Backend) Registry() *Registry {
	return b.registry
}

// open opens route without blocking, retrying once after reopenDelay, and puts the handle into blocking mode.
func (b *Backend) open(route string, stream alsa.PcmStream) (Handle, error) {
	h, err := b.hw.Open(route, stream, true)
	if err != nil {
		b.log.Debug("Device busy, retrying", "route", route, "stream", stream, "error", err)
		time.Sleep(reopenDelay)

		h, err = b.hw.Open(route, stream, true)
		if err != nil {
			return nil, fmt.Errorf("could not open %s device %q: %w", stream, route, err)
		}
	}

	if err := h.Nonblock(false); err != nil {
		_ = h.Close()

		return nil, fmt.Errorf("set blocking mode failed: %w", err)
	}

	return h, nil
}

// negotiateStep is one named narrowing of the hardware parameter space.
type negotiateStep struct {
	name  string
	apply func(hp HWParams) error
}

// negotiate applies the steps in order and installs the result. The first failing step aborts.
func negotiate(h Handle, steps []negotiateStep) error {
	hp, err := h.HWParams()
	if err != nil {
		return fmt.Errorf("any failed: %w", err)
	}
	defer hp.Free()

	for _, step := range steps {
		if err := step.apply(hp); err != nil {
			return fmt.Errorf("%s failed: %w", step.name, err)
		}
	}

	if err := hp.Install(); err != nil {
		return fmt.Errorf("set params failed: %w", err)
	}

	return nil
}
