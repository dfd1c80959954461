package backend

import (
	"strconv"
	"strings"

	"github.com/go-audio/audio"
)

// Config looks up configuration values by section and key.
type Config interface {
	GetString(section, key, def string) string
	GetInt(section, key string, def int) int
}

// MapConfig is a Config over a map of "section.key" to value. Integer values are parsed from the string.
type MapConfig map[string]string

// GetString implements Config.
func (c MapConfig) GetString(section, key, def string) string {
	if v, ok := c[section+"."+key]; ok {
		return v
	}

	return def
}

// GetInt implements Config.
func (c MapConfig) GetInt(section, key string, def int) int {
	v, ok := c[section+"."+key]
	if !ok {
		return def
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}

	return n
}

// Format is the logical sample format of a stream.
type Format struct {
	audio.Format
	// BitDepth is the width of one sample, 8 or 16.
	BitDepth int
}

// BytesPerSample returns the width of one sample in bytes.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSize returns the width of one frame in bytes.
func (f Format) FrameSize() int {
	return f.NumChannels * f.BytesPerSample()
}

// Mixer renders audio into the playback ring buffer.
// MixInto is called from the playback worker and must fill all of dst without blocking.
type Mixer interface {
	MixInto(dst []byte, format Format)
}

// MixerFunc adapts a function to Mixer.
type MixerFunc func(dst []byte, format Format)

// MixInto implements Mixer.
func (f MixerFunc) MixInto(dst []byte, format Format) {
	f(dst, format)
}

// ErrorCode is a condition reported to the device owner.
type ErrorCode int

const (
	InvalidValue ErrorCode = iota + 1
	InvalidDevice
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidValue:
		return "invalid value"
	case InvalidDevice:
		return "invalid device"
	default:
		return "unknown"
	}
}

// ErrorReporter receives conditions surfaced to the owner of a device.
type ErrorReporter interface {
	SetError(code ErrorCode)
}

// NameLists stores the device names found by enumeration and returns the stored name.
type NameLists interface {
	AddPlayback(name string) string
	AddAllDevices(name string) string
	AddCapture(name string) string
}

type discardErrors struct{}

func (discardErrors) SetError(ErrorCode) {}

type identityNames struct{}

func (identityNames) AddPlayback(name string) string   { return name }
func (identityNames) AddAllDevices(name string) string { return name }
func (identityNames) AddCapture(name string) string    { return name }
