package backend

import (
	alsa "github.com/gen2brain/alsaio"
)

// Subsystem is the hardware PCM subsystem the backend drives.
type Subsystem interface {
	// Open opens the PCM behind route ("default", "hw:C" or "hw:C,D") for one direction.
	Open(route string, stream alsa.PcmStream, nonblock bool) (Handle, error)
	// CardNext returns the card after card, -1 when there is none. Pass -1 for the first card.
	CardNext(card int) (int, error)
	// OpenControl opens the control interface of a card.
	OpenControl(card int) (Control, error)
}

// Handle is an open PCM stream. A handle is owned by one controller and is not safe for concurrent use.
type Handle interface {
	HWParams() (HWParams, error)
	Nonblock(enable bool) error
	Prepare() error
	Start() error
	Resume() error
	Drain() error
	State() alsa.PcmState
	// AvailUpdate returns the frames that can be written (playback) or read (capture).
	// Errors wrap the errno describing the stream condition, such as EPIPE for an xrun.
	AvailUpdate() (int, error)
	// MmapBegin grants a contiguous region of at most frames frames.
	MmapBegin(frames int) (Region, error)
	// MmapCommit reports how many frames of the region were committed.
	MmapCommit(offset, frames int) (int, error)
	// BufferSize returns the ring buffer size in frames installed by the hardware.
	BufferSize() uint32
	Close() error
}

// HWParams is a hardware configuration space narrowed step by step before it is installed.
type HWParams interface {
	SetAccess(access alsa.PcmAccess) error
	SetFormat(format alsa.PcmFormat) error
	SetChannels(channels uint32) error
	SetPeriodsNear(periods uint32) (uint32, error)
	SetRate(rate uint32) error
	SetRateNear(rate uint32) (uint32, error)
	SetBufferSizeNear(frames uint32) (uint32, error)
	SetBufferSizeMin(frames uint32) (uint32, error)
	Install() error
	Free()
}

// Control is the control interface of one card.
type Control interface {
	CardName() string
	PcmNextDevice(device int) (int, error)
	PcmInfo(device, subdevice int, stream alsa.PcmStream) (alsa.PcmInfo, error)
	Close() error
}

// Region is a borrowed window of the hardware ring buffer, valid for one begin/commit cycle.
type Region struct {
	Area   []byte // the whole mapped buffer
	Stride int    // bytes per frame
	Offset int    // first frame of the region
	Frames int
}

// Bytes returns the frames [Offset, Offset+Frames) of the area.
func (r Region) Bytes() []byte {
	return r.Area[r.Offset*r.Stride : (r.Offset+r.Frames)*r.Stride]
}
