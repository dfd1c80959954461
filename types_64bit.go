//go:build linux && (amd64 || arm64)

package alsa

import (
	"golang.org/x/sys/unix"
)

// SndPcmUframesT is an unsigned long in the ALSA headers.
// On 64-bit architectures, this is a 64-bit unsigned integer.
type SndPcmUframesT = uint64

// SndPcmSframesT is a signed long in the ALSA headers.
type SndPcmSframesT = int64

// sndPcmMmapStatus contains the status of an MMAP PCM stream.
// On 64-bit systems, padding is required before AudioTstamp for alignment.
type sndPcmMmapStatus struct {
	State          int32 // PcmState
	Pad1           int32
	HwPtr          SndPcmUframesT
	Tstamp         unix.Timespec
	SuspendedState int32 // PcmState
	_              [4]byte
	AudioTstamp    unix.Timespec
}

// sndPcmSyncPtr is used to synchronize hardware and application pointers via ioctl.
// Both unions are 64 bytes wide.
type sndPcmSyncPtr struct {
	Flags uint32
	_     [4]byte
	S     struct {
		sndPcmMmapStatus
		_ [8]byte
	}
	C struct {
		sndPcmMmapControl
		_ [48]byte
	}
}

// sndPcmSwParams contains software parameters for a PCM device for 64-bit systems.
// This struct has 4 bytes of padding after SleepMin to align the following uint64 fields.
type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	_                [4]byte
	AvailMin         SndPcmUframesT
	XferAlign        SndPcmUframesT
	StartThreshold   SndPcmUframesT
	StopThreshold    SndPcmUframesT
	SilenceThreshold SndPcmUframesT
	SilenceSize      SndPcmUframesT
	Boundary         SndPcmUframesT
	Reserved         [64]byte
}
