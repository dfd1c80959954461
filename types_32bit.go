//go:build linux && (386 || arm)

package alsa

import (
	"golang.org/x/sys/unix"
)

// SndPcmUframesT is an unsigned long in the ALSA headers.
// On 32-bit architectures, this is a 32-bit unsigned integer.
type SndPcmUframesT = uint32

// SndPcmSframesT is a signed long in the ALSA headers.
type SndPcmSframesT = int32

// kernelTimespec is the timespec of the legacy 32-bit SYNC_PTR layout.
type kernelTimespec = unix.Timespec

// sndPcmMmapStatus contains the status of an MMAP PCM stream.
type sndPcmMmapStatus struct {
	State          int32 // PcmState
	Pad1           int32
	HwPtr          SndPcmUframesT
	Tstamp         kernelTimespec
	SuspendedState int32 // PcmState
	AudioTstamp    kernelTimespec
}

// sndPcmSyncPtr is used to synchronize hardware and application pointers via ioctl.
// Both unions are 64 bytes wide and 4-byte aligned on 32-bit systems.
type sndPcmSyncPtr struct {
	Flags uint32
	S     struct {
		sndPcmMmapStatus
		_ [32]byte
	}
	C struct {
		sndPcmMmapControl
		_ [56]byte
	}
}

// sndPcmSwParams contains software parameters for a PCM device for 32-bit systems.
type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	AvailMin         SndPcmUframesT
	XferAlign        SndPcmUframesT
	StartThreshold   SndPcmUframesT
	StopThreshold    SndPcmUframesT
	SilenceThreshold SndPcmUframesT
	SilenceSize      SndPcmUframesT
	Boundary         SndPcmUframesT
	Reserved         [64]byte
}
