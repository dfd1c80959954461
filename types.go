package alsa

// sndMask is a bitmask for hardware parameters.
type sndMask struct {
	Bits [8]uint32
}

// sndInterval represents a range of values for a hardware parameter.
type sndInterval struct {
	MinVal uint32
	MaxVal uint32
	Flags  uint32
}

// sndPcmInfo contains general information about a PCM device.
// The Device, Subdevice and Stream fields select what SNDRV_CTL_IOCTL_PCM_INFO reports.
type sndPcmInfo struct {
	Device          uint32
	Subdevice       uint32
	Stream          int32
	Card            int32
	Id              [64]byte
	Name            [80]byte
	Subname         [32]byte
	DevClass        int32
	DevSubclass     int32
	SubdevicesCount uint32
	SubdevicesAvail uint32
	Sync            [16]byte // snd_sync_id_t
	Reserved        [64]byte
}

// sndCtlCardInfo contains general information about a sound card.
type sndCtlCardInfo struct {
	Card       int32
	Pad        int32
	Id         [16]byte
	Driver     [16]byte
	Name       [32]byte
	Longname   [80]byte
	Reserved_  [16]byte
	Mixername  [80]byte
	Components [128]byte
}

// sndPcmHwParams contains hardware parameters for a PCM device.
// FifoSize is an unsigned long, so the struct is 604 bytes on 32-bit and 608 bytes on 64-bit systems.
type sndPcmHwParams struct {
	Flags     uint32
	Masks     [3]sndMask
	Mres      [5]sndMask // reserved for future use
	Intervals [12]sndInterval
	Ires      [9]sndInterval // reserved for future use
	Rmask     uint32
	Cmask     uint32
	Info      uint32
	Msbits    uint32
	RateNum   uint32
	RateDen   uint32
	FifoSize  SndPcmUframesT
	Reserved  [64]byte
}

// sndPcmMmapControl contains control parameters for an MMAP PCM stream.
type sndPcmMmapControl struct {
	ApplPtr  SndPcmUframesT
	AvailMin SndPcmUframesT
}
