package alsa

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Config is the configuration the driver finalized when hardware parameters were installed.
type Config struct {
	Access      PcmAccess
	Format      PcmFormat
	Channels    uint32
	Rate        uint32
	PeriodSize  uint32
	PeriodCount uint32
	BufferSize  uint32
}

// PCM represents an open ALSA PCM device handle.
type PCM struct {
	file        *os.File
	path        string
	flags       PcmFlag
	subdevice   uint32
	config      Config
	installed   bool
	mmapBuffer  []byte
	mmapStatus  *sndPcmMmapStatus
	mmapControl *sndPcmMmapControl
	syncPointer *sndPcmSyncPtr // Used as a fallback if mmap for status/control fails
	isMmapped   bool
	boundary    SndPcmUframesT
}

// PcmOpenByName opens a PCM by its name. Accepted forms are "hw:C", "hw:C,D" and "default",
// which selects device 0 of the first card in the system.
func PcmOpenByName(name string, flags PcmFlag) (*PCM, error) {
	card, device, err := ParsePcmName(name)
	if err != nil {
		return nil, err
	}

	return PcmOpen(card, device, flags)
}

// ParsePcmName resolves a PCM name to its card and device numbers.
func ParsePcmName(name string) (card, device uint, err error) {
	if name == "default" {
		first, err := CardNext(-1)
		if err != nil {
			return 0, 0, fmt.Errorf("resolving default PCM failed: %w", err)
		}

		if first < 0 {
			return 0, 0, fmt.Errorf("resolving default PCM failed: %w", syscall.ENODEV)
		}

		return uint(first), 0, nil
	}

	if !strings.HasPrefix(name, "hw:") {
		return 0, 0, fmt.Errorf("invalid PCM name format %q: missing 'hw:' prefix", name)
	}

	parts := strings.Split(strings.TrimPrefix(name, "hw:"), ",")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("invalid PCM name format %q: expected 'hw:card[,device]'", name)
	}

	c, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid card number '%s': %w", parts[0], err)
	}

	if len(parts) == 1 {
		return uint(c), 0, nil
	}

	d, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid device number '%s': %w", parts[1], err)
	}

	return uint(c), uint(d), nil
}

// PcmOpen opens an ALSA PCM device node and maps its status and control pages.
// The stream is left unconfigured; hardware parameters are negotiated through HwParamsAny.
// Note: This implementation does not support the ALSA plugin architecture and will only open direct hardware PCM devices (e.g., /dev/snd/pcmC0D0p).
func PcmOpen(card, device uint, flags PcmFlag) (*PCM, error) {
	var streamChar byte
	if (flags & PCM_IN) != 0 {
		streamChar = 'c' // Capture
	} else {
		streamChar = 'p' // Playback
	}

	path := fmt.Sprintf("/dev/snd/pcmC%dD%d%c", card, device, streamChar)

	// Always open non-blocking so a busy device fails fast instead of hanging,
	// then clear the flag if blocking I/O was requested.
	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCM device %s: %w", path, err)
	}

	pcm := &PCM{
		file:  file,
		path:  path,
		flags: flags | PCM_NONBLOCK,
	}

	if (flags & PCM_NONBLOCK) == 0 {
		if err := pcm.Nonblock(false); err != nil {
			_ = file.Close()

			return nil, err
		}
	}

	var info sndPcmInfo
	if err := ioctl(file.Fd(), SNDRV_PCM_IOCTL_INFO, uintptr(unsafe.Pointer(&info))); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("ioctl INFO failed: %w", err)
	}

	pcm.subdevice = info.Subdevice

	pcm.mapStatusAndControl()

	return pcm, nil
}

// IsReady checks if the PCM handle is valid.
func (p *PCM) IsReady() bool {
	return p != nil && p.file != nil
}

// Close closes the PCM device handle and releases all associated resources.
func (p *PCM) Close() error {
	if !p.IsReady() {
		return nil
	}

	if p.installed {
		_ = ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_DROP, 0)
	}

	p.unmapStatusAndControl()

	if p.mmapBuffer != nil {
		_ = unix.Munmap(p.mmapBuffer)
		p.mmapBuffer = nil
	}

	err := p.file.Close()
	p.file = nil
	p.installed = false

	return err
}

// Nonblock switches the handle between non-blocking and blocking mode.
func (p *PCM) Nonblock(enable bool) error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	current, err := unix.FcntlInt(p.file.Fd(), unix.F_GETFL, 0)
	if err != nil {
		return fmt.Errorf("fcntl F_GETFL for %s failed: %w", p.path, err)
	}

	next := current &^ syscall.O_NONBLOCK
	if enable {
		next = current | syscall.O_NONBLOCK
	}

	if _, err = unix.FcntlInt(p.file.Fd(), unix.F_SETFL, next); err != nil {
		return fmt.Errorf("fcntl F_SETFL for %s failed: %w", p.path, err)
	}

	if enable {
		p.flags |= PCM_NONBLOCK
	} else {
		p.flags &^= PCM_NONBLOCK
	}

	return nil
}

// Config returns the configuration finalized by the driver. It is zero until hardware parameters are installed.
func (p *PCM) Config() Config {
	return p.config
}

// Path returns the device node the handle was opened from.
func (p *PCM) Path() string {
	return p.path
}

// BufferSize returns the PCM's total buffer size in frames.
func (p *PCM) BufferSize() uint32 {
	return p.config.BufferSize
}

// Flags returns the flags of the PCM stream.
func (p *PCM) Flags() PcmFlag {
	return p.flags
}

// Stream returns the direction of the PCM stream.
func (p *PCM) Stream() PcmStream {
	if (p.flags & PCM_IN) != 0 {
		return SNDRV_PCM_STREAM_CAPTURE
	}

	return SNDRV_PCM_STREAM_PLAYBACK
}

// Subdevice returns the subdevice number of the PCM stream.
func (p *PCM) Subdevice() uint32 {
	return p.subdevice
}

// FrameSize returns the size of a single frame in bytes.
// A frame contains one sample for each channel.
func (p *PCM) FrameSize() uint32 {
	return PcmFormatToBits(p.config.Format) / 8 * p.config.Channels
}

// FramesToBytes converts a number of frames to the corresponding number of bytes.
func (p *PCM) FramesToBytes(frames uint32) uint32 {
	return frames * p.FrameSize()
}

// Prepare readies the PCM device for I/O operations.
// This is also the way out of an XRUN.
func (p *PCM) Prepare() error {
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_PREPARE, 0); err != nil {
		return fmt.Errorf("ioctl PREPARE failed: %w", err)
	}

	// Pick up the application pointer the kernel reset.
	if err := p.syncPtr(SNDRV_PCM_SYNC_PTR_APPL | SNDRV_PCM_SYNC_PTR_AVAIL_MIN); err != nil {
		return fmt.Errorf("ioctl SYNC_PTR failed: %w", err)
	}

	return nil
}

// Start starts the PCM stream.
func (p *PCM) Start() error {
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_START, 0); err != nil {
		return fmt.Errorf("ioctl START failed: %w", err)
	}

	return nil
}

// Stop abruptly stops the PCM stream, dropping any pending frames.
func (p *PCM) Stop() error {
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_DROP, 0); err != nil {
		return fmt.Errorf("ioctl DROP failed: %w", err)
	}

	return nil
}

// Resume resumes a suspended PCM stream (state SNDRV_PCM_STATE_SUSPENDED).
// While the hardware is still waking up the returned error wraps EAGAIN and the call should be repeated.
func (p *PCM) Resume() error {
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_RESUME, 0); err != nil {
		return fmt.Errorf("ioctl RESUME failed: %w", err)
	}

	return nil
}

// Drain stops the stream after the pending frames have been processed.
// For playback this waits until the buffer is played out. For capture the frames
// already in the buffer stay readable.
func (p *PCM) Drain() error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_DRAIN, 0); err != nil {
		return fmt.Errorf("ioctl DRAIN failed: %w", err)
	}

	return nil
}

// State returns the current state of the PCM stream.
func (p *PCM) State() PcmState {
	if !p.IsReady() || p.mmapStatus == nil {
		return SNDRV_PCM_STATE_DISCONNECTED
	}

	// HWSYNC is refused in XRUN and SUSPENDED. The mapped status page is current anyway,
	// the fallback needs a plain pointer sync to refresh its copy.
	if err := p.syncPtr(SNDRV_PCM_SYNC_PTR_HWSYNC); err != nil && !p.isMmapped {
		if err := p.syncPtr(SNDRV_PCM_SYNC_PTR_APPL | SNDRV_PCM_SYNC_PTR_AVAIL_MIN); err != nil {
			if errors.Is(err, syscall.ENODEV) {
				return SNDRV_PCM_STATE_DISCONNECTED
			}
		}
	}

	return PcmState(atomic.LoadInt32(&p.mmapStatus.State))
}

// mapStatusAndControl maps the kernel's status and control structures into memory.
// If mapping fails, the local sync pointer is used with the SYNC_PTR ioctl instead.
func (p *PCM) mapStatusAndControl() {
	pageSize := os.Getpagesize()

	p.syncPointer = &sndPcmSyncPtr{}

	statusBuf, err := unix.Mmap(int(p.file.Fd()), SNDRV_PCM_MMAP_OFFSET_STATUS, pageSize, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		var controlBuf []byte

		controlBuf, err = unix.Mmap(int(p.file.Fd()), SNDRV_PCM_MMAP_OFFSET_CONTROL, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			_ = unix.Munmap(statusBuf)
		} else {
			p.mmapStatus = (*sndPcmMmapStatus)(unsafe.Pointer(&statusBuf[0]))
			p.mmapControl = (*sndPcmMmapControl)(unsafe.Pointer(&controlBuf[0]))
			p.isMmapped = true

			return
		}
	}

	p.mmapStatus = &p.syncPointer.S.sndPcmMmapStatus
	p.mmapControl = &p.syncPointer.C.sndPcmMmapControl
	p.isMmapped = false
}

func (p *PCM) unmapStatusAndControl() {
	if p.isMmapped {
		pageSize := os.Getpagesize()
		if p.mmapStatus != nil {
			_ = unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(p.mmapStatus)), pageSize))
		}

		if p.mmapControl != nil {
			_ = unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(p.mmapControl)), pageSize))
		}
	}

	p.syncPointer = nil
	p.mmapStatus = nil
	p.mmapControl = nil
	p.isMmapped = false
}

// syncPtr synchronizes the application and hardware pointers.
// With mapped pages only SNDRV_PCM_SYNC_PTR_HWSYNC needs a syscall; the fallback copies both structures through SYNC_PTR.
func (p *PCM) syncPtr(flags uint32) error {
	if p.syncPointer == nil {
		return fmt.Errorf("sync pointer not initialized")
	}

	if p.isMmapped {
		if (flags & SNDRV_PCM_SYNC_PTR_HWSYNC) != 0 {
			return ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_HWSYNC, 0)
		}

		return nil
	}

	p.syncPointer.Flags = flags

	return ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_SYNC_PTR, uintptr(unsafe.Pointer(p.syncPointer)))
}

func (p *PCM) applPtr() SndPcmUframesT {
	if unsafe.Sizeof(SndPcmUframesT(0)) == 8 {
		return SndPcmUframesT(atomic.LoadUint64((*uint64)(unsafe.Pointer(&p.mmapControl.ApplPtr))))
	}

	return SndPcmUframesT(atomic.LoadUint32((*uint32)(unsafe.Pointer(&p.mmapControl.ApplPtr))))
}

func (p *PCM) setApplPtr(v SndPcmUframesT) {
	if unsafe.Sizeof(v) == 8 {
		atomic.StoreUint64((*uint64)(unsafe.Pointer(&p.mmapControl.ApplPtr)), uint64(v))
	} else {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&p.mmapControl.ApplPtr)), uint32(v))
	}
}

func (p *PCM) hwPtr() SndPcmUframesT {
	if unsafe.Sizeof(SndPcmUframesT(0)) == 8 {
		return SndPcmUframesT(atomic.LoadUint64((*uint64)(unsafe.Pointer(&p.mmapStatus.HwPtr))))
	}

	return SndPcmUframesT(atomic.LoadUint32((*uint32)(unsafe.Pointer(&p.mmapStatus.HwPtr))))
}

func (p *PCM) setAvailMin(v SndPcmUframesT) {
	if unsafe.Sizeof(v) == 8 {
		atomic.StoreUint64((*uint64)(unsafe.Pointer(&p.mmapControl.AvailMin)), uint64(v))
	} else {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&p.mmapControl.AvailMin)), uint32(v))
	}
}

// PcmFormatToBits returns the number of bits per sample for a given format.
// This reflects the space occupied in memory, so 24-bit formats in 32-bit containers return 32.
func PcmFormatToBits(f PcmFormat) uint32 {
	switch f {
	case SNDRV_PCM_FORMAT_FLOAT64_LE, SNDRV_PCM_FORMAT_FLOAT64_BE:
		return 64
	case SNDRV_PCM_FORMAT_S32_LE, SNDRV_PCM_FORMAT_S32_BE, SNDRV_PCM_FORMAT_U32_LE, SNDRV_PCM_FORMAT_U32_BE,
		SNDRV_PCM_FORMAT_FLOAT_LE, SNDRV_PCM_FORMAT_FLOAT_BE,
		SNDRV_PCM_FORMAT_S24_LE, SNDRV_PCM_FORMAT_S24_BE, SNDRV_PCM_FORMAT_U24_LE, SNDRV_PCM_FORMAT_U24_BE:
		return 32
	case SNDRV_PCM_FORMAT_S24_3LE, SNDRV_PCM_FORMAT_S24_3BE, SNDRV_PCM_FORMAT_U24_3LE, SNDRV_PCM_FORMAT_U24_3BE:
		return 24
	case SNDRV_PCM_FORMAT_S16_LE, SNDRV_PCM_FORMAT_S16_BE, SNDRV_PCM_FORMAT_U16_LE, SNDRV_PCM_FORMAT_U16_BE:
		return 16
	case SNDRV_PCM_FORMAT_S8, SNDRV_PCM_FORMAT_U8:
		return 8
	default:
		return 0
	}
}
