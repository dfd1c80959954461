package alsa

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// AvailUpdate synchronizes the hardware pointer and returns the number of available frames.
// For playback streams, this is the number of frames that can be written.
// For capture streams, this is the number of frames that can be read.
// In XRUN the returned error wraps EPIPE, while suspended it wraps ESTRPIPE.
func (p *PCM) AvailUpdate() (int, error) {
	if err := p.checkMmap(); err != nil {
		return 0, err
	}

	if err := p.syncPtr(SNDRV_PCM_SYNC_PTR_HWSYNC); err != nil {
		return 0, fmt.Errorf("ioctl HWSYNC failed: %w", err)
	}

	return p.avail(), nil
}

// avail computes the available frames from the current pointers. The result may exceed the buffer size after an XRUN.
func (p *PCM) avail() int {
	applPtr := int64(p.applPtr())
	hwPtr := int64(p.hwPtr())
	boundary := int64(p.boundary)

	if (p.flags & PCM_IN) != 0 {
		avail := hwPtr - applPtr
		if avail < 0 {
			avail += boundary
		}

		return int(avail)
	}

	avail := hwPtr + int64(p.config.BufferSize) - applPtr
	if avail < 0 {
		avail += boundary
	} else if boundary > 0 && avail >= boundary {
		avail -= boundary
	}

	return int(avail)
}

// MmapBegin grants direct access to the mapped ring buffer. It returns the whole buffer area,
// the frame offset where the transfer starts and how many contiguous frames can be accessed there.
// The granted frame count is bounded by frames, by the available space and by the end of the ring.
func (p *PCM) MmapBegin(frames uint32) (area []byte, offset, granted uint32, err error) {
	if err = p.checkMmap(); err != nil {
		return nil, 0, 0, err
	}

	switch p.State() {
	case SNDRV_PCM_STATE_XRUN:
		return nil, 0, 0, syscall.EPIPE
	case SNDRV_PCM_STATE_SUSPENDED:
		return nil, 0, 0, syscall.ESTRPIPE
	case SNDRV_PCM_STATE_DISCONNECTED:
		return nil, 0, 0, syscall.ENODEV
	case SNDRV_PCM_STATE_OPEN, SNDRV_PCM_STATE_SETUP:
		return nil, 0, 0, unix.EBADFD
	}

	avail := p.avail()
	if avail > int(p.config.BufferSize) {
		avail = int(p.config.BufferSize)
	}

	if avail < 0 {
		avail = 0
	}

	offset = uint32(p.applPtr() % SndPcmUframesT(p.config.BufferSize))
	granted = min(frames, uint32(avail), p.config.BufferSize-offset)

	return p.mmapBuffer, offset, granted, nil
}

// MmapCommit advances the application pointer by frames after the area granted by MmapBegin was filled or consumed.
// It returns the number of frames committed. A commit at an offset other than the current application
// position, or of more frames than are available, fails with EPIPE and commits nothing.
func (p *PCM) MmapCommit(offset, frames uint32) (uint32, error) {
	if err := p.checkMmap(); err != nil {
		return 0, err
	}

	applPtr := p.applPtr()
	if offset != uint32(applPtr%SndPcmUframesT(p.config.BufferSize)) {
		return 0, fmt.Errorf("commit at offset %d out of sequence: %w", offset, syscall.EPIPE)
	}

	if int(frames) > p.avail() {
		return 0, fmt.Errorf("commit of %d frames exceeds available space: %w", frames, syscall.EPIPE)
	}

	next := applPtr + SndPcmUframesT(frames)
	if p.boundary > 0 && next >= p.boundary {
		next -= p.boundary
	}

	p.setApplPtr(next)

	// The fallback has to push the new application pointer to the kernel.
	if err := p.syncPtr(0); err != nil {
		return 0, fmt.Errorf("ioctl SYNC_PTR failed: %w", err)
	}

	return frames, nil
}

func (p *PCM) checkMmap() error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	if p.mmapBuffer == nil || p.config.BufferSize == 0 {
		return fmt.Errorf("PCM has no mapped buffer: %w", unix.EBADFD)
	}

	return nil
}

// silencePatterns holds one silent sample for the unsigned formats, whose silence is not zero.
var silencePatterns = map[PcmFormat][]byte{
	SNDRV_PCM_FORMAT_U8:      {0x80},
	SNDRV_PCM_FORMAT_U16_LE:  {0x00, 0x80},
	SNDRV_PCM_FORMAT_U16_BE:  {0x80, 0x00},
	SNDRV_PCM_FORMAT_U24_LE:  {0x00, 0x00, 0x80, 0x00},
	SNDRV_PCM_FORMAT_U24_BE:  {0x00, 0x80, 0x00, 0x00},
	SNDRV_PCM_FORMAT_U32_LE:  {0x00, 0x00, 0x00, 0x80},
	SNDRV_PCM_FORMAT_U32_BE:  {0x80, 0x00, 0x00, 0x00},
	SNDRV_PCM_FORMAT_U24_3LE: {0x00, 0x00, 0x80},
	SNDRV_PCM_FORMAT_U24_3BE: {0x80, 0x00, 0x00},
}

// FormatSilence fills buf with silence for the given sample format.
func FormatSilence(buf []byte, format PcmFormat) {
	pattern, ok := silencePatterns[format]
	if !ok {
		clear(buf)

		return
	}

	for i := 0; i < len(buf); i += len(pattern) {
		copy(buf[i:], pattern)
	}
}
