package backend

import (
	alsa "github.com/gen2brain/alsaio"
)

// Hardware returns the Subsystem backed by the kernel ALSA interface.
func Hardware() Subsystem {
	return hardware{}
}

type hardware struct{}

func (hardware) Open(route string, stream alsa.PcmStream, nonblock bool) (Handle, error) {
	flags := alsa.PCM_OUT | alsa.PCM_MMAP
	if stream == alsa.SNDRV_PCM_STREAM_CAPTURE {
		flags |= alsa.PCM_IN
	}

	if nonblock {
		flags |= alsa.PCM_NONBLOCK
	}

	pcm, err := alsa.PcmOpenByName(route, flags)
	if err != nil {
		return nil, err
	}

	return &pcmHandle{PCM: pcm}, nil
}

func (hardware) CardNext(card int) (int, error) {
	return alsa.CardNext(card)
}

func (hardware) OpenControl(card int) (Control, error) {
	ctl, err := alsa.CtlOpen(card)
	if err != nil {
		return nil, err
	}

	return ctl, nil
}

// pcmHandle adapts *alsa.PCM to Handle.
type pcmHandle struct {
	*alsa.PCM
}

func (h *pcmHandle) HWParams() (HWParams, error) {
	hp, err := h.HwParamsAny()
	if err != nil {
		return nil, err
	}

	return hp, nil
}

func (h *pcmHandle) MmapBegin(frames int) (Region, error) {
	area, offset, granted, err := h.PCM.MmapBegin(uint32(frames))
	if err != nil {
		return Region{}, err
	}

	return Region{
		Area:   area,
		Stride: int(h.FrameSize()),
		Offset: int(offset),
		Frames: int(granted),
	}, nil
}

func (h *pcmHandle) MmapCommit(offset, frames int) (int, error) {
	committed, err := h.PCM.MmapCommit(uint32(offset), uint32(frames))

	return int(committed), err
}
