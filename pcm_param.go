package alsa

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// HwParams is a hardware parameter space being narrowed for one PCM.
// Every setter refines a copy with SNDRV_PCM_IOCTL_HW_REFINE and keeps it only when the driver accepts it,
// so a failed setter leaves the space unchanged.
type HwParams struct {
	pcm    *PCM
	params sndPcmHwParams
}

// HwParamsAny returns the full configuration space the driver supports for this PCM.
func (p *PCM) HwParamsAny() (*HwParams, error) {
	if !p.IsReady() {
		return nil, fmt.Errorf("PCM handle is not valid")
	}

	hp := &HwParams{pcm: p}
	paramInit(&hp.params)

	// PCM_MMAP handles can only use the mapped access types.
	if (p.flags & PCM_MMAP) != 0 {
		access := &hp.params.Masks[SNDRV_PCM_HW_PARAM_ACCESS]
		clear(access.Bits[:])
		access.Bits[0] = 1<<SNDRV_PCM_ACCESS_MMAP_INTERLEAVED | 1<<SNDRV_PCM_ACCESS_MMAP_NONINTERLEAVED | 1<<SNDRV_PCM_ACCESS_MMAP_COMPLEX
	}

	if err := hp.refine(&hp.params); err != nil {
		return nil, fmt.Errorf("ioctl HW_REFINE failed: %w", err)
	}

	return hp, nil
}

// QueryHwParams opens a PCM device just long enough to read its full range of capabilities.
func QueryHwParams(card, device uint, flags PcmFlag) (*HwParams, error) {
	var streamChar byte
	if (flags & PCM_IN) != 0 {
		streamChar = 'c'
	} else {
		streamChar = 'p'
	}

	path := fmt.Sprintf("/dev/snd/pcmC%dD%d%c", card, device, streamChar)

	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCM device %s for query: %w", path, err)
	}
	defer file.Close()

	hp := &HwParams{}
	paramInit(&hp.params)

	if err := ioctl(file.Fd(), SNDRV_PCM_IOCTL_HW_REFINE, uintptr(unsafe.Pointer(&hp.params))); err != nil {
		return nil, fmt.Errorf("ioctl HW_REFINE failed: %w", err)
	}

	return hp, nil
}

// SetAccess restricts the space to one access type.
func (hp *HwParams) SetAccess(access PcmAccess) error {
	return hp.try(func(p *sndPcmHwParams) {
		paramSetMask(p, SNDRV_PCM_HW_PARAM_ACCESS, uint32(access))
	})
}

// SetFormat restricts the space to one sample format.
func (hp *HwParams) SetFormat(format PcmFormat) error {
	if format < 0 {
		return fmt.Errorf("format %v: %w", format, syscall.EINVAL)
	}

	return hp.try(func(p *sndPcmHwParams) {
		paramSetMask(p, SNDRV_PCM_HW_PARAM_FORMAT, uint32(format))
	})
}

// SetChannels restricts the space to an exact channel count.
func (hp *HwParams) SetChannels(channels uint32) error {
	return hp.try(func(p *sndPcmHwParams) {
		paramSetInt(p, SNDRV_PCM_HW_PARAM_CHANNELS, channels)
	})
}

// SetRate restricts the space to an exact sample rate.
func (hp *HwParams) SetRate(rate uint32) error {
	return hp.try(func(p *sndPcmHwParams) {
		paramSetInt(p, SNDRV_PCM_HW_PARAM_RATE, rate)
	})
}

// SetRateNear picks the supported sample rate closest to rate and returns it.
func (hp *HwParams) SetRateNear(rate uint32) (uint32, error) {
	return hp.setNear(SNDRV_PCM_HW_PARAM_RATE, rate)
}

// SetPeriodsNear picks the supported period count closest to periods and returns it.
func (hp *HwParams) SetPeriodsNear(periods uint32) (uint32, error) {
	return hp.setNear(SNDRV_PCM_HW_PARAM_PERIODS, periods)
}

// SetBufferSizeNear picks the supported buffer size in frames closest to frames and returns it.
func (hp *HwParams) SetBufferSizeNear(frames uint32) (uint32, error) {
	return hp.setNear(SNDRV_PCM_HW_PARAM_BUFFER_SIZE, frames)
}

// SetBufferSizeMin raises the lower bound of the buffer size and returns the bound the driver settled on.
func (hp *HwParams) SetBufferSizeMin(frames uint32) (uint32, error) {
	err := hp.try(func(p *sndPcmHwParams) {
		paramSetMin(p, SNDRV_PCM_HW_PARAM_BUFFER_SIZE, frames)
	})
	if err != nil {
		return 0, err
	}

	lo, _ := intervalBounds(paramInterval(&hp.params, SNDRV_PCM_HW_PARAM_BUFFER_SIZE))

	return lo, nil
}

// Install commits the space to the device. The driver chooses a single configuration from what is left,
// the data buffer is mapped and software parameters are set for mmap transfers.
func (hp *HwParams) Install() error {
	if hp.pcm == nil {
		return fmt.Errorf("hardware parameters are not bound to a PCM")
	}

	return hp.pcm.installHwParams(&hp.params)
}

// Free releases the parameter space. It is safe to call more than once.
func (hp *HwParams) Free() {
	if hp == nil {
		return
	}

	hp.pcm = nil
	hp.params = sndPcmHwParams{}
}

// RangeMin returns the minimum value for an interval parameter.
func (hp *HwParams) RangeMin(param PcmParam) (uint32, error) {
	iv := paramInterval(&hp.params, param)
	if iv == nil {
		return 0, fmt.Errorf("parameter %v is not an interval type", param)
	}

	lo, _ := intervalBounds(iv)

	return lo, nil
}

// RangeMax returns the maximum value for an interval parameter.
func (hp *HwParams) RangeMax(param PcmParam) (uint32, error) {
	iv := paramInterval(&hp.params, param)
	if iv == nil {
		return 0, fmt.Errorf("parameter %v is not an interval type", param)
	}

	_, hi := intervalBounds(iv)

	return hi, nil
}

// Mask returns the bitmask for a mask-type parameter.
func (hp *HwParams) Mask(param PcmParam) (*PcmParamMask, error) {
	if param < SNDRV_PCM_HW_PARAM_ACCESS || param > SNDRV_PCM_HW_PARAM_SUBFORMAT {
		return nil, fmt.Errorf("parameter %v is not a mask type", param)
	}

	return (*PcmParamMask)(unsafe.Pointer(&hp.params.Masks[param-SNDRV_PCM_HW_PARAM_ACCESS])), nil
}

// FormatIsSupported checks if a given PCM format is still part of the space.
func (hp *HwParams) FormatIsSupported(format PcmFormat) bool {
	if format < 0 {
		return false
	}

	mask, err := hp.Mask(SNDRV_PCM_HW_PARAM_FORMAT)
	if err != nil {
		return false
	}

	return mask.Test(uint(format))
}

// String returns a human-readable representation of the parameter space.
func (hp *HwParams) String() string {
	if hp == nil {
		return "<nil>"
	}

	var b strings.Builder

	printMaskSlice := func(name string, param PcmParam, names []string) {
		mask, err := hp.Mask(param)
		if err != nil {
			return
		}

		var supported []string
		for i, n := range names {
			if len(n) > 0 && mask.Test(uint(i)) {
				supported = append(supported, n)
			}
		}

		if len(supported) > 0 {
			b.WriteString(fmt.Sprintf("%12s: %s\n", name, strings.Join(supported, ", ")))
		}
	}

	printFormatMask := func() {
		var keys []int
		for k := range PcmParamFormatNames {
			keys = append(keys, int(k))
		}

		sort.Ints(keys)

		var supported []string
		for _, k := range keys {
			if hp.FormatIsSupported(PcmFormat(k)) {
				supported = append(supported, PcmParamFormatNames[PcmFormat(k)])
			}
		}

		if len(supported) > 0 {
			b.WriteString(fmt.Sprintf("%12s: %s\n", "Format", strings.Join(supported, ", ")))
		}
	}

	printInterval := func(name string, param PcmParam, unit string) {
		rangeMin, errMin := hp.RangeMin(param)
		rangeMax, errMax := hp.RangeMax(param)
		if errMin != nil || errMax != nil {
			return
		}

		if rangeMax == 0 || rangeMax == ^uint32(0) {
			return
		}

		b.WriteString(fmt.Sprintf("%12s: min=%-6d max=%-6d %s\n", name, rangeMin, rangeMax, unit))
	}

	b.WriteString("PCM device capabilities:\n")
	printMaskSlice("Access", SNDRV_PCM_HW_PARAM_ACCESS, PcmParamAccessNames)
	printFormatMask()
	printMaskSlice("Subformat", SNDRV_PCM_HW_PARAM_SUBFORMAT, PcmParamSubformatNames)
	printInterval("Rate", SNDRV_PCM_HW_PARAM_RATE, "Hz")
	printInterval("Channels", SNDRV_PCM_HW_PARAM_CHANNELS, "")
	printInterval("Sample bits", SNDRV_PCM_HW_PARAM_SAMPLE_BITS, "")
	printInterval("Period size", SNDRV_PCM_HW_PARAM_PERIOD_SIZE, "frames")
	printInterval("Periods", SNDRV_PCM_HW_PARAM_PERIODS, "")
	printInterval("Buffer size", SNDRV_PCM_HW_PARAM_BUFFER_SIZE, "frames")

	return b.String()
}

func (hp *HwParams) refine(params *sndPcmHwParams) error {
	params.Rmask = ^uint32(0)

	return ioctl(hp.pcm.file.Fd(), SNDRV_PCM_IOCTL_HW_REFINE, uintptr(unsafe.Pointer(params)))
}

// try applies change to a copy of the space and keeps the refined copy if the driver accepts it.
func (hp *HwParams) try(change func(*sndPcmHwParams)) error {
	if hp.pcm == nil || !hp.pcm.IsReady() {
		return fmt.Errorf("hardware parameters are not bound to an open PCM")
	}

	next := hp.params
	change(&next)

	if err := hp.refine(&next); err != nil {
		return fmt.Errorf("ioctl HW_REFINE failed: %w", err)
	}

	hp.params = next

	return nil
}

// setNear narrows an interval parameter to the supported value closest to want.
// The exact value is tried first, then the nearest value at or above it and at or below it.
func (hp *HwParams) setNear(param PcmParam, want uint32) (uint32, error) {
	iv := paramInterval(&hp.params, param)
	if iv == nil {
		return 0, fmt.Errorf("parameter %v is not an interval type", param)
	}

	lo, hi := intervalBounds(iv)
	target := min(max(want, lo), hi)

	if err := hp.try(func(p *sndPcmHwParams) { paramSetInt(p, param, target) }); err == nil {
		return target, nil
	}

	candidates := make([]uint32, 0, 2)

	above := hp.params
	paramSetMin(&above, param, target)
	if hp.refine(&above) == nil {
		v, _ := intervalBounds(paramInterval(&above, param))
		candidates = append(candidates, v)
	}

	below := hp.params
	paramSetMax(&below, param, target)
	if hp.refine(&below) == nil {
		_, v := intervalBounds(paramInterval(&below, param))
		candidates = append(candidates, v)
	}

	if len(candidates) == 0 {
		return 0, fmt.Errorf("no value of parameter %v near %d: %w", param, want, unix.EINVAL)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return distance(candidates[i], target) < distance(candidates[j], target)
	})

	var lastErr error
	for _, v := range candidates {
		if lastErr = hp.try(func(p *sndPcmHwParams) { paramSetInt(p, param, v) }); lastErr == nil {
			return v, nil
		}
	}

	return 0, lastErr
}

func distance(a, b uint32) uint32 {
	if a > b {
		return a - b
	}

	return b - a
}

// installHwParams runs HW_PARAMS, reads the finalized configuration back and sets up mmap transfers.
func (p *PCM) installHwParams(params *sndPcmHwParams) error {
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_HW_PARAMS, uintptr(unsafe.Pointer(params))); err != nil {
		return fmt.Errorf("ioctl HW_PARAMS failed: %w", err)
	}

	p.installed = true

	p.config = Config{
		Access:      PcmAccess(maskFirst(params, SNDRV_PCM_HW_PARAM_ACCESS)),
		Format:      PcmFormat(maskFirst(params, SNDRV_PCM_HW_PARAM_FORMAT)),
		Channels:    paramGetInt(params, SNDRV_PCM_HW_PARAM_CHANNELS),
		Rate:        paramGetInt(params, SNDRV_PCM_HW_PARAM_RATE),
		PeriodSize:  paramGetInt(params, SNDRV_PCM_HW_PARAM_PERIOD_SIZE),
		PeriodCount: paramGetInt(params, SNDRV_PCM_HW_PARAM_PERIODS),
		BufferSize:  paramGetInt(params, SNDRV_PCM_HW_PARAM_BUFFER_SIZE),
	}

	if p.config.Channels == 0 || p.config.Rate == 0 || p.config.PeriodSize == 0 || p.config.BufferSize == 0 {
		return fmt.Errorf("driver finalized invalid PCM configuration (Channels=%d, Rate=%d, PeriodSize=%d, BufferSize=%d)",
			p.config.Channels, p.config.Rate, p.config.PeriodSize, p.config.BufferSize)
	}

	if p.config.Access == SNDRV_PCM_ACCESS_MMAP_INTERLEAVED {
		mmapProt := unix.PROT_READ | unix.PROT_WRITE
		if (p.flags & PCM_IN) != 0 {
			mmapProt = unix.PROT_READ
		}

		if p.mmapBuffer != nil {
			_ = unix.Munmap(p.mmapBuffer)
			p.mmapBuffer = nil
		}

		buf, err := unix.Mmap(int(p.file.Fd()), 0, int(p.FramesToBytes(p.config.BufferSize)), mmapProt, unix.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("mmap data buffer failed: %w", err)
		}

		p.mmapBuffer = buf
	}

	return p.setSwParams()
}

func (p *PCM) setSwParams() error {
	swParams := &sndPcmSwParams{}
	swParams.TstampMode = 1 // SNDRV_PCM_TSTAMP_ENABLE
	swParams.PeriodStep = 1
	swParams.AvailMin = SndPcmUframesT(p.config.PeriodSize)
	swParams.XferAlign = 1

	// Streams are started explicitly, so the automatic start only has to be out of the way.
	if (p.flags & PCM_IN) != 0 {
		swParams.StartThreshold = 1
	} else {
		swParams.StartThreshold = SndPcmUframesT(p.config.BufferSize)
	}

	swParams.StopThreshold = SndPcmUframesT(p.config.BufferSize)

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_SW_PARAMS, uintptr(unsafe.Pointer(swParams))); err != nil {
		return fmt.Errorf("ioctl SW_PARAMS failed: %w", err)
	}

	p.boundary = swParams.Boundary
	p.setAvailMin(swParams.AvailMin)

	return nil
}

// paramInit initializes a sndPcmHwParams struct to allow all possible values.
func paramInit(p *sndPcmHwParams) {
	for n := range p.Masks {
		for i := range p.Masks[n].Bits {
			p.Masks[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Mres {
		for i := range p.Mres[n].Bits {
			p.Mres[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Intervals {
		p.Intervals[n] = sndInterval{MinVal: 0, MaxVal: ^uint32(0)}
	}

	for n := range p.Ires {
		p.Ires[n] = sndInterval{MinVal: 0, MaxVal: ^uint32(0)}
	}

	p.Rmask = ^uint32(0)
	p.Info = ^uint32(0)
}

func paramSetMask(p *sndPcmHwParams, param PcmParam, bit uint32) {
	if param < SNDRV_PCM_HW_PARAM_ACCESS || param > SNDRV_PCM_HW_PARAM_SUBFORMAT {
		return
	}

	mask := &p.Masks[param-SNDRV_PCM_HW_PARAM_ACCESS]
	for i := range mask.Bits {
		mask.Bits[i] = 0
	}

	if bit >= 256 { // SNDRV_MASK_MAX
		return
	}

	mask.Bits[bit>>5] |= 1 << (bit & 31)
}

// maskFirst returns the lowest bit still set in a mask parameter, or -1 for an empty mask.
func maskFirst(p *sndPcmHwParams, param PcmParam) int32 {
	mask := &p.Masks[param-SNDRV_PCM_HW_PARAM_ACCESS]
	for i, word := range mask.Bits {
		for bit := 0; bit < 32; bit++ {
			if word&(1<<bit) != 0 {
				return int32(i*32 + bit)
			}
		}
	}

	return -1
}

func paramInterval(p *sndPcmHwParams, param PcmParam) *sndInterval {
	if param < SNDRV_PCM_HW_PARAM_SAMPLE_BITS || param > SNDRV_PCM_HW_PARAM_TICK_TIME {
		return nil
	}

	return &p.Intervals[param-SNDRV_PCM_HW_PARAM_SAMPLE_BITS]
}

// intervalBounds returns the closed bounds of an interval, honoring open ends.
func intervalBounds(iv *sndInterval) (lo, hi uint32) {
	lo, hi = iv.MinVal, iv.MaxVal
	if iv.Flags&SNDRV_PCM_INTERVAL_OPENMIN != 0 && lo < hi {
		lo++
	}

	if iv.Flags&SNDRV_PCM_INTERVAL_OPENMAX != 0 && hi > lo {
		hi--
	}

	return lo, hi
}

func paramSetInt(p *sndPcmHwParams, param PcmParam, val uint32) {
	iv := paramInterval(p, param)
	if iv == nil {
		return
	}

	iv.MinVal = val
	iv.MaxVal = val
	iv.Flags = SNDRV_PCM_INTERVAL_INTEGER
}

func paramSetMin(p *sndPcmHwParams, param PcmParam, val uint32) {
	iv := paramInterval(p, param)
	if iv == nil {
		return
	}

	if iv.MinVal < val {
		iv.MinVal = val
		iv.Flags &^= SNDRV_PCM_INTERVAL_OPENMIN
	}
}

func paramSetMax(p *sndPcmHwParams, param PcmParam, val uint32) {
	iv := paramInterval(p, param)
	if iv == nil {
		return
	}

	if iv.MaxVal > val {
		iv.MaxVal = val
		iv.Flags &^= SNDRV_PCM_INTERVAL_OPENMAX
	}
}

// paramGetInt reads a finalized interval parameter. The driver narrows every interval to one value on HW_PARAMS.
func paramGetInt(p *sndPcmHwParams, param PcmParam) uint32 {
	iv := paramInterval(p, param)
	if iv == nil {
		return 0
	}

	return iv.MinVal
}
