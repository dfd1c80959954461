package backend_test

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"syscall"

	alsa "github.com/gen2brain/alsaio"
	"github.com/gen2brain/alsaio/backend"
)

// fakeDevice is one PCM device of a fake card.
type fakeDevice struct {
	num      int
	name     string
	playback bool
	capture  bool
}

type fakeCard struct {
	index   int
	name    string
	devices []fakeDevice
	openErr error
}

// fakeSubsystem is a scripted hardware subsystem.
type fakeSubsystem struct {
	mu       sync.Mutex
	cards    []fakeCard
	openErrs []error
	routes   []string
	handles  []*fakeHandle
	// setup configures each handle before it is returned by Open.
	setup func(h *fakeHandle)
}

func (f *fakeSubsystem) Open(route string, stream alsa.PcmStream, nonblock bool) (backend.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.routes = append(f.routes, route)

	if len(f.openErrs) > 0 {
		err := f.openErrs[0]
		f.openErrs = f.openErrs[1:]

		return nil, err
	}

	h := newFakeHandle(route, stream)
	h.nonblock = nonblock

	if f.setup != nil {
		f.setup(h)
	}

	f.handles = append(f.handles, h)

	return h, nil
}

func (f *fakeSubsystem) CardNext(card int) (int, error) {
	for _, c := range f.cards {
		if c.index > card {
			return c.index, nil
		}
	}

	return -1, nil
}

func (f *fakeSubsystem) OpenControl(card int) (backend.Control, error) {
	for _, c := range f.cards {
		if c.index == card {
			if c.openErr != nil {
				return nil, c.openErr
			}

			return &fakeControl{card: c}, nil
		}
	}

	return nil, syscall.ENODEV
}

func (f *fakeSubsystem) lastHandle() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.handles) == 0 {
		return nil
	}

	return f.handles[len(f.handles)-1]
}

func (f *fakeSubsystem) openedRoutes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.routes)
}

type fakeControl struct {
	card   fakeCard
	closed bool
}

func (c *fakeControl) CardName() string {
	return c.card.name
}

func (c *fakeControl) PcmNextDevice(device int) (int, error) {
	for _, d := range c.card.devices {
		if d.num > device {
			return d.num, nil
		}
	}

	return -1, nil
}

func (c *fakeControl) PcmInfo(device, subdevice int, stream alsa.PcmStream) (alsa.PcmInfo, error) {
	for _, d := range c.card.devices {
		if d.num != device {
			continue
		}

		if (stream == alsa.SNDRV_PCM_STREAM_PLAYBACK && d.playback) || (stream == alsa.SNDRV_PCM_STREAM_CAPTURE && d.capture) {
			return alsa.PcmInfo{Card: c.card.index, Device: device, Subdevice: subdevice, Stream: stream, Name: d.name}, nil
		}
	}

	return alsa.PcmInfo{}, syscall.ENOENT
}

func (c *fakeControl) Close() error {
	c.closed = true

	return nil
}

// fakeHandle is a scripted PCM stream over an in-memory ring buffer.
// avail is the frames writable (playback) or readable (capture).
type fakeHandle struct {
	mu sync.Mutex

	route    string
	stream   alsa.PcmStream
	nonblock bool
	state    alsa.PcmState

	params *fakeParams
	stride int
	size   int
	buffer []byte
	appl   int
	avail  int
	// maxGrant limits the frames of one region when positive.
	maxGrant int

	availErrs  []error
	beginErrs  []error
	resumeErrs []error
	prepareErr error
	startErr   error
	// commit overrides the commit result when set.
	commit func(offset, frames int) (int, error)

	calls     []string
	committed int
	regions   []backend.Region
	closes    int
	misuse    []string
}

func newFakeHandle(route string, stream alsa.PcmStream) *fakeHandle {
	return &fakeHandle{
		route:  route,
		stream: stream,
		state:  alsa.SNDRV_PCM_STATE_OPEN,
		params: &fakeParams{},
	}
}

func (h *fakeHandle) record(call string) {
	h.calls = append(h.calls, call)
	if h.closes > 0 {
		h.misuse = append(h.misuse, call)
	}
}

func (h *fakeHandle) HWParams() (backend.HWParams, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("hw_params")

	if h.params.anyErr != nil {
		return nil, h.params.anyErr
	}

	h.params.handle = h

	return h.params, nil
}

func (h *fakeHandle) Nonblock(enable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record(fmt.Sprintf("nonblock %t", enable))
	h.nonblock = enable

	return nil
}

func (h *fakeHandle) Prepare() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("prepare")

	if h.prepareErr != nil {
		return h.prepareErr
	}

	h.state = alsa.SNDRV_PCM_STATE_PREPARED

	return nil
}

func (h *fakeHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("start")

	if h.startErr != nil {
		return h.startErr
	}

	h.state = alsa.SNDRV_PCM_STATE_RUNNING

	return nil
}

func (h *fakeHandle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("resume")

	if len(h.resumeErrs) > 0 {
		err := h.resumeErrs[0]
		if len(h.resumeErrs) > 1 || !errors.Is(err, syscall.EAGAIN) {
			h.resumeErrs = h.resumeErrs[1:]
		}

		return err
	}

	h.state = alsa.SNDRV_PCM_STATE_RUNNING

	return nil
}

func (h *fakeHandle) Drain() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("drain")
	h.state = alsa.SNDRV_PCM_STATE_SETUP

	return nil
}

func (h *fakeHandle) State() alsa.PcmState {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closes > 0 {
		h.misuse = append(h.misuse, "state")
	}

	return h.state
}

func (h *fakeHandle) AvailUpdate() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("avail")

	if len(h.availErrs) > 0 {
		err := h.availErrs[0]
		h.availErrs = h.availErrs[1:]

		return -1, err
	}

	return h.avail, nil
}

func (h *fakeHandle) MmapBegin(frames int) (backend.Region, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("begin")

	if len(h.beginErrs) > 0 {
		err := h.beginErrs[0]
		h.beginErrs = h.beginErrs[1:]

		return backend.Region{}, err
	}

	offset := h.appl % h.size
	granted := min(frames, h.avail, h.size-offset)
	if h.maxGrant > 0 {
		granted = min(granted, h.maxGrant)
	}

	r := backend.Region{Area: h.buffer, Stride: h.stride, Offset: offset, Frames: granted}
	h.regions = append(h.regions, r)

	return r, nil
}

func (h *fakeHandle) MmapCommit(offset, frames int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.record("commit")

	if h.commit != nil {
		n, err := h.commit(offset, frames)
		if err != nil || n != frames {
			return n, err
		}
	}

	h.appl += frames
	h.avail -= frames
	h.committed += frames

	return frames, nil
}

func (h *fakeHandle) BufferSize() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return uint32(h.size)
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closes++

	return nil
}

// configure sets up the ring buffer directly, for tests that bypass negotiation.
func (h *fakeHandle) configure(stride, size, avail int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stride = stride
	h.size = size
	h.buffer = make([]byte, stride*size)
	h.avail = avail
	h.state = alsa.SNDRV_PCM_STATE_RUNNING
}

func (h *fakeHandle) setAvail(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.avail = n
}

func (h *fakeHandle) setState(state alsa.PcmState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = state
}

func (h *fakeHandle) callCount(call string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, c := range h.calls {
		if c == call {
			n++
		}
	}

	return n
}

func (h *fakeHandle) callLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.calls)
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.closes
}

func (h *fakeHandle) usedAfterClose() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.misuse)
}

// fakeParams records the negotiation and grants values from its fields.
type fakeParams struct {
	handle *fakeHandle

	anyErr    error
	failAt    string
	rate      uint32 // granted rate, the request when zero
	buffer    uint32 // granted buffer size, the request when zero
	periods   uint32 // granted period count, the request when zero
	installed uint32 // buffer size the hardware settles on, the granted one when zero

	access   alsa.PcmAccess
	format   alsa.PcmFormat
	channels uint32
	steps    []string
	freed    bool
}

func (p *fakeParams) step(name string) error {
	p.steps = append(p.steps, name)
	if p.failAt == name {
		return syscall.EINVAL
	}

	return nil
}

func (p *fakeParams) SetAccess(access alsa.PcmAccess) error {
	p.access = access

	return p.step("access")
}

func (p *fakeParams) SetFormat(format alsa.PcmFormat) error {
	p.format = format
	if format == alsa.SNDRV_PCM_FORMAT_INVALID {
		p.steps = append(p.steps, "format")

		return syscall.EINVAL
	}

	return p.step("format")
}

func (p *fakeParams) SetChannels(channels uint32) error {
	p.channels = channels

	return p.step("channels")
}

func (p *fakeParams) SetPeriodsNear(periods uint32) (uint32, error) {
	if p.periods == 0 {
		p.periods = periods
	}

	return p.periods, p.step(fmt.Sprintf("periods %d", periods))
}

func (p *fakeParams) SetRate(rate uint32) error {
	p.rate = rate

	return p.step("rate")
}

func (p *fakeParams) SetRateNear(rate uint32) (uint32, error) {
	if p.rate == 0 {
		p.rate = rate
	}

	return p.rate, p.step("rate near")
}

func (p *fakeParams) SetBufferSizeNear(frames uint32) (uint32, error) {
	if p.buffer == 0 {
		p.buffer = frames
	}

	return p.buffer, p.step("buffer near")
}

func (p *fakeParams) SetBufferSizeMin(frames uint32) (uint32, error) {
	if p.buffer < frames {
		p.buffer = frames
	}

	return p.buffer, p.step(fmt.Sprintf("buffer min %d", frames))
}

// Install sizes the ring buffer from the negotiated values. A playback buffer starts empty, all of it writable.
func (p *fakeParams) Install() error {
	if err := p.step("install"); err != nil {
		return err
	}

	h := p.handle
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stride = int(p.channels) * int(alsa.PcmFormatToBits(p.format)/8)
	h.size = int(p.buffer)
	if p.installed > 0 {
		h.size = int(p.installed)
	}
	h.buffer = make([]byte, h.stride*h.size)
	h.state = alsa.SNDRV_PCM_STATE_SETUP

	if h.stream == alsa.SNDRV_PCM_STREAM_PLAYBACK {
		h.avail = h.size
	}

	return nil
}

func (p *fakeParams) Free() {
	p.freed = true
}

// reporter records the codes passed to SetError.
type reporter struct {
	mu    sync.Mutex
	codes []backend.ErrorCode
}

func (r *reporter) SetError(code backend.ErrorCode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes = append(r.codes, code)
}

func (r *reporter) got() []backend.ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.codes)
}

// nameRecorder records the names registered by enumeration.
type nameRecorder struct {
	playback, all, capture []string
}

func (n *nameRecorder) AddPlayback(name string) string {
	n.playback = append(n.playback, name)

	return name
}

func (n *nameRecorder) AddAllDevices(name string) string {
	n.all = append(n.all, name)

	return name
}

func (n *nameRecorder) AddCapture(name string) string {
	n.capture = append(n.capture, name)

	return name
}

func (h *fakeHandle) committedFrames() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.committed
}

// fillBuffer writes fn(i) to every byte of the ring buffer.
func (h *fakeHandle) fillBuffer(fn func(i int) byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.buffer {
		h.buffer[i] = fn(i)
	}
}

func (h *fakeHandle) bufferCopy() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.buffer)
}
