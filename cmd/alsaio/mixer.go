package main

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"

	"github.com/gen2brain/alsaio/backend"
)

// toneMixer synthesizes a sine wave. It is only called from the playback worker.
type toneMixer struct {
	frequency float64
	amplitude float64
	phase     float64
}

func (m *toneMixer) MixInto(dst []byte, format backend.Format) {
	frameSize := format.FrameSize()
	if frameSize == 0 {
		return
	}

	step := 2 * math.Pi * m.frequency / float64(format.SampleRate)

	for off := 0; off+frameSize <= len(dst); off += frameSize {
		v := m.amplitude * math.Sin(m.phase)

		for ch := range format.NumChannels {
			i := off + ch*format.BytesPerSample()
			if format.BitDepth == 8 {
				dst[i] = byte(128 + int(v*127))
			} else {
				binary.LittleEndian.PutUint16(dst[i:], uint16(int16(v*32767)))
			}
		}

		m.phase += step
		if m.phase >= 2*math.Pi {
			m.phase -= 2 * math.Pi
		}
	}
}

// ringMixer plays the bytes a producer writes into a ring buffer. Missing data is played as silence.
type ringMixer struct {
	ring *ringbuffer.RingBuffer

	eof        atomic.Bool
	done       chan struct{}
	doneOnce   sync.Once
	played     atomic.Uint64
	underflows atomic.Uint64
}

func newRingMixer(size int) *ringMixer {
	return &ringMixer{
		ring: ringbuffer.New(size),
		done: make(chan struct{}),
	}
}

func (m *ringMixer) MixInto(dst []byte, format backend.Format) {
	n, _ := m.ring.TryRead(dst)
	m.played.Add(uint64(n))

	if n == len(dst) {
		return
	}

	silence := dst[n:]
	if format.BitDepth == 8 {
		for i := range silence {
			silence[i] = 0x80
		}
	} else {
		clear(silence)
	}

	if m.eof.Load() && m.ring.Length() == 0 {
		m.doneOnce.Do(func() { close(m.done) })

		return
	}

	m.underflows.Add(1)
}

// finish marks the end of the input. Done is closed once the ring has been played out.
func (m *ringMixer) finish() {
	m.eof.Store(true)
}

// Done is closed when the input is finished and fully played.
func (m *ringMixer) Done() <-chan struct{} {
	return m.done
}
