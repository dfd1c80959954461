package backend_test

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alsa "github.com/gen2brain/alsaio"
	"github.com/gen2brain/alsaio/backend"
)

func TestRegionBytes(t *testing.T) {
	area := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	r := backend.Region{Area: area, Stride: 2, Offset: 2, Frames: 3}

	assert.Equal(t, []byte{4, 5, 6, 7, 8, 9}, r.Bytes())
}

func TestTransfer(t *testing.T) {
	defer backend.SetTimings(0, time.Millisecond, 0, 5)()

	fill := func(b byte) func(backend.Region) {
		return func(r backend.Region) {
			for i := range r.Bytes() {
				r.Bytes()[i] = b
			}
		}
	}

	t.Run("ContinuesAcrossWrap", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		h.appl = 12

		moved, err := backend.Transfer(h, 8, fill(0xAA))
		require.NoError(t, err)
		assert.Equal(t, 8, moved)
		require.Len(t, h.regions, 2)
		assert.Equal(t, 12, h.regions[0].Offset)
		assert.Equal(t, 4, h.regions[0].Frames)
		assert.Equal(t, 0, h.regions[1].Offset)
		assert.Equal(t, 4, h.regions[1].Frames)
		assert.Equal(t, 8, h.committed)

		for i, b := range h.buffer {
			frame := i / 4
			if frame < 4 || frame >= 12 {
				assert.Equal(t, byte(0xAA), b, "byte %d", i)
			} else {
				assert.Equal(t, byte(0), b, "byte %d outside the regions", i)
			}
		}
	})

	t.Run("StopsWhenNothingGranted", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 5)

		moved, err := backend.Transfer(h, 8, fill(1))
		require.NoError(t, err)
		assert.Equal(t, 5, moved)
	})

	t.Run("ShortCommit", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 64, 64)
		h.maxGrant = 10

		calls := 0
		h.commit = func(offset, frames int) (int, error) {
			calls++
			if calls == 2 {
				return 3, nil
			}

			return frames, nil
		}

		before := h.callCount("begin")
		moved, err := backend.Transfer(h, 30, fill(1))
		require.Error(t, err)
		assert.ErrorIs(t, err, backend.ErrShortCommit)
		assert.Equal(t, 10, moved, "the short region is not counted")
		assert.Equal(t, before+2, h.callCount("begin"), "no region after the short commit")
	})

	t.Run("CommitError", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		h.commit = func(offset, frames int) (int, error) {
			return 0, syscall.EPIPE
		}

		moved, err := backend.Transfer(h, 8, fill(1))
		assert.ErrorIs(t, err, backend.ErrShortCommit)
		assert.ErrorIs(t, err, syscall.EPIPE)
		assert.Equal(t, 0, moved)
		assert.Equal(t, 0, h.callCount("prepare"), "a commit failure is not recovered in place")
	})

	t.Run("BeginRecovered", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		h.beginErrs = []error{syscall.EPIPE}

		moved, err := backend.Transfer(h, 8, fill(1))
		require.NoError(t, err)
		assert.Equal(t, 8, moved)
		assert.Equal(t, []string{"begin", "prepare", "start", "begin", "commit"}, h.callLog())
	})

	t.Run("BeginRecoveryFails", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		h.beginErrs = []error{syscall.EPIPE}
		h.prepareErr = syscall.EIO

		moved, err := backend.Transfer(h, 8, fill(1))
		assert.ErrorIs(t, err, backend.ErrRecoveryFailed)
		assert.Equal(t, 0, moved)
		assert.Zero(t, h.callCount("commit"))
	})

	t.Run("BeginFailuresBounded", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		for range 20 {
			h.beginErrs = append(h.beginErrs, syscall.EPIPE)
		}

		_, err := backend.Transfer(h, 8, fill(1))
		assert.ErrorIs(t, err, backend.ErrBeginFailed)
		assert.ErrorIs(t, err, syscall.EPIPE)
		assert.NotErrorIs(t, err, backend.ErrShortCommit)
		assert.Zero(t, h.callCount("commit"))
		assert.Less(t, h.callCount("begin"), 20)
	})

	t.Run("CopyOutAdvances", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_CAPTURE)
		h.configure(2, 8, 8)
		h.appl = 6
		for i := range h.buffer {
			h.buffer[i] = byte(i)
		}

		dst := make([]byte, 8)
		moved, err := backend.Transfer(h, 4, backend.CopyOut(dst))
		require.NoError(t, err)
		assert.Equal(t, 4, moved)
		assert.Equal(t, []byte{12, 13, 14, 15, 0, 1, 2, 3}, dst)
	})
}

func TestAvailable(t *testing.T) {
	defer backend.SetTimings(0, time.Millisecond, 0, 5)()

	t.Run("Plain", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 7)

		avail, err := backend.Available(h)
		require.NoError(t, err)
		assert.Equal(t, 7, avail)
	})

	t.Run("RecoveredAndRequeried", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		h.availErrs = []error{syscall.EPIPE}

		avail, err := backend.Available(h)
		require.NoError(t, err)
		assert.Equal(t, 16, avail)
		assert.Equal(t, []string{"avail", "prepare", "start", "avail"}, h.callLog())
	})

	t.Run("RecoveryFails", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		h.availErrs = []error{syscall.EPIPE}
		h.prepareErr = syscall.EIO

		_, err := backend.Available(h)
		assert.ErrorIs(t, err, backend.ErrRecoveryFailed)
		assert.Equal(t, 1, h.callCount("avail"))
	})

	t.Run("StillFailing", func(t *testing.T) {
		h := newFakeHandle("hw:0,0", alsa.SNDRV_PCM_STREAM_PLAYBACK)
		h.configure(4, 16, 16)
		h.availErrs = []error{syscall.EPIPE, syscall.EPIPE}

		_, err := backend.Available(h)
		assert.ErrorIs(t, err, syscall.EPIPE)
	})
}
