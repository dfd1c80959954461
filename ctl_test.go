package alsa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alsa "github.com/gen2brain/alsaio"
)

func TestCardNext(t *testing.T) {
	requireLoopback(t)

	seen := map[int]bool{}

	card, err := alsa.CardNext(-1)
	require.NoError(t, err)

	for card >= 0 {
		require.False(t, seen[card], "CardNext revisited card %d", card)
		seen[card] = true

		card, err = alsa.CardNext(card)
		require.NoError(t, err)
	}

	assert.True(t, seen[loopbackCard], "loopback card %d was not reported", loopbackCard)
}

func TestCtl(t *testing.T) {
	requireLoopback(t)

	_, err := alsa.CtlOpen(1000)
	assert.Error(t, err, "opening a non-existent control device should fail")

	ctl, err := alsa.CtlOpen(loopbackCard)
	require.NoError(t, err)
	defer ctl.Close()

	assert.Equal(t, loopbackCard, ctl.Card())
	assert.Equal(t, "Loopback", ctl.CardID())
	assert.NotEmpty(t, ctl.CardName())

	t.Run("PcmNextDevice", func(t *testing.T) {
		var devices []int

		dev, err := ctl.PcmNextDevice(-1)
		require.NoError(t, err)

		for dev >= 0 {
			devices = append(devices, dev)

			dev, err = ctl.PcmNextDevice(dev)
			require.NoError(t, err)
		}

		assert.Contains(t, devices, loopbackPlaybackDevice)
		assert.Contains(t, devices, loopbackCaptureDevice)
	})

	t.Run("PcmInfo", func(t *testing.T) {
		info, err := ctl.PcmInfo(loopbackPlaybackDevice, 0, alsa.SNDRV_PCM_STREAM_PLAYBACK)
		require.NoError(t, err)

		assert.Equal(t, loopbackCard, info.Card)
		assert.Equal(t, loopbackPlaybackDevice, info.Device)
		assert.Equal(t, alsa.SNDRV_PCM_STREAM_PLAYBACK, info.Stream)
		assert.NotEmpty(t, info.Name)
		assert.NotZero(t, info.SubdevicesCount)

		_, err = ctl.PcmInfo(99, 0, alsa.SNDRV_PCM_STREAM_PLAYBACK)
		assert.Error(t, err, "PcmInfo should fail for a device the card does not have")
	})

	require.NoError(t, ctl.Close())
	require.NoError(t, ctl.Close(), "closing twice should be a no-op")

	_, err = ctl.PcmNextDevice(-1)
	assert.Error(t, err, "queries on a closed control device should fail")
}
