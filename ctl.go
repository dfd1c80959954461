package alsa

import (
	"bytes"
	"fmt"
	"os"
	"unsafe"
)

// Ctl represents an open ALSA control device of one sound card.
type Ctl struct {
	file     *os.File
	card     int
	cardInfo sndCtlCardInfo
}

// PcmInfo describes one PCM device of a card as reported by the control interface.
type PcmInfo struct {
	Card            int
	Device          int
	Subdevice       int
	Stream          PcmStream
	ID              string
	Name            string
	Subname         string
	SubdevicesCount uint32
	SubdevicesAvail uint32
}

// CtlOpen opens the control device for a given sound card and reads the card information.
// Note: This implementation does not support the ALSA plugin architecture and will only open direct hardware control devices (e.g., /dev/snd/controlC0).
func CtlOpen(card int) (*Ctl, error) {
	path := fmt.Sprintf("/dev/snd/controlC%d", card)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open control device %s: %w", path, err)
	}

	ctl := &Ctl{
		file: file,
		card: card,
	}

	if err := ioctl(ctl.file.Fd(), SNDRV_CTL_IOCTL_CARD_INFO, uintptr(unsafe.Pointer(&ctl.cardInfo))); err != nil {
		_ = ctl.Close()

		return nil, fmt.Errorf("ioctl CARD_INFO failed: %w", err)
	}

	return ctl, nil
}

// Close closes the control device handle.
func (c *Ctl) Close() error {
	if c == nil || c.file == nil {
		return nil
	}

	err := c.file.Close()
	c.file = nil

	return err
}

// Card returns the card number the control device belongs to.
func (c *Ctl) Card() int {
	return c.card
}

// CardID returns the short identifier of the card, e.g. "Loopback".
func (c *Ctl) CardID() string {
	return cString(c.cardInfo.Id[:])
}

// CardName returns the name of the sound card.
func (c *Ctl) CardName() string {
	return cString(c.cardInfo.Name[:])
}

// CardLongName returns the long name of the sound card.
func (c *Ctl) CardLongName() string {
	return cString(c.cardInfo.Longname[:])
}

// PcmNextDevice returns the number of the next PCM device after device, or -1 when there is none.
// Pass -1 to get the first device.
func (c *Ctl) PcmNextDevice(device int) (int, error) {
	if c == nil || c.file == nil {
		return -1, fmt.Errorf("control device is not open")
	}

	next := int32(device)
	if err := ioctl(c.file.Fd(), SNDRV_CTL_IOCTL_PCM_NEXT_DEVICE, uintptr(unsafe.Pointer(&next))); err != nil {
		return -1, fmt.Errorf("ioctl PCM_NEXT_DEVICE failed: %w", err)
	}

	return int(next), nil
}

// PcmInfo queries one subdevice of a PCM device for the given direction.
// It fails when the device has no stream in that direction.
func (c *Ctl) PcmInfo(device, subdevice int, stream PcmStream) (PcmInfo, error) {
	if c == nil || c.file == nil {
		return PcmInfo{}, fmt.Errorf("control device is not open")
	}

	info := sndPcmInfo{
		Device:    uint32(device),
		Subdevice: uint32(subdevice),
		Stream:    int32(stream),
	}

	if err := ioctl(c.file.Fd(), SNDRV_CTL_IOCTL_PCM_INFO, uintptr(unsafe.Pointer(&info))); err != nil {
		return PcmInfo{}, fmt.Errorf("ioctl PCM_INFO failed: %w", err)
	}

	return PcmInfo{
		Card:            int(info.Card),
		Device:          int(info.Device),
		Subdevice:       int(info.Subdevice),
		Stream:          PcmStream(info.Stream),
		ID:              cString(info.Id[:]),
		Name:            cString(info.Name[:]),
		Subname:         cString(info.Subname[:]),
		SubdevicesCount: info.SubdevicesCount,
		SubdevicesAvail: info.SubdevicesAvail,
	}, nil
}

// cString converts a NUL-terminated C string in a byte array to a Go string.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		return string(b)
	}

	return string(b[:i])
}
