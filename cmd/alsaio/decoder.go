package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// AudioDecoder yields integer PCM samples from an encoded file.
type AudioDecoder interface {
	// PCMBuffer fills buf.Data with interleaved samples and returns how many were read.
	PCMBuffer(buf *audio.IntBuffer) (n int, err error)
	NumChans() int
	SampleRate() int
	BitDepth() int
}

// openDecoder opens path and picks the decoder from the file extension.
func openDecoder(path string) (AudioDecoder, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	var dec AudioDecoder

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		dec, err = newWavDecoder(f)
	case ".mp3":
		dec, err = newMp3Decoder(f)
	case ".ogg", ".oga":
		dec, err = newVorbisDecoder(f)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	if err != nil {
		_ = f.Close()

		return nil, nil, err
	}

	return dec, f, nil
}

type wavDecoder struct {
	*wav.Decoder
}

func newWavDecoder(r io.ReadSeeker) (AudioDecoder, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV encoding %d, only integer PCM is played", d.WavAudioFormat)
	}

	return &wavDecoder{Decoder: d}, nil
}

func (w *wavDecoder) NumChans() int   { return int(w.Decoder.NumChans) }
func (w *wavDecoder) SampleRate() int { return int(w.Decoder.SampleRate) }
func (w *wavDecoder) BitDepth() int   { return int(w.Decoder.BitDepth) }

// mp3Decoder always yields 16-bit stereo.
type mp3Decoder struct {
	decoder *mp3.Decoder
	scratch []byte
}

func newMp3Decoder(r io.Reader) (AudioDecoder, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	return &mp3Decoder{decoder: d}, nil
}

func (m *mp3Decoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	need := len(buf.Data) * 2
	if cap(m.scratch) < need {
		m.scratch = make([]byte, need)
	}

	read, err := io.ReadFull(m.decoder, m.scratch[:need])
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}

	samples := read / 2
	for i := range samples {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(m.scratch[i*2:])))
	}

	return samples, err
}

func (m *mp3Decoder) NumChans() int   { return 2 }
func (m *mp3Decoder) SampleRate() int { return m.decoder.SampleRate() }
func (m *mp3Decoder) BitDepth() int   { return 16 }

// vorbisDecoder scales the float output of the Vorbis reader to 16-bit samples.
type vorbisDecoder struct {
	reader  *oggvorbis.Reader
	scratch []float32
}

func newVorbisDecoder(r io.Reader) (AudioDecoder, error) {
	d, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open vorbis stream: %w", err)
	}

	return &vorbisDecoder{reader: d}, nil
}

func (v *vorbisDecoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	// Read works on whole frames, so the request is trimmed to a multiple of the channel count.
	need := len(buf.Data) - len(buf.Data)%v.NumChans()
	if cap(v.scratch) < need {
		v.scratch = make([]float32, need)
	}

	n, err := v.reader.Read(v.scratch[:need])
	for i := range n {
		buf.Data[i] = int(max(min(v.scratch[i], 1), -1) * 32767)
	}

	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

func (v *vorbisDecoder) NumChans() int   { return v.reader.Channels() }
func (v *vorbisDecoder) SampleRate() int { return v.reader.SampleRate() }
func (v *vorbisDecoder) BitDepth() int   { return 16 }

// appendS16 appends samples of the given bit depth as signed 16-bit little-endian.
// 8-bit samples are unsigned as stored in WAV files.
func appendS16(dst []byte, samples []int, bitDepth int) []byte {
	for _, s := range samples {
		switch {
		case bitDepth == 8:
			s = (s - 128) << 8
		case bitDepth > 16:
			s >>= bitDepth - 16
		}

		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(max(min(s, 32767), -32768))))
	}

	return dst
}

// s16ToInts converts signed 16-bit little-endian bytes to samples.
func s16ToInts(dst []int, src []byte) []int {
	dst = dst[:0]
	for i := 0; i+1 < len(src); i += 2 {
		dst = append(dst, int(int16(binary.LittleEndian.Uint16(src[i:]))))
	}

	return dst
}

// u8ToInts converts unsigned 8-bit samples, the layout of 8-bit WAV files.
func u8ToInts(dst []int, src []byte) []int {
	dst = dst[:0]
	for _, b := range src {
		dst = append(dst, int(b))
	}

	return dst
}
