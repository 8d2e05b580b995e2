package audio

import (
	"errors"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// memSeeker is a minimal io.WriteSeeker over a growable byte slice. The
// go-audio/wav encoder seeks back to the RIFF/data chunk sizes once the
// sample count is known, which bytes.Buffer alone cannot do.
type memSeeker struct {
	buf []byte
	pos int
}

func (m *memSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(m.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("audio: invalid seek whence")
	}
	if newPos < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	m.pos = int(newPos)
	return newPos, nil
}

// NewWavBuffer wraps raw signed-16-bit little-endian mono PCM in a
// RIFF/WAVE container via go-audio/wav, for vendor STT endpoints that want
// a file-like multipart upload rather than a raw PCM stream.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		lo := int(pcm[i*2])
		hi := int(int8(pcm[i*2+1]))
		samples[i] = (hi << 8) | lo
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	dst := &memSeeker{}
	enc := wav.NewEncoder(dst, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil
	}
	if err := enc.Close(); err != nil {
		return nil
	}
	return dst.buf
}
