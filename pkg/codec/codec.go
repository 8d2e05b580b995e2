// Package codec converts between signed 16-bit linear PCM and G.711 μ-law,
// the wire format the telephony side and the voice backend exchange.
//
// Grounded on blitss-sip-tg-bridge's go.mod, which already depends on
// github.com/zaf/g711 for the same conversion; this package is a thin
// frame-shaped layer over that library rather than a hand-rolled segment
// table, per §4.1.
package codec

import (
	"encoding/binary"
	"time"

	"github.com/zaf/g711"
)

const (
	// FrameDuration is the canonical audio unit: 20ms of mono 8kHz audio (§3).
	FrameDuration = 20 * time.Millisecond

	// SamplesPerFrame is 20ms at 8kHz.
	SamplesPerFrame = 160

	// LinearFrameBytes is one frame of signed 16-bit LE linear PCM.
	LinearFrameBytes = SamplesPerFrame * 2

	// MulawFrameBytes is one frame of μ-law bytes (one byte per sample).
	MulawFrameBytes = SamplesPerFrame
)

// Encode converts a single linear-16 sample to a μ-law byte.
func Encode(sample int16) byte {
	return g711.EncodeUlaw([]int16{sample})[0]
}

// Decode converts a single μ-law byte to a linear-16 sample.
func Decode(b byte) int16 {
	return g711.DecodeUlaw([]byte{b})[0]
}

// EncodeSlice converts a buffer of little-endian signed-16 linear PCM to
// μ-law bytes, one byte per input sample pair. len(linear16) must be even;
// a trailing odd byte is dropped.
func EncodeSlice(linear16 []byte) []byte {
	n := len(linear16) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(linear16[i*2:]))
	}
	return g711.EncodeUlaw(samples)
}

// DecodeSlice converts μ-law bytes back to little-endian signed-16 linear
// PCM, two bytes per input byte.
func DecodeSlice(ulaw []byte) []byte {
	samples := g711.DecodeUlaw(ulaw)
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
