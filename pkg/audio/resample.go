package audio

// Downsample3to1 converts linear-16 little-endian PCM at 24kHz to 8kHz by
// simple decimation (keep every third sample). No pack example performs
// resampling; decimation is the simplest correct transform for this
// exact 3:1 ratio and is adequate for the narrowband telephony path this
// feeds (spec §4.5 "resampled to 8 kHz").
func Downsample3to1(pcm24k []byte) []byte {
	samples := len(pcm24k) / 2
	out := make([]byte, 0, (samples/3+1)*2)
	for i := 0; i < samples; i += 3 {
		out = append(out, pcm24k[i*2], pcm24k[i*2+1])
	}
	return out
}

// PadToFrameBoundary right-pads pcm with zero bytes so its length is a
// multiple of frameBytes (320 for a 20ms linear-16 8kHz frame).
func PadToFrameBoundary(pcm []byte, frameBytes int) []byte {
	rem := len(pcm) % frameBytes
	if rem == 0 {
		return pcm
	}
	pad := make([]byte, frameBytes-rem)
	return append(pcm, pad...)
}
