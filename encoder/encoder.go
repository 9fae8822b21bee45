// Package encoder converts captured PCM into the FLAC chunks the
// transcription providers accept.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// ClampSample maps a normalized [-1, 1] sample to signed 16-bit without
// wraparound on out-of-range input.
func ClampSample(v float32) int16 {
	s := int32(v * 32768)
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}

// FromFloat32 converts a normalized sample block to clamped int16 PCM.
func FromFloat32(src []float32) []int16 {
	out := make([]int16, len(src))
	for i, v := range src {
		out[i] = ClampSample(v)
	}
	return out
}
