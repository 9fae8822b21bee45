package encoder

import (
	"bytes"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// Encode packages one drained caption chunk of mono 16 kHz samples as a
// self-contained FLAC stream. Each chunk is uploaded on its own, so every
// call produces a complete container rather than appending to a running
// stream.
func Encode(samples []int16) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for offset := 0; offset < len(samples); offset += BlockSize {
		end := offset + BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := writeBlock(enc, samples[offset:end]); err != nil {
			return nil, fmt.Errorf("writing flac frame at sample %d: %w", offset, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finishing flac stream: %w", err)
	}
	return buf.Bytes(), nil
}

func writeBlock(enc *flac.Encoder, block []int16) error {
	samples := make([]int32, len(block))
	for i, s := range block {
		samples[i] = int32(s)
	}
	return enc.WriteFrame(&frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	})
}
