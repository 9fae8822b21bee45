package encoder

import "testing"

func TestEncodeMultipleBlocks(t *testing.T) {
	samples := make([]int16, BlockSize*3)
	for i := range samples {
		samples[i] = int16((i * 37) % 2048)
	}

	data, err := Encode(samples)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode on empty input: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestEncodePartialBlock(t *testing.T) {
	partial := make([]int16, BlockSize/4)
	for i := range partial {
		partial[i] = int16(i % 1000)
	}

	data, err := Encode(partial)
	if err != nil {
		t.Fatalf("Encode partial block: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}
