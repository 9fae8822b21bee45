package encoder

import "testing"

func TestClampSample(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"positive", 0.5, 16384},
		{"negative", -0.5, -16384},
		{"max", 1, 32767},
		{"over", 1.5, 32767},
		{"far over", 100, 32767},
		{"min", -1, -32768},
		{"under", -1.5, -32768},
		{"far under", -100, -32768},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampSample(tt.in); got != tt.want {
				t.Errorf("ClampSample(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromFloat32NoWraparound(t *testing.T) {
	in := []float32{2.0, -2.0, 1.0001, -1.0001}
	out := FromFloat32(in)
	for i, s := range out {
		if s != 32767 && s != -32768 {
			t.Errorf("sample %d: out-of-range input produced %d, expected clamp", i, s)
		}
	}
	if out[0] != 32767 || out[2] != 32767 {
		t.Error("positive overflow must clamp to 32767")
	}
	if out[1] != -32768 || out[3] != -32768 {
		t.Error("negative overflow must clamp to -32768")
	}
}
