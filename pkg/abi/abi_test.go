package abi

import "testing"

func TestParseArgOrder(t *testing.T) {
	tests := []struct {
		in   string
		want ArgOrder
		ok   bool
	}{
		{"", PixelsFirst, true},
		{"pixels-first", PixelsFirst, true},
		{"scratch-first", ScratchFirst, true},
		{"sideways", PixelsFirst, false},
	}

	for _, tt := range tests {
		got, ok := ParseArgOrder(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseArgOrder(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
		if ok && tt.in != "" && got.String() != tt.in {
			t.Errorf("String() = %s, want %s", got.String(), tt.in)
		}
	}
}

func TestResolutionSizes(t *testing.T) {
	r := Resolution{Width: DefaultWidth, Height: DefaultHeight}

	if r.PixelBytes() != 307200 {
		t.Errorf("PixelBytes() = %d, want 307200", r.PixelBytes())
	}
}
