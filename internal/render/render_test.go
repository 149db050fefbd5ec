package render

import (
	"bytes"
	"testing"
)

func TestFillColorBars(t *testing.T) {
	const w, h = 1280, 720
	frame := make([]byte, w*2*h)
	Fill(frame, w, h, FillColorBars)

	// Leftmost macropixel is the white bar, rightmost the blue bar.
	if !bytes.Equal(frame[0:4], colorBars[0][:]) {
		t.Errorf("first macropixel = % x, want white bar", frame[0:4])
	}
	last := w*2 - 4
	if !bytes.Equal(frame[last:last+4], colorBars[6][:]) {
		t.Errorf("last macropixel = % x, want blue bar", frame[last:last+4])
	}

	// Every line is a copy of the first.
	line := frame[:w*2]
	for y := 1; y < h; y += 173 {
		if !bytes.Equal(frame[y*w*2:(y+1)*w*2], line) {
			t.Fatalf("line %d differs from line 0", y)
		}
	}
}

func TestFillSolid(t *testing.T) {
	const w, h = 640, 480
	tests := []struct {
		name string
		mode FillMode
		want [4]byte
	}{
		{"black", FillBlackScreen, blackScreen},
		{"blue", FillBlueScreen, blueScreen},
		{"red", FillRedScreen, redScreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := make([]byte, w*2*h)
			Fill(frame, w, h, tt.mode)
			for i := 0; i < len(frame); i += 4 {
				if !bytes.Equal(frame[i:i+4], tt.want[:]) {
					t.Fatalf("macropixel at %d = % x, want % x", i, frame[i:i+4], tt.want)
				}
			}
		})
	}
}

func TestFillGreenScreen(t *testing.T) {
	const w, h = 640, 480
	frame := make([]byte, w*2*h)
	for i := range frame {
		frame[i] = 0xff
	}
	Fill(frame, w, h, FillGreenScreen)
	for i, b := range frame {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}
}

func TestFillShortBuffer(t *testing.T) {
	frame := make([]byte, 16)
	// Must not panic or write past what it was given.
	Fill(frame, 1920, 1080, FillColorBars)
}

func TestStatusFrame(t *testing.T) {
	const w, h = 1920, 1080
	frame := StatusFrame(StatusNoSignal, w, h)
	if len(frame) != w*2*h {
		t.Fatalf("frame size = %d, want %d", len(frame), w*2*h)
	}

	// The banner must have modified the plain pattern.
	plain := make([]byte, w*2*h)
	Fill(plain, w, h, FillColorBars)
	if bytes.Equal(frame, plain) {
		t.Error("status frame identical to plain color bars, banner missing")
	}

	// Cached: same backing array on the second call.
	again := StatusFrame(StatusNoSignal, w, h)
	if &frame[0] != &again[0] {
		t.Error("status frame not cached")
	}
}

func TestStatusFrameNoDevice(t *testing.T) {
	const w, h = 1280, 720
	frame := StatusFrame(StatusNoDevice, w, h)
	// Corners stay black, the banner sits in the middle.
	if !bytes.Equal(frame[0:4], blackScreen[:]) {
		t.Errorf("top-left macropixel = % x, want black", frame[0:4])
	}
	white := false
	for i := 0; i < len(frame); i += 2 {
		if frame[i] == 0xeb {
			white = true
			break
		}
	}
	if !white {
		t.Error("no banner text found in no-device frame")
	}
}
