// Package render produces synthetic YUYV frames: test patterns for the
// no-signal placeholder and status graphics with a text banner.
package render

// FillMode selects the placeholder pattern.
type FillMode int

const (
	FillColorBars FillMode = iota
	FillGreenScreen
	FillBlueScreen
	FillBlackScreen
	FillRedScreen
)

// 75% IRE colorbars, one YUYV macropixel per bar.
var colorBars = [7][4]byte{
	{0xc0, 0x80, 0xc0, 0x80},
	{0xaa, 0x20, 0xaa, 0x8f},
	{0x86, 0xa0, 0x86, 0x20},
	{0x70, 0x40, 0x70, 0x2f},
	{0x4f, 0xbf, 0x4f, 0xd0},
	{0x39, 0x5f, 0x39, 0xe0},
	{0x15, 0xe0, 0x15, 0x70},
}

var (
	blackScreen = [4]byte{0x00, 0x80, 0x00, 0x80}
	blueScreen  = [4]byte{0x1d, 0xff, 0x1d, 0x6b}
	redScreen   = [4]byte{0x39, 0x5f, 0x39, 0xe0}
)

// Fill paints a width x height YUYV pattern into dst. dst must hold at
// least width*2*height bytes. The first line is composed macropixel by
// macropixel, then replicated down the frame.
func Fill(dst []byte, width, height int, mode FillMode) {
	widthBytes := width * 2
	if len(dst) < widthBytes*height || widthBytes < 4 || height < 1 {
		return
	}

	line := dst[:widthBytes]
	switch mode {
	case FillColorBars:
		divider := widthBytes/7 + 1
		for i := 0; i+4 <= widthBytes; i += 4 {
			copy(line[i:i+4], colorBars[i/divider][:])
		}
	case FillGreenScreen:
		for i := range line {
			line[i] = 0
		}
	case FillBlueScreen:
		fillMacropixel(line, blueScreen)
	case FillRedScreen:
		fillMacropixel(line, redScreen)
	default:
		fillMacropixel(line, blackScreen)
	}

	for y := 1; y < height; y++ {
		copy(dst[y*widthBytes:(y+1)*widthBytes], line)
	}
}

func fillMacropixel(line []byte, px [4]byte) {
	for i := 0; i+4 <= len(line); i += 4 {
		copy(line[i:i+4], px[:])
	}
}
