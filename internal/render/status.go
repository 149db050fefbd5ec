package render

import (
	"image"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// StatusKind identifies a status graphic.
type StatusKind int

const (
	StatusNoSignal StatusKind = iota
	StatusNoDevice
)

func (k StatusKind) message() string {
	switch k {
	case StatusNoDevice:
		return "NO DEVICE DETECTED"
	default:
		return "NO SIGNAL"
	}
}

type statusKey struct {
	kind   StatusKind
	width  int
	height int
}

var (
	statusMu    sync.Mutex
	statusCache = map[statusKey][]byte{}
)

// StatusFrame returns a YUYV frame of the requested size carrying the
// status banner over the usual pattern. Frames are rendered once per
// size and cached; the returned slice is shared and must be treated as
// read-only.
func StatusFrame(kind StatusKind, width, height int) []byte {
	key := statusKey{kind, width, height}

	statusMu.Lock()
	defer statusMu.Unlock()
	if f, ok := statusCache[key]; ok {
		return f
	}

	f := make([]byte, width*2*height)
	if kind == StatusNoDevice {
		Fill(f, width, height, FillBlackScreen)
	} else {
		Fill(f, width, height, FillColorBars)
	}
	drawBanner(f, width, height, kind.message())
	statusCache[key] = f
	return f
}

// drawBanner rasterizes msg with the builtin 7x13 face, scales it up to
// suit the frame, and blits it centered over a black band.
func drawBanner(dst []byte, width, height int, msg string) {
	face := basicfont.Face7x13
	textW := font.MeasureString(face, msg).Ceil()
	textH := face.Height
	if textW == 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, textW, textH))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(msg)

	scale := width / (textW * 2)
	if scale < 1 {
		scale = 1
	}

	bannerW := textW * scale
	bannerH := textH * scale
	x0 := (width - bannerW) / 2
	y0 := (height - bannerH) / 2
	if x0 < 0 || y0 < 0 {
		return
	}

	pad := bannerH / 2
	bandTop := y0 - pad
	bandBottom := y0 + bannerH + pad
	if bandTop < 0 {
		bandTop = 0
	}
	if bandBottom > height {
		bandBottom = height
	}
	widthBytes := width * 2
	for y := bandTop; y < bandBottom; y++ {
		fillMacropixel(dst[y*widthBytes:(y+1)*widthBytes], blackScreen)
	}

	// Nearest-neighbor upscale of the alpha mask into luma. Chroma
	// stays neutral from the black band.
	for y := 0; y < bannerH; y++ {
		row := (y0 + y) * widthBytes
		my := y / scale
		for x := 0; x < bannerW; x++ {
			if mask.AlphaAt(x/scale, my).A < 0x80 {
				continue
			}
			dst[row+(x0+x)*2] = 0xeb
		}
	}
}
