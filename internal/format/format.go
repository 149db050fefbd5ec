// Package format is the static catalog of video modes the capture chip
// can deliver, keyed by the raw HDMI timing tuple (total pixels per line,
// total lines including blanking).
//
// Several entries intentionally share a timing tuple and differ only in
// frame rate (1080p30/60/120 all arrive as 2200x1125); the MCU's rate
// hint disambiguates them.
package format

// Format describes one supported video mode. Entries are immutable and
// built once at package init.
type Format struct {
	TimingH    uint32 // total pixels per line, including blanking
	TimingV    uint32 // total lines, including blanking
	Width      uint32 // visible
	Height     uint32 // visible
	Interlaced bool
	FPSx100    uint32 // frame rate * 100, the MCU's rate hint unit
	FPSNum     uint32
	FPSDen     uint32
	Depth      int
	FrameSize  int // packed YUYV bytes: Width*2*Height
	Name       string
}

var catalog = []Format{
	{TimingH: 858, TimingV: 525, Width: 720, Height: 480, FPSx100: 5994, FPSNum: 60000, FPSDen: 1001, Depth: 8, Name: "720x480p59.94"},

	{TimingH: 1980, TimingV: 750, Width: 1280, Height: 720, FPSx100: 5000, FPSNum: 50000, FPSDen: 1000, Depth: 8, Name: "1280x720p50"},
	{TimingH: 1650, TimingV: 750, Width: 1280, Height: 720, FPSx100: 5994, FPSNum: 60000, FPSDen: 1001, Depth: 8, Name: "1280x720p59.94"},
	{TimingH: 1650, TimingV: 750, Width: 1280, Height: 720, FPSx100: 6000, FPSNum: 60000, FPSDen: 1000, Depth: 8, Name: "1280x720p60"},

	{TimingH: 2750, TimingV: 1125, Width: 1920, Height: 1080, FPSx100: 2400, FPSNum: 24000, FPSDen: 1000, Depth: 8, Name: "1920x1080p24"},
	{TimingH: 2640, TimingV: 1125, Width: 1920, Height: 1080, FPSx100: 2500, FPSNum: 25000, FPSDen: 1000, Depth: 8, Name: "1920x1080p25"},
	{TimingH: 2200, TimingV: 1125, Width: 1920, Height: 1080, FPSx100: 3000, FPSNum: 30000, FPSDen: 1000, Depth: 8, Name: "1920x1080p30"},
	{TimingH: 2640, TimingV: 1125, Width: 1920, Height: 1080, FPSx100: 5000, FPSNum: 50000, FPSDen: 1000, Depth: 8, Name: "1920x1080p50"},
	{TimingH: 2200, TimingV: 1125, Width: 1920, Height: 1080, FPSx100: 6000, FPSNum: 60000, FPSDen: 1000, Depth: 8, Name: "1920x1080p60"},
	{TimingH: 2200, TimingV: 1125, Width: 1920, Height: 1080, FPSx100: 11988, FPSNum: 120000, FPSDen: 1001, Depth: 8, Name: "1920x1080p119.88"},
	{TimingH: 2200, TimingV: 1125, Width: 1920, Height: 1080, FPSx100: 12000, FPSNum: 120000, FPSDen: 1000, Depth: 8, Name: "1920x1080p120"},
	// CVT reduced blanking, common on monitors at high refresh.
	{TimingH: 2000, TimingV: 1144, Width: 1920, Height: 1080, FPSx100: 12000, FPSNum: 120000, FPSDen: 1000, Depth: 8, Name: "1920x1080p120cvt"},
	{TimingH: 2080, TimingV: 1310, Width: 1920, Height: 1080, FPSx100: 24000, FPSNum: 240000, FPSDen: 1000, Depth: 8, Name: "1920x1080p240"},
	{TimingH: 2080, TimingV: 1310, Width: 1920, Height: 1080, FPSx100: 23976, FPSNum: 240000, FPSDen: 1001, Depth: 8, Name: "1920x1080p239.76"},

	// 1440p timing variants seen from different sources.
	{TimingH: 2720, TimingV: 1481, Width: 2560, Height: 1440, FPSx100: 12000, FPSNum: 120000, FPSDen: 1000, Depth: 8, Name: "2560x1440p120a"},
	{TimingH: 2720, TimingV: 1524, Width: 2560, Height: 1440, FPSx100: 12000, FPSNum: 120000, FPSDen: 1000, Depth: 8, Name: "2560x1440p120b"},
	{TimingH: 2720, TimingV: 1525, Width: 2560, Height: 1440, FPSx100: 12000, FPSNum: 120000, FPSDen: 1000, Depth: 8, Name: "2560x1440p120c"},
	{TimingH: 2720, TimingV: 1510, Width: 2560, Height: 1440, FPSx100: 12000, FPSNum: 120000, FPSDen: 1000, Depth: 8, Name: "2560x1440p120alt"},
	{TimingH: 2640, TimingV: 1490, Width: 2560, Height: 1440, FPSx100: 12000, FPSNum: 120000, FPSDen: 1000, Depth: 8, Name: "2560x1440p120cvt"},
	{TimingH: 2720, TimingV: 1527, Width: 2560, Height: 1440, FPSx100: 14400, FPSNum: 144000, FPSDen: 1000, Depth: 8, Name: "2560x1440p144"},

	{TimingH: 4400, TimingV: 2250, Width: 3840, Height: 2160, FPSx100: 5994, FPSNum: 60000, FPSDen: 1001, Depth: 8, Name: "3840x2160p59.94"},
	{TimingH: 4400, TimingV: 2250, Width: 3840, Height: 2160, FPSx100: 6000, FPSNum: 60000, FPSDen: 1000, Depth: 8, Name: "3840x2160p60"},
}

var fallback = Format{
	TimingH: 2200, TimingV: 1125,
	Width: 1920, Height: 1080,
	FPSx100: 6000, FPSNum: 60000, FPSDen: 1000,
	Depth: 8,
	Name:  "No Signal (1920x1080)",
}

func init() {
	for i := range catalog {
		catalog[i].FrameSize = int(catalog[i].Width) * 2 * int(catalog[i].Height)
	}
	fallback.FrameSize = int(fallback.Width) * 2 * int(fallback.Height)
}

// All returns the full catalog.
func All() []Format { return catalog }

// Default returns the fallback mode used for sizing when no signal is
// locked (1080p60).
func Default() *Format { return &fallback }

// FindByTiming returns the first catalog entry matching the timing
// tuple, or nil.
//
// When several entries share the tuple this pick is ambiguous; it is
// kept for callers with no rate information because that is what the
// hardware historically got.
func FindByTiming(timingH, timingV uint32) *Format {
	for i := range catalog {
		if catalog[i].TimingH == timingH && catalog[i].TimingV == timingV {
			return &catalog[i]
		}
	}
	return nil
}

// FindByTimingAndRate returns the catalog entry matching the timing
// tuple whose rate is closest to the fpsX100 hint. An exact rate match
// wins immediately. A zero hint degrades to FindByTiming. Returns nil
// when the tuple is not cataloged; callers treat that as "format not yet
// known", never as an error.
func FindByTimingAndRate(timingH, timingV, fpsX100 uint32) *Format {
	if fpsX100 == 0 {
		return FindByTiming(timingH, timingV)
	}

	var best *Format
	var bestDiff uint32
	for i := range catalog {
		f := &catalog[i]
		if f.TimingH != timingH || f.TimingV != timingV {
			continue
		}
		if f.FPSx100 == fpsX100 {
			return f
		}
		diff := f.FPSx100 - fpsX100
		if f.FPSx100 < fpsX100 {
			diff = fpsX100 - f.FPSx100
		}
		if best == nil || diff < bestDiff {
			best, bestDiff = f, diff
		}
	}
	return best
}
