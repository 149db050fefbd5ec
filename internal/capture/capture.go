// Package capture is the consumer-facing device contract: open handles,
// format negotiation, buffer queue/dequeue and stream control, modeled
// on the V4L2 capture interface the card is normally driven through.
package capture

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/format"
	"github.com/Nakildias/sc0710/internal/signal"
	"github.com/Nakildias/sc0710/internal/stream"
)

var (
	// ErrNotSupported is returned for operations the hardware cannot
	// do, such as setting custom timings.
	ErrNotSupported = errors.New("operation not supported")
	// ErrNoSignal is returned by timing queries while unlocked.
	ErrNoSignal = errors.New("no signal detected")
	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoSuchChannel is returned when opening a channel the card
	// does not have.
	ErrNoSuchChannel = errors.New("no such channel")
)

// Capability describes the device.
type Capability struct {
	Driver   string   `json:"driver"`
	Card     string   `json:"card"`
	Channels int      `json:"channels"`
	Caps     []string `json:"caps"`
}

// PixFormat is a negotiated frame layout plus the color interpretation
// hints for the current signal.
type PixFormat struct {
	Width        uint32       `json:"width"`
	Height       uint32       `json:"height"`
	PixelFormat  string       `json:"pixel_format"` // always YUYV
	BytesPerLine uint32       `json:"bytes_per_line"`
	SizeImage    uint32       `json:"size_image"`
	Interlaced   bool         `json:"interlaced"`
	Colorspace   Colorspace   `json:"colorspace"`
	XferFunc     XferFunc     `json:"xfer_func"`
	YCbCrEnc     YCbCrEnc     `json:"ycbcr_enc"`
	Quantization Quantization `json:"quantization"`
}

// FrameSize is one discrete supported size.
type FrameSize struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// FrameInterval is one supported frame period for a size.
type FrameInterval struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// Timings is the detected mode reported by a timings query.
type Timings struct {
	Mode       string `json:"mode"`
	Width      uint32 `json:"width"`
	Height     uint32 `json:"height"`
	TimingH    uint32 `json:"timing_h"`
	TimingV    uint32 `json:"timing_v"`
	Interlaced bool   `json:"interlaced"`
	FPSNum     uint32 `json:"fps_num"`
	FPSDen     uint32 `json:"fps_den"`
}

// Device exposes the capture contract over the stream multiplexer.
// Any number of handles may be open concurrently.
type Device struct {
	mux      *stream.Mux
	snapshot func() signal.Snapshot
	runtime  *config.RuntimeStore
	channels int
	log      *slog.Logger
}

// NewDevice wires the contract over mux.
func NewDevice(mux *stream.Mux, snapshot func() signal.Snapshot, runtime *config.RuntimeStore, channels int, log *slog.Logger) *Device {
	return &Device{
		mux:      mux,
		snapshot: snapshot,
		runtime:  runtime,
		channels: channels,
		log:      log,
	}
}

// Capability reports what the device can do.
func (d *Device) Capability() Capability {
	return Capability{
		Driver:   "sc0710",
		Card:     "Elgato 4K60 Pro mk.2",
		Channels: d.channels,
		Caps:     []string{"video_capture", "streaming", "multi_open"},
	}
}

// Open creates a handle on channel chn.
func (d *Device) Open(chn int) (*Handle, error) {
	if chn < 0 || chn >= d.channels {
		return nil, ErrNoSuchChannel
	}
	c := d.mux.Open(chn)
	if c == nil {
		return nil, ErrNoSuchChannel
	}
	return &Handle{dev: d, client: c}, nil
}

// FrameSizes enumerates the discrete sizes in the catalog, deduplicated.
func (d *Device) FrameSizes() []FrameSize {
	seen := make(map[FrameSize]bool)
	var out []FrameSize
	for _, f := range format.All() {
		fs := FrameSize{Width: f.Width, Height: f.Height}
		if !seen[fs] {
			seen[fs] = true
			out = append(out, fs)
		}
	}
	return out
}

// FrameIntervals enumerates the supported frame periods for a size.
func (d *Device) FrameIntervals(width, height uint32) []FrameInterval {
	seen := make(map[FrameInterval]bool)
	var out []FrameInterval
	for _, f := range format.All() {
		if f.Width != width || f.Height != height {
			continue
		}
		fi := FrameInterval{Numerator: f.FPSDen, Denominator: f.FPSNum}
		if !seen[fi] {
			seen[fi] = true
			out = append(out, fi)
		}
	}
	return out
}

// Handle is one open consumer connection.
type Handle struct {
	dev    *Device
	client *stream.Client
}

// pixFormat builds the wire description of f under the current signal
// and overrides.
func (h *Handle) pixFormat(f *format.Format) PixFormat {
	snap := h.dev.snapshot()
	rt := h.dev.runtime.Load()
	return PixFormat{
		Width:        f.Width,
		Height:       f.Height,
		PixelFormat:  "YUYV",
		BytesPerLine: f.Width * 2,
		SizeImage:    uint32(f.FrameSize),
		Interlaced:   f.Interlaced,
		Colorspace:   MapColorspace(snap.Colorimetry),
		XferFunc:     MapXferFunc(snap.EOTF, rt.ForceEOTF),
		YCbCrEnc:     MapYCbCrEnc(snap.Colorimetry),
		Quantization: MapQuantization(snap.Colorimetry, rt.ForceQuant),
	}
}

// Format returns the handle's negotiated format.
func (h *Handle) Format() PixFormat {
	return h.pixFormat(h.client.Format())
}

// TryFormat reports what SetFormat would negotiate for the requested
// size without committing to it. Unknown sizes adjust to the detected
// mode, or the fallback when unlocked.
func (h *Handle) TryFormat(width, height uint32) PixFormat {
	return h.pixFormat(h.match(width, height))
}

// SetFormat negotiates the handle's frame layout.
func (h *Handle) SetFormat(width, height uint32) (PixFormat, error) {
	f := h.match(width, height)
	if err := h.client.SetFormat(f); err != nil {
		return PixFormat{}, err
	}
	return h.pixFormat(f), nil
}

// match finds a catalog entry with the requested visible size,
// preferring the currently detected mode when it fits.
func (h *Handle) match(width, height uint32) *format.Format {
	snap := h.dev.snapshot()
	if snap.Format != nil && snap.Format.Width == width && snap.Format.Height == height {
		return snap.Format
	}
	all := format.All()
	for i := range all {
		if all[i].Width == width && all[i].Height == height {
			return &all[i]
		}
	}
	if snap.Format != nil {
		return snap.Format
	}
	return format.Default()
}

// Queue submits a buffer for filling.
func (h *Handle) Queue(buf []byte) error {
	if len(buf) == 0 {
		return ErrInvalidArgument
	}
	if err := h.client.Queue(buf); err != nil {
		if errors.Is(err, stream.ErrBufferTooSmall) {
			return ErrInvalidArgument
		}
		return err
	}
	return nil
}

// Dequeue waits for the next completed buffer.
func (h *Handle) Dequeue(ctx context.Context) (stream.Buffer, error) {
	return h.client.Dequeue(ctx)
}

// StreamOn starts delivery to this handle.
func (h *Handle) StreamOn() error { return h.client.StartStreaming() }

// StreamOff stops delivery and flushes queued buffers.
func (h *Handle) StreamOff() error { return h.client.StopStreaming() }

// QueryTimings returns the detected mode.
func (h *Handle) QueryTimings() (Timings, error) {
	snap := h.dev.snapshot()
	if !snap.Locked {
		return Timings{}, ErrNoSignal
	}
	t := Timings{
		Width:      snap.Width,
		Height:     snap.Height,
		TimingH:    snap.TimingH,
		TimingV:    snap.TimingV,
		Interlaced: snap.Interlaced,
	}
	if snap.Format != nil {
		t.Mode = snap.Format.Name
		t.FPSNum = snap.Format.FPSNum
		t.FPSDen = snap.Format.FPSDen
	}
	return t, nil
}

// SetTimings always fails: the receiver follows the source, timings
// cannot be forced.
func (h *Handle) SetTimings(Timings) error { return ErrNotSupported }

// Close releases the handle; queued buffers come back cancelled.
func (h *Handle) Close() error { return h.client.Close() }
