package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/dma"
	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/signal"
	"github.com/Nakildias/sc0710/internal/stream"
	"github.com/Nakildias/sc0710/pkg/hw/simcard"
)

func testOptions() *config.Options {
	return &config.Options{
		Simulate:              true,
		PollIntervalMs:        10,
		StabilizationDelayMs:  1,
		NoTimingPollThreshold: 3,
		PlaceholderFPS:        100,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	opts := testOptions()
	rt := config.NewRuntimeStore(config.RuntimeFromOptions(opts))
	e, err := New(opts, rt, events.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Shutdown)
	return e
}

func TestNewRequiresAddressOrSimulate(t *testing.T) {
	opts := testOptions()
	opts.Simulate = false
	rt := config.NewRuntimeStore(config.Runtime{})
	if _, err := New(opts, rt, events.New()); err == nil {
		t.Fatal("expected error without PCI address or simulate")
	}
}

func TestLockToStreamingPipeline(t *testing.T) {
	e := newTestEngine(t)

	e.Sim().SetLocked(simcard.SignalParams{
		TimingH: 2200, TimingV: 1125,
		Width: 1920, Height: 1080,
		Colorimetry: 1,
		RateX100:    6000,
	})

	h, err := e.Device().Open(0)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if err := h.StreamOn(); err != nil {
		t.Fatal(err)
	}

	// The poll detects the lock, stabilizes and resyncs; with a
	// streamer present the channel must come up running.
	if err := e.Monitor().Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := e.Monitor().Snapshot(); !got.Locked {
		t.Fatal("signal not locked after poll")
	}
	if st := e.manager.Channel(0).State(); st != dma.StateRunning {
		t.Fatalf("channel state = %v, want running after resync", st)
	}

	pf := h.Format()
	if pf.Width != 1920 || pf.Colorspace != "rec709" {
		t.Errorf("negotiated format = %+v", pf)
	}

	if err := h.StreamOff(); err != nil {
		t.Fatal(err)
	}
	if st := e.manager.Channel(0).State(); st != dma.StateStopped {
		t.Fatalf("channel state = %v, want stopped after last streamer", st)
	}
}

func TestSimulatedCaptureDelivery(t *testing.T) {
	e := newTestEngine(t)
	e.Sim().SetFrameInterval(time.Millisecond)
	e.Sim().SetLocked(simcard.SignalParams{
		TimingH: 2200, TimingV: 1125,
		Width: 1920, Height: 1080,
		Colorimetry: 1,
		RateX100:    6000,
	})
	if err := e.Monitor().Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !e.Monitor().Snapshot().Locked {
		t.Fatal("signal not locked after poll")
	}
	e.Run()

	h, err := e.Device().Open(0)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if err := h.StreamOn(); err != nil {
		t.Fatal(err)
	}

	size := int(h.Format().SizeImage)
	for i := 0; i < 2; i++ {
		if err := h.Queue(make([]byte, size)); err != nil {
			t.Fatal(err)
		}
	}

	// With the signal locked the card's DMA must feed real frames all
	// the way through to the client queue.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	buf, err := h.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if buf.Source != stream.SourceCapture {
		t.Errorf("source = %v, want capture while locked", buf.Source)
	}
	if len(buf.Data) != size {
		t.Errorf("frame size = %d, want %d", len(buf.Data), size)
	}
}

func TestPlaceholderPipeline(t *testing.T) {
	e := newTestEngine(t)
	e.Run()

	h, err := e.Device().Open(0)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if err := h.StreamOn(); err != nil {
		t.Fatal(err)
	}
	size := int(h.Format().SizeImage)
	if err := h.Queue(make([]byte, size)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	buf, err := h.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if buf.Source != stream.SourcePlaceholder {
		t.Errorf("source = %v, want placeholder with no signal", buf.Source)
	}
	if len(buf.Data) != size {
		t.Errorf("frame size = %d, want %d", len(buf.Data), size)
	}
}

func TestMonitorStateThroughEngine(t *testing.T) {
	e := newTestEngine(t)

	// Simulated card starts with an all-zero block: three polls
	// confirm no device.
	for i := 0; i < 3; i++ {
		if err := e.Monitor().Poll(); err != nil {
			t.Fatal(err)
		}
	}
	if got := e.Monitor().Snapshot().State; got != signal.StateNoDevice {
		t.Fatalf("state = %v, want no_device", got)
	}
}
