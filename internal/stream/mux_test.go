package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/dma"
	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/format"
	"github.com/Nakildias/sc0710/internal/render"
	"github.com/Nakildias/sc0710/internal/signal"
	"github.com/Nakildias/sc0710/pkg/hw/mmio"
)

// fakeSignal is a controllable stand-in for the monitor's snapshot.
type fakeSignal struct {
	mu   sync.Mutex
	snap signal.Snapshot
}

func (f *fakeSignal) get() signal.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSignal) set(s signal.Snapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

func newTestMux(t *testing.T) (*Mux, *dma.Manager, *fakeSignal) {
	t.Helper()
	sig := &fakeSignal{}
	sig.set(signal.Snapshot{State: signal.StateNoDevice})

	mgr := dma.New(dma.Config{
		BAR0:     mmio.NewMem(),
		BAR1:     mmio.NewMem(),
		Logger:   slog.Default(),
		Bus:      events.New(),
		Format:   func() *format.Format { return sig.get().Format },
		Channels: 1,
	})

	m := New(Config{
		Manager:        mgr,
		Snapshot:       sig.get,
		Runtime:        config.NewRuntimeStore(config.Runtime{StatusImages: true}),
		Logger:         slog.Default(),
		PlaceholderFPS: 100, // fast ticks for tests
	})
	mgr.SetQuiescer(m)
	t.Cleanup(m.Shutdown)
	return m, mgr, sig
}

func lockedSnap() signal.Snapshot {
	f := format.FindByTimingAndRate(2200, 1125, 6000)
	return signal.Snapshot{
		State:          signal.StateLocked,
		Locked:         true,
		CableConnected: true,
		Format:         f,
		LastFormat:     f,
	}
}

func TestOpenNegotiatesDetectedFormat(t *testing.T) {
	m, _, sig := newTestMux(t)

	c := m.Open(0)
	defer c.Close()
	if c.Format() != format.Default() {
		t.Errorf("unlocked open negotiated %v, want fallback", c.Format().Name)
	}

	sig.set(lockedSnap())
	c2 := m.Open(0)
	defer c2.Close()
	if c2.Format().Name != "1920x1080p60" {
		t.Errorf("locked open negotiated %v, want detected mode", c2.Format().Name)
	}
}

func TestQueueTooSmall(t *testing.T) {
	m, _, _ := newTestMux(t)
	c := m.Open(0)
	defer c.Close()

	if err := c.Queue(make([]byte, 16)); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("Queue(small) = %v, want ErrBufferTooSmall", err)
	}
	if err := c.Queue(make([]byte, c.Format().FrameSize)); err != nil {
		t.Errorf("Queue(exact) = %v", err)
	}
}

func TestStreamingRefcountDrivesDMA(t *testing.T) {
	m, mgr, sig := newTestMux(t)
	sig.set(lockedSnap())

	a := m.Open(0)
	b := m.Open(0)
	defer a.Close()
	defer b.Close()

	a.StartStreaming()
	if mgr.Channel(0).State() != dma.StateRunning {
		t.Fatal("first streamer on a locked signal must start DMA")
	}
	b.StartStreaming()

	a.StopStreaming()
	if mgr.Channel(0).State() != dma.StateRunning {
		t.Fatal("DMA must keep running while a streamer remains")
	}
	b.StopStreaming()
	if mgr.Channel(0).State() != dma.StateStopped {
		t.Fatal("last streamer leaving must stop DMA")
	}
}

func TestCaptureFanOut(t *testing.T) {
	m, _, sig := newTestMux(t)
	sig.set(lockedSnap())
	size := format.Default().FrameSize

	a := m.Open(0)
	b := m.Open(0)
	defer a.Close()
	defer b.Close()
	a.StartStreaming()
	b.StartStreaming()

	a.Queue(make([]byte, size))
	// b has no buffer queued: the frame is dropped for b only.

	frame := make([]byte, size)
	frame[0] = 0x42
	m.OnFrame(0, 7, frame)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := a.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.Source != SourceCapture || got.Sequence != 7 || got.Data[0] != 0x42 {
		t.Errorf("buffer = {src:%v seq:%d data[0]:%#x}", got.Source, got.Sequence, got.Data[0])
	}

	short, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := b.Dequeue(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("client without buffers got a frame: %v", err)
	}
}

func TestPlaceholderDelivery(t *testing.T) {
	m, _, _ := newTestMux(t)
	c := m.Open(0)
	defer c.Close()
	c.StartStreaming()

	size := c.Format().FrameSize
	c.Queue(make([]byte, size))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := c.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.Source != SourcePlaceholder {
		t.Errorf("source = %v, want placeholder", got.Source)
	}
	if len(got.Data) != size {
		t.Errorf("frame size = %d, want %d", len(got.Data), size)
	}

	// No cable at all: the no-device image.
	f := c.Format()
	want := render.StatusFrame(render.StatusNoDevice, int(f.Width), int(f.Height))
	if got.Data[0] != want[0] {
		// Not a byte-exact assertion; the two images share the
		// black background at the top-left corner.
		t.Errorf("frame[0] = %#x, want %#x", got.Data[0], want[0])
	}
}

func TestPlaceholderColorBarsToggle(t *testing.T) {
	m, _, _ := newTestMux(t)
	m.runtime.Store(config.Runtime{StatusImages: false})

	c := m.Open(0)
	defer c.Close()
	c.StartStreaming()

	f := c.Format()
	c.Queue(make([]byte, f.FrameSize))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := c.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	want := make([]byte, f.FrameSize)
	render.Fill(want, int(f.Width), int(f.Height), render.FillColorBars)
	for i := 0; i < 8; i++ {
		if got.Data[i] != want[i] {
			t.Fatalf("byte %d = %#x, want plain color bars", i, got.Data[i])
		}
	}
}

func TestPlaceholderMatchesNegotiatedSizeAfterSignalLoss(t *testing.T) {
	m, _, sig := newTestMux(t)
	f4k := format.FindByTimingAndRate(4400, 2250, 6000)
	sig.set(signal.Snapshot{
		State:          signal.StateLocked,
		Locked:         true,
		CableConnected: true,
		Format:         f4k,
		LastFormat:     f4k,
	})

	c := m.Open(0)
	defer c.Close()
	if c.Format() != f4k {
		t.Fatalf("open while locked negotiated %v, want %v", c.Format().Name, f4k.Name)
	}
	c.StartStreaming()

	// The source goes away but the client keeps its 4K layout; the
	// placeholder must fill what was negotiated, not the fallback.
	sig.set(signal.Snapshot{
		State:          signal.StateNoSignal,
		CableConnected: true,
		LastFormat:     f4k,
	})
	c.Queue(make([]byte, f4k.FrameSize))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := c.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.Err != nil {
		t.Fatalf("buffer err = %v", got.Err)
	}
	if got.Source != SourcePlaceholder {
		t.Errorf("source = %v, want placeholder", got.Source)
	}
	if len(got.Data) != f4k.FrameSize {
		t.Errorf("frame size = %d, want %d", len(got.Data), f4k.FrameSize)
	}
}

func TestPlaceholderRefusesUndersizedBuffer(t *testing.T) {
	m, _, _ := newTestMux(t)
	c := m.Open(0)
	defer c.Close()
	c.StartStreaming()

	// Park delivery so the renegotiation lands while the old-size
	// buffer is still queued.
	m.Quiesce(0)
	small := c.Format().FrameSize
	c.Queue(make([]byte, small))
	if err := c.SetFormat(format.FindByTimingAndRate(4400, 2250, 6000)); err != nil {
		t.Fatal(err)
	}
	m.Resume(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := c.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if !errors.Is(got.Err, ErrBufferTooSmall) {
		t.Errorf("buffer err = %v, want ErrBufferTooSmall", got.Err)
	}
	if len(got.Data) != small {
		t.Errorf("returned buffer length = %d, want untouched %d", len(got.Data), small)
	}
}

func TestNoPlaceholderWhileLocked(t *testing.T) {
	m, _, sig := newTestMux(t)
	sig.set(lockedSnap())

	c := m.Open(0)
	defer c.Close()
	c.StartStreaming()
	c.Queue(make([]byte, c.Format().FrameSize))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := c.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Error("placeholder timer delivered a frame while locked")
	}
}

func TestStopFlushesQueued(t *testing.T) {
	m, _, _ := newTestMux(t)
	c := m.Open(0)
	defer c.Close()
	c.StartStreaming()

	// Stop before the first tick can consume the buffer.
	m.Shutdown()
	c.Queue(make([]byte, c.Format().FrameSize))
	c.StopStreaming()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := c.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if !errors.Is(got.Err, ErrCancelled) {
		t.Errorf("flushed buffer err = %v, want ErrCancelled", got.Err)
	}
}

func TestCloseEndsDequeue(t *testing.T) {
	m, _, _ := newTestMux(t)
	c := m.Open(0)
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Dequeue after close = %v, want ErrClosed", err)
	}
	if err := c.Queue(make([]byte, 1<<22)); !errors.Is(err, ErrClosed) {
		t.Errorf("Queue after close = %v, want ErrClosed", err)
	}
}

func TestQuiesceBlocksDelivery(t *testing.T) {
	m, _, _ := newTestMux(t)
	c := m.Open(0)
	defer c.Close()
	c.StartStreaming()

	m.Quiesce(0)
	c.Queue(make([]byte, c.Format().FrameSize))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := c.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		m.Resume(0)
		t.Fatal("delivery ran while quiesced")
	}
	m.Resume(0)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	if _, err := c.Dequeue(ctx2); err != nil {
		t.Fatalf("delivery did not resume: %v", err)
	}
}
