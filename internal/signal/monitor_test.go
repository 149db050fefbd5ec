package signal

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/pkg/hw/iic"
	"github.com/Nakildias/sc0710/pkg/hw/simcard"
)

func newTestMonitor(t *testing.T) (*Monitor, *simcard.Card, *atomic.Int32) {
	t.Helper()
	card := simcard.New()
	lock := &sync.Mutex{}
	log := slog.Default()
	resyncs := &atomic.Int32{}
	m := New(Config{
		Transport:         iic.New(card, lock, log),
		Lock:              lock,
		Bus:               events.New(),
		Logger:            log,
		Resync:            func() { resyncs.Add(1) },
		NoTimingThreshold: 3,
	})
	m.sleep = func(time.Duration) {} // no stabilization wait in tests
	return m, card, resyncs
}

func lockedParams1080p60() simcard.SignalParams {
	return simcard.SignalParams{
		TimingH: 2200, TimingV: 1125,
		Width: 1920, Height: 1080,
		Colorimetry: 1, // BT.709
		RateX100:    6000,
	}
}

func TestPollLockTransition(t *testing.T) {
	m, card, resyncs := newTestMonitor(t)
	card.SetLocked(lockedParams1080p60())

	if err := m.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	snap := m.Snapshot()
	if snap.State != StateLocked || !snap.Locked {
		t.Fatalf("state = %v, want locked", snap.State)
	}
	if snap.Format == nil {
		t.Fatal("locked without a format")
	}
	if snap.Format.Name != "1920x1080p60" {
		t.Errorf("format = %s, want 1920x1080p60", snap.Format.Name)
	}
	if snap.Colorimetry != ColorimetryBT709 {
		t.Errorf("colorimetry = %v, want BT.709", snap.Colorimetry)
	}
	if got := resyncs.Load(); got != 1 {
		t.Errorf("resyncs = %d, want 1 on lock transition", got)
	}

	// A steady lock must not keep resyncing.
	if err := m.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := resyncs.Load(); got != 1 {
		t.Errorf("resyncs = %d after steady poll, want still 1", got)
	}
}

func TestPollTimingChange(t *testing.T) {
	m, card, resyncs := newTestMonitor(t)
	card.SetLocked(lockedParams1080p60())
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	card.SetLocked(simcard.SignalParams{
		TimingH: 4400, TimingV: 2250,
		Width: 3840, Height: 2160,
		RateX100: 6000,
	})
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	snap := m.Snapshot()
	if snap.Format == nil || snap.Format.Name != "3840x2160p60" {
		t.Fatalf("format after mode switch = %+v", snap.Format)
	}
	if got := resyncs.Load(); got != 2 {
		t.Errorf("resyncs = %d, want 2 (lock + timing change)", got)
	}
}

func TestRateHintDisambiguation(t *testing.T) {
	m, card, _ := newTestMonitor(t)
	// 1080p120 shares the 2200x1125 tuple with p30/p60.
	p := lockedParams1080p60()
	p.RateX100 = 12000
	card.SetLocked(p)

	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	snap := m.Snapshot()
	if snap.Format == nil || snap.Format.Name != "1920x1080p120" {
		t.Fatalf("format = %+v, want 1920x1080p120", snap.Format)
	}
}

func TestNoTimingDebounce(t *testing.T) {
	m, card, _ := newTestMonitor(t)
	card.SetLocked(lockedParams1080p60())
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	// Cable still seated, sync gone.
	card.SetUnlocked(true, 2200, 1125)
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	snap := m.Snapshot()
	if snap.State != StateNoSignal {
		t.Fatalf("state = %v, want no_signal while hints remain", snap.State)
	}
	if snap.Format != nil {
		t.Error("format must clear on unlock")
	}
	if snap.LastFormat == nil || snap.LastFormat.Name != "1920x1080p60" {
		t.Error("last known format must survive unlock")
	}

	// Cable pulled: two all-zero polls stay optimistic, the third
	// confirms removal.
	card.SetUnlocked(false, 0, 0)
	for i := 0; i < 2; i++ {
		if err := m.Poll(); err != nil {
			t.Fatal(err)
		}
		if got := m.Snapshot().State; got != StateNoSignal {
			t.Fatalf("state = %v after %d zero polls, want no_signal", got, i+1)
		}
	}
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	if got := m.Snapshot().State; got != StateNoDevice {
		t.Fatalf("state = %v after 3 zero polls, want no_device", got)
	}
}

func TestHintResetsDebounce(t *testing.T) {
	m, card, _ := newTestMonitor(t)

	card.SetUnlocked(false, 0, 0)
	m.Poll()
	m.Poll()

	// A hint poll resets the counter; two more zero polls must not
	// reach no-device.
	card.SetUnlocked(true, 1650, 750)
	m.Poll()
	card.SetUnlocked(false, 0, 0)
	m.Poll()
	m.Poll()
	if got := m.Snapshot().State; got != StateNoSignal {
		t.Fatalf("state = %v, counter should have reset", got)
	}
}

func TestBusErrorKeepsState(t *testing.T) {
	m, card, resyncs := newTestMonitor(t)
	card.SetLocked(lockedParams1080p60())
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	card.NoAck = true
	if err := m.Poll(); err == nil {
		t.Fatal("expected transport error")
	}
	snap := m.Snapshot()
	if snap.State != StateLocked || snap.Format == nil {
		t.Error("transient bus error must not disturb device state")
	}
	if got := resyncs.Load(); got != 1 {
		t.Errorf("resyncs = %d, want 1", got)
	}
}

func TestInterlacedDoublesHeight(t *testing.T) {
	m, card, _ := newTestMonitor(t)
	card.SetLocked(simcard.SignalParams{
		TimingH: 2200, TimingV: 562,
		Width: 1920, Height: 540,
		Interlaced: true,
		RateX100:   5994,
	})
	if err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	snap := m.Snapshot()
	if !snap.Interlaced {
		t.Error("interlaced flag not decoded")
	}
	if snap.Height != 1080 {
		t.Errorf("height = %d, want field height doubled to 1080", snap.Height)
	}
}

func TestEvents(t *testing.T) {
	m, card, _ := newTestMonitor(t)

	var mu sync.Mutex
	var got []string
	m.bus.Subscribe(func(e events.SignalLockedEvent) {
		mu.Lock()
		got = append(got, "locked:"+e.Mode)
		mu.Unlock()
	})
	m.bus.Subscribe(func(e events.SignalLostEvent) {
		mu.Lock()
		got = append(got, "lost")
		mu.Unlock()
	})

	card.SetLocked(lockedParams1080p60())
	m.Poll()
	card.SetUnlocked(true, 2200, 1125)
	m.Poll()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("events = %v, want locked then lost", got)
		case <-time.After(10 * time.Millisecond):
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0] != "locked:1920x1080p60" || got[1] != "lost" {
		t.Errorf("events = %v", got)
	}
}

func TestReadProcamp(t *testing.T) {
	m, card, _ := newTestMonitor(t)
	card.SetProcamp(0x80, 0x88, 0x90, -4)

	p, err := m.ReadProcamp()
	if err != nil {
		t.Fatalf("ReadProcamp: %v", err)
	}
	want := Procamp{Brightness: 0x80, Contrast: 0x88, Saturation: 0x90, Hue: -4}
	if p != want {
		t.Errorf("procamp = %+v, want %+v", p, want)
	}
}
