package dma

import (
	"log/slog"
	"time"

	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/format"
	"github.com/Nakildias/sc0710/internal/metrics"
	"github.com/Nakildias/sc0710/pkg/hw/mmio"
	"github.com/Nakildias/sc0710/pkg/hw/regs"
)

// Quiescer pauses placeholder delivery for a channel while its hardware
// is being torn down. Quiesce blocks until any in-flight delivery tick
// has finished; Resume re-arms it. Implemented by the stream
// multiplexer.
type Quiescer interface {
	Quiesce(channel int)
	Resume(channel int)
}

// Config wires a Manager.
type Config struct {
	BAR0   mmio.Region
	BAR1   mmio.Region
	Logger *slog.Logger
	Bus    *events.Bus

	// Format reports the currently detected mode, nil when
	// unlocked. Usually signal.Monitor's view of the device state.
	Format func() *format.Format

	Channels int
}

// Manager drives every video DMA channel and owns the resync procedure.
type Manager struct {
	bar0     mmio.Region
	log      *slog.Logger
	bus      *events.Bus
	formatFn func() *format.Format
	channels []*Channel
	quiescer Quiescer

	quiesceDelay time.Duration
	restartDelay time.Duration
	sleep        func(time.Duration) // test seam
}

// New creates a Manager with cfg.Channels video channels.
func New(cfg Config) *Manager {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	m := &Manager{
		bar0:         cfg.BAR0,
		log:          cfg.Logger,
		bus:          cfg.Bus,
		formatFn:     cfg.Format,
		quiesceDelay: 2 * time.Millisecond,
		restartDelay: 10 * time.Millisecond,
		sleep:        time.Sleep,
	}
	for i := 0; i < cfg.Channels; i++ {
		m.channels = append(m.channels, newChannel(i, cfg.BAR1, cfg.Logger))
	}
	return m
}

// SetQuiescer installs the delivery-timer quiescer. Must be called
// before the first Resync; the multiplexer is constructed after the
// Manager, so this cannot be a Config field.
func (m *Manager) SetQuiescer(q Quiescer) { m.quiescer = q }

// Channels returns the managed channels.
func (m *Manager) Channels() []*Channel { return m.channels }

// Channel returns channel n, or nil if out of range.
func (m *Manager) Channel(n int) *Channel {
	if n < 0 || n >= len(m.channels) {
		return nil
	}
	return m.channels[n]
}

// EnsureRunning sizes and starts channel n for the current format. The
// multiplexer calls it when the first streamer arrives on an already
// locked signal. No-op without a format.
func (m *Manager) EnsureRunning(n int) {
	ch := m.Channel(n)
	if ch == nil {
		return
	}
	fmt := m.formatFn()
	if fmt == nil {
		return
	}
	ch.Resize(fmt.FrameSize)
	ch.Start()
}

// StopChannel halts channel n. The multiplexer calls it when the last
// streamer leaves.
func (m *Manager) StopChannel(n int) {
	if ch := m.Channel(n); ch != nil {
		ch.Stop()
	}
}

// Resync runs the full stop/quiesce/resize/restart sequence after a
// lock or timing change. It is a no-op without a detected format or
// without streaming clients; hardware register problems are logged and
// the sequence continues best-effort, since stopping halfway would
// leave the engine in a worse state than a sloppy restart.
func (m *Manager) Resync() {
	fmt := m.formatFn()
	if fmt == nil {
		m.log.Info("no format detected, skipping dma resync")
		return
	}

	hasStreamers := false
	wasRunning := false
	for _, ch := range m.channels {
		if ch.Streaming() > 0 {
			hasStreamers = true
		}
		if ch.State() == StateRunning {
			wasRunning = true
		}
	}
	if !hasStreamers {
		m.log.Info("no streaming clients, skipping dma resync")
		return
	}

	start := time.Now()
	m.log.Info("resynchronizing dma",
		"mode", fmt.Name, "was_running", wasRunning)

	for _, ch := range m.channels {
		if ch.State() != StateRunning {
			continue
		}

		ch.mu.Lock()
		ch.bar1.Write32(ch.regs.ControlW1C, 1)
		ch.mu.Unlock()
		m.sleep(m.quiesceDelay)

		// Delivery must be parked before the descriptors are
		// recycled under it.
		if m.quiescer != nil {
			m.quiescer.Quiesce(ch.nr)
		}

		ch.generation.Add(1)
		ch.mu.Lock()
		ch.quiesceResetLocked()
		ch.mu.Unlock()

		if m.quiescer != nil {
			m.quiescer.Resume(ch.nr)
		}
	}

	for _, ch := range m.channels {
		if ch.Streaming() > 0 {
			ch.Resize(fmt.FrameSize)
		}
	}

	// Re-arm toggle: the capture block refuses to restart while the
	// run flag stays set, so clear the aux latches and cycle it.
	m.bar0.Write32(regs.HDMIHeight, fmt.Height)
	m.bar0.Write32(regs.CaptureControl, regs.CaptureRun)
	m.bar0.Write32(regs.CaptureAuxA, 0)
	m.bar0.Write32(regs.CaptureAuxB, 0)
	m.bar0.Write32(regs.CaptureControl, regs.CaptureRunSet)
	m.bar0.Write32(regs.CaptureControl, regs.CaptureRun)
	m.sleep(m.restartDelay)

	restarted := false
	for _, ch := range m.channels {
		if ch.Streaming() > 0 {
			ch.Start()
			restarted = true
		}
	}

	elapsed := time.Since(start)
	m.log.Info("dma resync complete",
		"duration", elapsed, "restarted", restarted)
	metrics.RecordResync()
	m.bus.Publish(events.ResyncDoneEvent{
		DurationMs: elapsed.Milliseconds(),
		Restarted:  restarted,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// StopAll halts every channel, for shutdown.
func (m *Manager) StopAll() {
	for _, ch := range m.channels {
		ch.Stop()
	}
}
