// Package engine assembles the capture pipeline: register transport,
// signal monitor, DMA manager, stream multiplexer and the capture
// device contract, against either real mapped BARs or the simulated
// card.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Nakildias/sc0710/internal/capture"
	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/dma"
	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/format"
	"github.com/Nakildias/sc0710/internal/logging"
	"github.com/Nakildias/sc0710/internal/signal"
	"github.com/Nakildias/sc0710/internal/stream"
	"github.com/Nakildias/sc0710/pkg/hw/iic"
	"github.com/Nakildias/sc0710/pkg/hw/mmio"
	"github.com/Nakildias/sc0710/pkg/hw/simcard"
)

// videoChannels on this card. The second DMA channel carries audio and
// is not driven yet.
const videoChannels = 1

// serviceInterval is how often the completion counters are scanned.
const serviceInterval = 2 * time.Millisecond

// Engine owns the assembled pipeline.
type Engine struct {
	opts    *config.Options
	runtime *config.RuntimeStore
	bus     *events.Bus

	monitor *signal.Monitor
	manager *dma.Manager
	mux     *stream.Mux
	device  *capture.Device

	sim  *simcard.Card // non-nil in simulate mode
	bars []*mmio.BAR

	log    *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New maps the hardware (or spins up the simulated card) and wires the
// pipeline. Call Run to start it.
func New(opts *config.Options, runtime *config.RuntimeStore, bus *events.Bus) (*Engine, error) {
	e := &Engine{
		opts:    opts,
		runtime: runtime,
		bus:     bus,
		log:     logging.GetLogger("engine"),
	}

	var bar0, bar1 mmio.Region
	switch {
	case opts.Simulate:
		e.log.Info("running against simulated card")
		e.sim = simcard.New()
		bar0, bar1 = e.sim, e.sim
	case opts.PCIAddress == "":
		return nil, fmt.Errorf("no PCI address configured; pass --pci-address or --simulate")
	default:
		b0, err := mmio.MapBAR(opts.PCIAddress, 0)
		if err != nil {
			return nil, fmt.Errorf("map BAR0: %w", err)
		}
		b1, err := mmio.MapBAR(opts.PCIAddress, 1)
		if err != nil {
			b0.Close()
			return nil, fmt.Errorf("map BAR1: %w", err)
		}
		e.bars = []*mmio.BAR{b0, b1}
		bar0, bar1 = b0, b1
		e.log.Info("mapped device", "pci_address", opts.PCIAddress,
			"bar0_size", b0.Size(), "bar1_size", b1.Size())
	}

	signalLock := &sync.Mutex{}
	transport := iic.New(bar0, signalLock, logging.GetLogger("transport"))

	e.manager = dma.New(dma.Config{
		BAR0:     bar0,
		BAR1:     bar1,
		Logger:   logging.GetLogger("dma"),
		Bus:      bus,
		Format:   e.currentFormat,
		Channels: videoChannels,
	})

	e.monitor = signal.New(signal.Config{
		Transport:         transport,
		Lock:              signalLock,
		Bus:               bus,
		Logger:            logging.GetLogger("signal"),
		Resync:            e.manager.Resync,
		Stabilization:     time.Duration(opts.StabilizationDelayMs) * time.Millisecond,
		NoTimingThreshold: opts.NoTimingPollThreshold,
		PollInterval:      time.Duration(opts.PollIntervalMs) * time.Millisecond,
	})

	e.mux = stream.New(stream.Config{
		Manager:        e.manager,
		Snapshot:       e.monitor.Snapshot,
		Runtime:        runtime,
		Logger:         logging.GetLogger("stream"),
		PlaceholderFPS: opts.PlaceholderFPS,
	})
	e.manager.SetQuiescer(e.mux)

	e.device = capture.NewDevice(e.mux, e.monitor.Snapshot, runtime,
		videoChannels, logging.GetLogger("engine"))

	return e, nil
}

// currentFormat is the manager's view of the detected mode. The monitor
// is wired after the manager, hence the indirection.
func (e *Engine) currentFormat() *format.Format {
	if e.monitor == nil {
		return nil
	}
	return e.monitor.Snapshot().Format
}

// Device returns the capture contract.
func (e *Engine) Device() *capture.Device { return e.device }

// Monitor returns the signal monitor.
func (e *Engine) Monitor() *signal.Monitor { return e.monitor }

// Mux returns the stream multiplexer.
func (e *Engine) Mux() *stream.Mux { return e.mux }

// Sim returns the simulated card, nil on real hardware.
func (e *Engine) Sim() *simcard.Card { return e.sim }

// Run starts the poll and service loops. It does not block.
func (e *Engine) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.monitor.Run(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.serviceLoop(ctx)
	}()

	e.log.Info("engine started",
		"poll_interval_ms", e.opts.PollIntervalMs,
		"placeholder_fps", e.opts.PlaceholderFPS)
}

// serviceLoop scans DMA completion counters and fans finished frames
// out to clients. Stands in for the card's completion interrupt.
func (e *Engine) serviceLoop(ctx context.Context) {
	ticker := time.NewTicker(serviceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ch := range e.manager.Channels() {
				ch.Service(e.mux.OnFrame)
			}
		}
	}
}

// Shutdown stops the loops and releases the hardware.
func (e *Engine) Shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.mux.Shutdown()
	e.manager.StopAll()
	for _, b := range e.bars {
		b.Close()
	}
	e.log.Info("engine stopped")
}
