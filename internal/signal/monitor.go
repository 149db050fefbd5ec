// Package signal polls the card's ARM MCU for HDMI status and runs the
// cable-presence / no-signal / locked state machine. It owns the device
// state (current format, lock flag, colorimetry) and decides when the
// DMA engine needs a resync.
package signal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Nakildias/sc0710/internal/events"
	"github.com/Nakildias/sc0710/internal/format"
	"github.com/Nakildias/sc0710/internal/metrics"
	"github.com/Nakildias/sc0710/pkg/hw/iic"
	"github.com/Nakildias/sc0710/pkg/hw/regs"
)

// State is the monitor's view of the HDMI input.
type State int

const (
	// StateNoDevice means no cable seated, confirmed by the
	// no-timing debounce.
	StateNoDevice State = iota
	// StateNoSignal means a cable is physically present but the
	// receiver has no sync.
	StateNoSignal
	// StateLocked means a signal is locked and timings are valid.
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateNoSignal:
		return "no_signal"
	default:
		return "no_device"
	}
}

// Colorimetry as reported by the MCU.
type Colorimetry int

const (
	ColorimetryUndefined Colorimetry = iota
	ColorimetryBT709
	ColorimetryBT601
	ColorimetryBT2020
)

func (c Colorimetry) String() string {
	switch c {
	case ColorimetryBT601:
		return "bt601"
	case ColorimetryBT709:
		return "bt709"
	case ColorimetryBT2020:
		return "bt2020"
	default:
		return "undefined"
	}
}

// Colorspace as reported by the MCU.
type Colorspace int

const (
	ColorspaceUndefined Colorspace = iota
	ColorspaceYCbCr422
	ColorspaceYCbCr444
	ColorspaceRGB444
)

// EOTF transfer function as reported by the MCU.
type EOTF int

const (
	EOTFSDR EOTF = iota
	eotfReserved
	EOTFPQ
	EOTFHLG
)

func (c Colorspace) String() string {
	switch c {
	case ColorspaceYCbCr422:
		return "ycbcr422"
	case ColorspaceYCbCr444:
		return "ycbcr444"
	case ColorspaceRGB444:
		return "rgb444"
	default:
		return "undefined"
	}
}

func (e EOTF) String() string {
	switch e {
	case EOTFPQ:
		return "pq"
	case EOTFHLG:
		return "hlg"
	default:
		return "sdr"
	}
}

// Procamp holds the picture controls read back from the MCU.
type Procamp struct {
	Brightness uint8
	Contrast   uint8
	Saturation uint8
	Hue        int8
}

// Snapshot is an immutable copy of the device state.
type Snapshot struct {
	State          State
	Locked         bool
	CableConnected bool
	Format         *format.Format // nil unless locked and cataloged
	LastFormat     *format.Format // last known good, for placeholder sizing
	TimingH        uint32
	TimingV        uint32
	Width          uint32
	Height         uint32
	Interlaced     bool
	Colorimetry    Colorimetry
	Colorspace     Colorspace
	EOTF           EOTF
	RateX100       uint32
}

// Config wires a Monitor.
type Config struct {
	Transport *iic.Transport
	Lock      *sync.Mutex // the signal lock, shared with Transport
	Bus       *events.Bus
	Logger    *slog.Logger

	// Resync is invoked, with the signal lock released, after a
	// lock or timing-change transition has stabilized.
	Resync func()

	Stabilization     time.Duration // settle delay before Resync
	NoTimingThreshold int           // consecutive all-zero polls before no-device
	PollInterval      time.Duration
}

// Monitor runs the signal state machine. All mutable fields are guarded
// by the shared signal lock.
type Monitor struct {
	tr     *iic.Transport
	mu     *sync.Mutex
	bus    *events.Bus
	log    *slog.Logger
	resync func()

	stabilization time.Duration
	threshold     int
	interval      time.Duration
	sleep         func(time.Duration) // test seam

	// guarded by mu
	state         State
	fmt           *format.Format
	lastFmt       *format.Format
	timingH       uint32
	timingV       uint32
	width         uint32
	height        uint32
	interlaced    bool
	colorimetry   Colorimetry
	colorspace    Colorspace
	eotf          EOTF
	rateX100      uint32
	noTimingCount int
}

// New creates a Monitor. Config.Lock must be the same mutex the
// Transport serializes on.
func New(cfg Config) *Monitor {
	if cfg.Stabilization <= 0 {
		cfg.Stabilization = 150 * time.Millisecond
	}
	if cfg.NoTimingThreshold <= 0 {
		cfg.NoTimingThreshold = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	return &Monitor{
		tr:            cfg.Transport,
		mu:            cfg.Lock,
		bus:           cfg.Bus,
		log:           cfg.Logger,
		resync:        cfg.Resync,
		stabilization: cfg.Stabilization,
		threshold:     cfg.NoTimingThreshold,
		interval:      cfg.PollInterval,
		sleep:         time.Sleep,
	}
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Poll(); err != nil {
				m.log.Debug("status poll failed", "error", err)
			}
		}
	}
}

// Snapshot returns a copy of the device state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:          m.state,
		Locked:         m.state == StateLocked,
		CableConnected: m.state != StateNoDevice,
		Format:         m.fmt,
		LastFormat:     m.lastFmt,
		TimingH:        m.timingH,
		TimingV:        m.timingV,
		Width:          m.width,
		Height:         m.height,
		Interlaced:     m.interlaced,
		Colorimetry:    m.colorimetry,
		Colorspace:     m.colorspace,
		EOTF:           m.eotf,
		RateX100:       m.rateX100,
	}
}

// Poll performs one status query and advances the state machine. Bus
// errors are returned for logging only; the state keeps its previous
// value and the next poll retries.
func (m *Monitor) Poll() error {
	m.mu.Lock()

	b, err := m.tr.WriteReadLocked(regs.MCUAddr, 0x00, 0x1a)
	if err != nil {
		m.mu.Unlock()
		recordBusError(err)
		return err
	}
	metrics.RecordBusTransaction("ok")

	wasLocked := m.state == StateLocked

	if b[0x08] != 0 {
		needResync := m.decodeLocked(b, wasLocked)
		metrics.RecordPoll(StateLocked.String())
		metrics.SetLocked(true)
		if needResync {
			// Deliberately not held across the settle sleep
			// and the DMA teardown.
			m.mu.Unlock()
			m.sleep(m.stabilization)
			if m.resync != nil {
				m.resync()
			}
			return nil
		}
		m.mu.Unlock()
		return nil
	}

	m.decodeUnlocked(b, wasLocked)
	metrics.RecordPoll(m.state.String())
	metrics.SetLocked(false)
	m.mu.Unlock()
	return nil
}

// decodeLocked updates state from a lock-asserting status block and
// reports whether a resync transition fired. Caller holds the lock.
func (m *Monitor) decodeLocked(b []byte, wasLocked bool) bool {
	newV := uint32(b[0x05])<<8 | uint32(b[0x04])
	newH := uint32(b[0x07])<<8 | uint32(b[0x06])
	newRate := uint32(b[0x11])<<8 | uint32(b[0x10])

	timingChanged := false
	if wasLocked && m.timingH > 0 && m.timingV > 0 {
		if newH != m.timingH || newV != m.timingV || newRate != m.rateX100 {
			timingChanged = true
			m.log.Info("hdmi timing changed",
				"from_h", m.timingH, "from_v", m.timingV,
				"to_h", newH, "to_v", newV)
		}
	}

	m.state = StateLocked
	m.noTimingCount = 0
	m.width = uint32(b[0x0b])<<8 | uint32(b[0x0a])
	m.height = uint32(b[0x09])<<8 | uint32(b[0x08])
	m.timingH = newH
	m.timingV = newV
	m.rateX100 = newRate

	switch (b[0x0d] & 0x30) >> 4 {
	case 0x1:
		m.colorimetry = ColorimetryBT709
	case 0x2:
		m.colorimetry = ColorimetryBT601
	case 0x3:
		m.colorimetry = ColorimetryBT2020
	default:
		m.colorimetry = ColorimetryUndefined
	}

	switch b[0x0f] {
	case 0x0:
		m.colorspace = ColorspaceYCbCr422
	case 0x1:
		m.colorspace = ColorspaceYCbCr444
	case 0x2:
		m.colorspace = ColorspaceRGB444
	default:
		m.colorspace = ColorspaceUndefined
	}

	m.eotf = EOTF(b[0x0e] & 0x3)

	m.interlaced = b[0x0d]&0x01 != 0
	if m.interlaced {
		// The MCU reports field height for interlaced modes.
		m.height *= 2
	}

	// The catalog walk is cheap but pointless while a stable lock
	// just repeats the same tuple every 200ms.
	if !wasLocked || timingChanged {
		m.fmt = format.FindByTimingAndRate(m.timingH, m.timingV, m.rateX100)
		if m.fmt != nil {
			m.lastFmt = m.fmt
		} else {
			m.log.Warn("timing not in catalog",
				"timing_h", m.timingH, "timing_v", m.timingV,
				"rate_x100", m.rateX100)
		}
	}

	if !wasLocked {
		m.log.Info("hdmi signal locked",
			"mode", formatName(m.fmt),
			"width", m.width, "height", m.height)
		m.bus.Publish(events.SignalLockedEvent{
			Mode:      formatName(m.fmt),
			TimingH:   m.timingH,
			TimingV:   m.timingV,
			Width:     m.width,
			Height:    m.height,
			Timestamp: now(),
		})
	} else if timingChanged {
		m.bus.Publish(events.TimingChangedEvent{
			Mode:      formatName(m.fmt),
			TimingH:   m.timingH,
			TimingV:   m.timingV,
			Timestamp: now(),
		})
	}

	return !wasLocked || timingChanged
}

// decodeUnlocked handles a status block without lock. Caller holds the
// lock.
func (m *Monitor) decodeUnlocked(b []byte, wasLocked bool) {
	m.fmt = nil
	m.width = 0
	m.height = 0
	m.interlaced = false
	m.colorimetry = ColorimetryUndefined
	m.colorspace = ColorspaceUndefined
	m.eotf = EOTFSDR
	m.rateX100 = 0

	hint := uint32(b[0x04]) | uint32(b[0x05])<<8 |
		uint32(b[0x06])<<16 | uint32(b[0x07])<<24
	m.timingH = 0
	m.timingV = 0

	if hint != 0 {
		// Cable seated, receiver just has no sync yet.
		m.noTimingCount = 0
		if m.state != StateNoSignal {
			m.state = StateNoSignal
			if wasLocked {
				m.log.Info("hdmi signal lost")
				m.bus.Publish(events.SignalLostEvent{Timestamp: now()})
			}
		}
		return
	}

	m.noTimingCount++
	if m.noTimingCount < m.threshold {
		// Marginal modes flap between lock and nothing; stay
		// optimistic until the counter confirms.
		if wasLocked {
			m.state = StateNoSignal
			m.log.Info("hdmi signal lost")
			m.bus.Publish(events.SignalLostEvent{Timestamp: now()})
		}
		return
	}

	if m.state != StateNoDevice {
		m.state = StateNoDevice
		m.log.Info("hdmi cable removed", "polls", m.noTimingCount)
		m.bus.Publish(events.CableRemovedEvent{Timestamp: now()})
	}
}

// ReadRawBlock dumps n bytes of an MCU status block, for the debug
// endpoints. Serialized against polling by the transport's lock.
func (m *Monitor) ReadRawBlock(sub byte, n int) ([]byte, error) {
	b, err := m.tr.WriteRead(regs.MCUAddr, sub, n)
	if err != nil {
		recordBusError(err)
		return nil, err
	}
	metrics.RecordBusTransaction("ok")
	return b, nil
}

// ReadProcamp queries the picture controls.
func (m *Monitor) ReadProcamp() (Procamp, error) {
	b, err := m.tr.WriteRead(regs.MCUAddr, 0x12, 5)
	if err != nil {
		recordBusError(err)
		return Procamp{}, err
	}
	metrics.RecordBusTransaction("ok")
	return Procamp{
		Brightness: b[1],
		Contrast:   b[2],
		Saturation: b[3],
		Hue:        int8(b[4]),
	}, nil
}

func recordBusError(err error) {
	switch {
	case errors.Is(err, iic.ErrAckTimeout):
		metrics.RecordBusTransaction("ack_timeout")
	case errors.Is(err, iic.ErrReadTimeout):
		metrics.RecordBusTransaction("read_timeout")
	case errors.Is(err, iic.ErrBadStatus):
		metrics.RecordBusTransaction("bad_status")
	default:
		metrics.RecordBusTransaction("error")
	}
}

func formatName(f *format.Format) string {
	if f == nil {
		return ""
	}
	return f.Name
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
