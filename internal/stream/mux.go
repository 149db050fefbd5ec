// Package stream fans captured frames out to any number of independent
// consumers and keeps delivery alive when no signal is present by
// synthesizing placeholder frames on a timer.
package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/dma"
	"github.com/Nakildias/sc0710/internal/format"
	"github.com/Nakildias/sc0710/internal/metrics"
	"github.com/Nakildias/sc0710/internal/render"
	"github.com/Nakildias/sc0710/internal/signal"
)

// Config wires a Mux.
type Config struct {
	Manager  *dma.Manager
	Snapshot func() signal.Snapshot
	Runtime  *config.RuntimeStore
	Logger   *slog.Logger

	// PlaceholderFPS is the synthetic frame cadence while unlocked.
	PlaceholderFPS int
}

// Mux multiplexes one DMA channel's frames to N clients. It implements
// dma.Quiescer so the manager can park placeholder delivery during a
// resync.
type Mux struct {
	mgr      *dma.Manager
	snapshot func() signal.Snapshot
	runtime  *config.RuntimeStore
	log      *slog.Logger
	interval time.Duration

	channels []*muxChannel
	nextID   uint64
	idMu     sync.Mutex
}

// muxChannel holds per-channel client membership and the placeholder
// timer. clientsMu protects membership only and is never held across a
// sleep or register wait; deliverMu serializes timer ticks against
// Quiesce.
type muxChannel struct {
	nr int

	clientsMu sync.Mutex
	clients   map[uint64]*Client

	deliverMu sync.Mutex
	stop      chan struct{}
	ticking   sync.WaitGroup
	running   bool

	seq uint64 // placeholder sequence, guarded by deliverMu
}

// New creates a Mux over every channel the manager drives.
func New(cfg Config) *Mux {
	if cfg.PlaceholderFPS <= 0 {
		cfg.PlaceholderFPS = 30
	}
	m := &Mux{
		mgr:      cfg.Manager,
		snapshot: cfg.Snapshot,
		runtime:  cfg.Runtime,
		log:      cfg.Logger,
		interval: time.Second / time.Duration(cfg.PlaceholderFPS),
	}
	for _, ch := range cfg.Manager.Channels() {
		m.channels = append(m.channels, &muxChannel{
			nr:      ch.Nr(),
			clients: make(map[uint64]*Client),
		})
	}
	return m
}

// Open creates a client on channel chn, negotiated to the detected
// format if locked, the fallback otherwise.
func (m *Mux) Open(chn int) *Client {
	mc := m.channel(chn)
	if mc == nil {
		return nil
	}

	f := m.snapshot().Format
	if f == nil {
		f = format.Default()
	}

	m.idMu.Lock()
	m.nextID++
	id := m.nextID
	m.idMu.Unlock()

	c := &Client{
		id:   id,
		chn:  chn,
		mux:  m,
		fmt:  f,
		done: make(chan Buffer, completedDepth),
	}

	mc.clientsMu.Lock()
	mc.clients[id] = c
	mc.clientsMu.Unlock()

	m.log.Debug("client opened", "channel", chn, "client", id)
	return c
}

// OnFrame is the sink for DMA-completed frames; wire it to
// dma.Channel.Service.
func (m *Mux) OnFrame(chn int, seq uint64, data []byte) {
	mc := m.channel(chn)
	if mc == nil {
		return
	}

	delivered := false
	for _, c := range mc.snapshotClients() {
		buf := c.popBuffer()
		if buf == nil {
			metrics.RecordDroppedFrame()
			continue
		}
		n := copy(buf, data)
		if c.complete(Buffer{
			Data:      buf[:n],
			Sequence:  seq,
			Source:    SourceCapture,
			Timestamp: time.Now(),
		}) {
			delivered = true
		} else {
			metrics.RecordDroppedFrame()
		}
	}
	if delivered {
		metrics.RecordFrame(SourceCapture.String())
	}
}

// Quiesce blocks until any in-flight placeholder tick on channel chn
// has finished, then holds delivery parked until Resume.
func (m *Mux) Quiesce(chn int) {
	if mc := m.channel(chn); mc != nil {
		mc.deliverMu.Lock()
	}
}

// Resume re-arms placeholder delivery after Quiesce.
func (m *Mux) Resume(chn int) {
	if mc := m.channel(chn); mc != nil {
		mc.deliverMu.Unlock()
	}
}

// StreamingClients counts live streamers across all channels.
func (m *Mux) StreamingClients() int {
	n := 0
	for _, mc := range m.channels {
		for _, c := range mc.snapshotClients() {
			if c.Streaming() {
				n++
			}
		}
	}
	return n
}

// Shutdown stops every channel's timer. Clients are left to close
// themselves.
func (m *Mux) Shutdown() {
	for _, mc := range m.channels {
		mc.stopTimer()
	}
}

func (m *Mux) channel(chn int) *muxChannel {
	if chn < 0 || chn >= len(m.channels) {
		return nil
	}
	return m.channels[chn]
}

// streamerStarted handles the first-streamer transition: spin up real
// DMA when a format is locked, and always start the placeholder timer.
func (m *Mux) streamerStarted(c *Client) {
	mc := m.channel(c.chn)
	ch := m.mgr.Channel(c.chn)
	if mc == nil || ch == nil {
		return
	}

	if ch.AddStreamer() == 1 {
		if m.snapshot().Locked {
			m.mgr.EnsureRunning(c.chn)
		}
		mc.startTimer(m)
	}
	metrics.SetStreamingClients(m.StreamingClients())
	m.log.Info("streaming started",
		"channel", c.chn, "client", c.id, "streamers", ch.Streaming())
}

// streamerStopped handles the last-streamer transition: cancel the
// timer synchronously, then stop hardware.
func (m *Mux) streamerStopped(c *Client) {
	mc := m.channel(c.chn)
	ch := m.mgr.Channel(c.chn)
	if mc == nil || ch == nil {
		return
	}

	if ch.RemoveStreamer() == 0 {
		// Timer first: a tick must never fire into a channel
		// whose hardware is being torn down.
		mc.stopTimer()
		m.mgr.StopChannel(c.chn)
	}
	metrics.SetStreamingClients(m.StreamingClients())
	m.log.Info("streaming stopped",
		"channel", c.chn, "client", c.id, "streamers", ch.Streaming())
}

func (m *Mux) removeClient(c *Client) {
	mc := m.channel(c.chn)
	if mc == nil {
		return
	}
	mc.clientsMu.Lock()
	delete(mc.clients, c.id)
	mc.clientsMu.Unlock()
	m.log.Debug("client closed", "channel", c.chn, "client", c.id)
}

func (mc *muxChannel) snapshotClients() []*Client {
	mc.clientsMu.Lock()
	defer mc.clientsMu.Unlock()
	out := make([]*Client, 0, len(mc.clients))
	for _, c := range mc.clients {
		out = append(out, c)
	}
	return out
}

func (mc *muxChannel) startTimer(m *Mux) {
	mc.clientsMu.Lock()
	if mc.running {
		mc.clientsMu.Unlock()
		return
	}
	mc.running = true
	mc.stop = make(chan struct{})
	mc.clientsMu.Unlock()

	mc.ticking.Add(1)
	go func() {
		defer mc.ticking.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-mc.stop:
				return
			case <-ticker.C:
				mc.tick(m)
			}
		}
	}()
}

// stopTimer cancels the delivery timer and blocks until any in-flight
// tick has completed.
func (mc *muxChannel) stopTimer() {
	mc.clientsMu.Lock()
	if !mc.running {
		mc.clientsMu.Unlock()
		return
	}
	mc.running = false
	close(mc.stop)
	mc.clientsMu.Unlock()

	mc.ticking.Wait()
}

// tick delivers one placeholder frame to every streaming client, unless
// a real signal is locked, in which case the DMA completion path owns
// delivery and the tick just reschedules.
func (mc *muxChannel) tick(m *Mux) {
	mc.deliverMu.Lock()
	defer mc.deliverMu.Unlock()

	snap := m.snapshot()
	if snap.Locked {
		return
	}

	kind := render.StatusNoSignal
	if !snap.CableConnected {
		kind = render.StatusNoDevice
	}
	rt := m.runtime.Load()

	delivered := false
	for _, c := range mc.snapshotClients() {
		buf := c.popBuffer()
		if buf == nil {
			continue
		}
		f := c.Format()
		if len(buf) < f.FrameSize {
			// Queued before a renegotiation to a larger mode;
			// never write past what the consumer gave us.
			c.complete(Buffer{Data: buf, Err: ErrBufferTooSmall, Timestamp: time.Now()})
			continue
		}
		w, h := int(f.Width), int(f.Height)
		if rt.StatusImages {
			src := render.StatusFrame(kind, w, h)
			copy(buf, src)
		} else {
			render.Fill(buf[:f.FrameSize], w, h, render.FillColorBars)
		}
		mc.seq++
		if c.complete(Buffer{
			Data:      buf[:f.FrameSize],
			Sequence:  mc.seq,
			Source:    SourcePlaceholder,
			Timestamp: time.Now(),
		}) {
			delivered = true
		}
	}
	if delivered {
		metrics.RecordFrame(SourcePlaceholder.String())
	}
}
