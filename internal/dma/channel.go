// Package dma owns the capture card's scatter-gather DMA engine: the
// per-channel descriptor arenas, hardware start/stop/resize, and the
// frame resync sequence the signal monitor triggers on lock and timing
// changes.
package dma

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Nakildias/sc0710/pkg/hw/mmio"
	"github.com/Nakildias/sc0710/pkg/hw/regs"
)

// RunState of a channel's hardware engine.
type RunState int32

const (
	StateStopped RunState = iota
	StateRunning
)

func (s RunState) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// descriptorsPerChannel is how many frame buffers a channel cycles
// through. Matches the table depth the hardware was captured using.
const descriptorsPerChannel = 4

// descriptor is one scatter-gather slot: a frame-sized host buffer plus
// the writeback markers the card stamps on completion.
type descriptor struct {
	buf []byte
	wbm [2]uint32
}

// Channel is one video capture pipeline. Hardware-touching fields are
// guarded by mu; the streaming refcount is shared with the stream
// multiplexer and is atomic so delivery paths never take mu.
type Channel struct {
	nr   int
	regs regs.ChannelRegs
	bar1 mmio.Region
	log  *slog.Logger

	mu    sync.Mutex
	state RunState
	chain []descriptor
	// completedLast mirrors the hardware completion counter so a
	// scan only walks descriptors finished since the previous one.
	completedLast uint32
	frameSize     int

	streaming atomic.Int32
	sequence  atomic.Uint64
	// generation fences descriptor scans across a resync: frames
	// observed under a stale generation are discarded, never
	// delivered.
	generation atomic.Uint64
}

func newChannel(nr int, bar1 mmio.Region, log *slog.Logger) *Channel {
	return &Channel{
		nr:   nr,
		regs: regs.VideoChannel(nr),
		bar1: bar1,
		log:  log.With("channel", nr),
	}
}

// Nr returns the channel number.
func (ch *Channel) Nr() int { return ch.nr }

// Streaming returns the current streaming client count.
func (ch *Channel) Streaming() int { return int(ch.streaming.Load()) }

// AddStreamer increments the streaming refcount and reports the new
// count.
func (ch *Channel) AddStreamer() int { return int(ch.streaming.Add(1)) }

// RemoveStreamer decrements the streaming refcount and reports the new
// count.
func (ch *Channel) RemoveStreamer() int { return int(ch.streaming.Add(-1)) }

// State returns the run state.
func (ch *Channel) State() RunState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Resize rebuilds the descriptor chain for frameSize byte frames. A
// running channel must be stopped first.
func (ch *Channel) Resize(frameSize int) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.resizeLocked(frameSize)
}

func (ch *Channel) resizeLocked(frameSize int) {
	if frameSize == ch.frameSize && len(ch.chain) == descriptorsPerChannel {
		return
	}
	ch.log.Info("rebuilding descriptor chain",
		"frame_size", frameSize, "descriptors", descriptorsPerChannel)
	ch.chain = make([]descriptor, descriptorsPerChannel)
	for i := range ch.chain {
		ch.chain[i].buf = make([]byte, frameSize)
	}
	ch.frameSize = frameSize
	ch.completedLast = 0
}

// Start programs the scatter-gather base and raises the run flag.
// Idempotent.
func (ch *Channel) Start() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.state == StateRunning {
		return
	}
	ch.programTableLocked()
	ch.bar1.Write32(ch.regs.Control, 1)
	ch.state = StateRunning
	ch.log.Info("dma started")
}

// Stop halts the engine via the write-1-to-clear control. Idempotent.
func (ch *Channel) Stop() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.state == StateStopped {
		return
	}
	ch.bar1.Write32(ch.regs.ControlW1C, 1)
	ch.state = StateStopped
	ch.log.Info("dma stopped")
}

// tableAddr is the bus address the scatter-gather table is presented
// at. The engine only needs it to be stable and channel-unique.
func (ch *Channel) tableAddr() uint64 {
	return 0x1_0000_0000 + uint64(ch.nr)<<20
}

func (ch *Channel) programTableLocked() {
	addr := ch.tableAddr()
	ch.bar1.Write32(ch.regs.SGStartHi, uint32(addr>>32))
	ch.bar1.Write32(ch.regs.SGStartLo, uint32(addr))
	ch.bar1.Write32(ch.regs.SGAdjacent, 0)

	// An emulated card cannot bus-master into our buffers; give it the
	// chain so it can stamp completions the way real hardware DMAs them.
	if att, ok := ch.bar1.(mmio.ChainAttacher); ok {
		att.AttachChain(ch.nr, &chainHandle{ch: ch, gen: ch.generation.Load()})
	}
}

// chainHandle implements mmio.FrameCompleter over the channel's current
// descriptor arena. Every table programming hands out a fresh handle;
// the generation pins it to the arena it was cut from.
type chainHandle struct {
	ch   *Channel
	gen  uint64
	next uint32 // card-side write cursor
}

func (h *chainHandle) CompleteNext(fill func(buf []byte)) bool {
	ch := h.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.generation.Load() != h.gen || ch.state != StateRunning || len(ch.chain) == 0 {
		return false
	}
	d := &ch.chain[int(h.next)%len(ch.chain)]
	fill(d.buf)
	d.wbm[0] = 1
	d.wbm[1] = h.next + 1
	h.next++
	return true
}

// quiesceReset clears writeback markers and resets the completion
// machinery after the engine has been halted. Caller holds mu.
func (ch *Channel) quiesceResetLocked() {
	for i := range ch.chain {
		ch.chain[i].wbm[0] = 0
		ch.chain[i].wbm[1] = 0
	}
	ch.completedLast = 0
	ch.bar1.Write32(ch.regs.CompletedCnt, 1)
	ch.programTableLocked()
	ch.state = StateStopped
}

// Service scans the completion counter and hands every newly finished
// frame to sink. Frames raced by a resync (generation moved during the
// scan) are dropped rather than delivered stale.
func (ch *Channel) Service(sink func(ch int, seq uint64, data []byte)) {
	gen := ch.generation.Load()

	ch.mu.Lock()
	if ch.state != StateRunning || len(ch.chain) == 0 {
		ch.mu.Unlock()
		return
	}
	completed := ch.bar1.Read32(ch.regs.CompletedCnt)
	last := ch.completedLast
	if completed == last {
		ch.mu.Unlock()
		return
	}
	n := int(completed - last)
	if n > len(ch.chain) {
		// Fell behind a full table rotation; deliver only the
		// most recent lap.
		n = len(ch.chain)
		last = completed - uint32(n)
	}

	type done struct {
		seq  uint64
		data []byte
	}
	var ready []done
	for i := 0; i < n; i++ {
		idx := int(last+uint32(i)) % len(ch.chain)
		d := &ch.chain[idx]
		if d.wbm[0] == 0 {
			continue
		}
		frame := make([]byte, len(d.buf))
		copy(frame, d.buf)
		d.wbm[0] = 0
		ready = append(ready, done{seq: ch.sequence.Add(1), data: frame})
	}
	ch.completedLast = completed
	ch.mu.Unlock()

	if ch.generation.Load() != gen {
		return
	}
	for _, f := range ready {
		sink(ch.nr, f.seq, f.data)
	}
}
