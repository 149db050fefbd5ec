// Package mmio provides 32-bit register access to a memory-mapped PCIe BAR.
//
// All hardware-touching code in this module goes through the Region
// interface, so the full capture engine can run against either a real
// card (mapped via sysfs resource files) or a simulated one.
package mmio

import "sync"

// Region is a window of 32-bit device registers.
//
// Offsets are byte offsets from the start of the BAR and must be
// 4-byte aligned. Implementations must be safe for concurrent use.
type Region interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// FrameCompleter is a live view of a DMA descriptor chain in host
// memory. CompleteNext fills the next slot's frame buffer and stamps its
// writeback marker, returning false once the chain is stale (stopped,
// resized or resynced since it was handed out).
type FrameCompleter interface {
	CompleteNext(fill func(buf []byte)) bool
}

// ChainAttacher is implemented by Regions standing in for the card
// itself. A real card bus-masters frame data and writeback markers into
// host buffers; an emulated one has no DMA, so the channel hands it the
// chain directly whenever the scatter-gather table is programmed.
type ChainAttacher interface {
	AttachChain(channel int, chain FrameCompleter)
}

// WriteOp records a single register write, used by the memory-backed
// region to let tests assert on exact hardware programming sequences.
type WriteOp struct {
	Off uint32
	Val uint32
}

// Mem is a memory-backed Region. Reads and writes can be intercepted
// with hooks, which is how the simulated card models read-to-clear
// status registers and FIFOs.
type Mem struct {
	mu    sync.Mutex
	words map[uint32]uint32
	log   []WriteOp

	// ReadHook, if set, is consulted before the backing store. Returning
	// handled=true short-circuits the read.
	ReadHook func(off uint32) (v uint32, handled bool)
	// WriteHook, if set, observes every write after it lands in the
	// backing store.
	WriteHook func(off uint32, v uint32)
}

// NewMem returns an empty memory-backed region.
func NewMem() *Mem {
	return &Mem{words: make(map[uint32]uint32)}
}

func (m *Mem) Read32(off uint32) uint32 {
	m.mu.Lock()
	hook := m.ReadHook
	m.mu.Unlock()

	if hook != nil {
		if v, ok := hook(off); ok {
			return v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[off]
}

func (m *Mem) Write32(off uint32, v uint32) {
	m.mu.Lock()
	m.words[off] = v
	m.log = append(m.log, WriteOp{Off: off, Val: v})
	hook := m.WriteHook
	m.mu.Unlock()

	if hook != nil {
		hook(off, v)
	}
}

// Poke sets a register value without recording a write op. Test setup only.
func (m *Mem) Poke(off uint32, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[off] = v
}

// Writes returns a copy of every write issued so far, in order.
func (m *Mem) Writes() []WriteOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteOp, len(m.log))
	copy(out, m.log)
	return out
}

// ResetWrites clears the recorded write log.
func (m *Mem) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}
