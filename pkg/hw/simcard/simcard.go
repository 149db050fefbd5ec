// Package simcard emulates the SC0710 register file well enough to run
// the whole capture engine without hardware: the AXI IIC master protocol,
// the MCU status blocks it answers with, and a plain register backing
// store for the DMA engine.
//
// Tests drive it to script exact hardware conversations; the daemon's
// --simulate mode runs against it directly.
package simcard

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/Nakildias/sc0710/pkg/hw/mmio"
	"github.com/Nakildias/sc0710/pkg/hw/regs"
)

// videoDMAChannels is how many DMA register banks the card decodes.
const videoDMAChannels = 2

// defaultFrameInterval paces the emulated capture DMA at roughly 60fps.
const defaultFrameInterval = 16 * time.Millisecond

type iicPhase int

const (
	iicIdle iicPhase = iota
	iicAddressed
	iicSubaddr
	iicReadAddr
	iicReadArmed
)

// Card is a simulated SC0710. It implements mmio.Region.
type Card struct {
	mu     sync.Mutex
	words  map[uint32]uint32
	writes []mmio.WriteOp

	blocks map[byte][]byte

	phase   iicPhase
	sub     byte
	readLen int
	rx      []byte
	status  uint32

	dma           [videoDMAChannels]dmaEngine
	frameInterval time.Duration

	// Fault injection.
	NoAck     bool // device never acks its address
	BadStatus bool // final transaction status is corrupted
}

// dmaEngine is one channel's emulated capture DMA: the attached
// descriptor chain plus the frame generator driven by the run control.
type dmaEngine struct {
	chain  mmio.FrameCompleter
	stop   chan struct{}
	frames uint32
}

// New returns a card with no signal present (all-zero status block).
func New() *Card {
	c := &Card{
		words:         make(map[uint32]uint32),
		blocks:        make(map[byte][]byte),
		frameInterval: defaultFrameInterval,
	}
	c.blocks[0x00] = make([]byte, 0x1a)
	return c
}

// SetFrameInterval changes the emulated capture frame pacing. Call
// before the DMA engine is started.
func (c *Card) SetFrameInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameInterval = d
}

// AttachChain hands the card the live descriptor chain for a channel.
// Called by the DMA layer whenever the scatter-gather table is
// programmed; implements mmio.ChainAttacher.
func (c *Card) AttachChain(channel int, chain mmio.FrameCompleter) {
	if channel < 0 || channel >= videoDMAChannels {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dma[channel].chain = chain
}

// SetBlock installs the MCU's answer for subaddress sub.
func (c *Card) SetBlock(sub byte, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[sub] = append([]byte(nil), data...)
}

func (c *Card) Read32(off uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch off {
	case regs.IICStatus:
		return c.status
	case regs.IICRxFIFO:
		if len(c.rx) == 0 {
			return 0
		}
		v := uint32(c.rx[0])
		c.rx = c.rx[1:]
		c.status = c.rxStatus()
		return v
	default:
		return c.words[off]
	}
}

func (c *Card) Write32(off uint32, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.words[off] = v
	c.writes = append(c.writes, mmio.WriteOp{Off: off, Val: v})

	for n := 0; n < videoDMAChannels; n++ {
		r := regs.VideoChannel(n)
		switch off {
		case r.Control:
			if v != 0 {
				c.startDMALocked(n)
			}
		case r.ControlW1C:
			if v != 0 {
				c.stopDMALocked(n)
			}
		case r.CompletedCnt:
			// Any host write resets the completion counter.
			c.words[off] = 0
			c.dma[n].frames = 0
		}
	}

	switch off {
	case regs.IICControl:
		if v&regs.IICCtlEnable != 0 && c.phase == iicReadArmed {
			// Repeated-start read begins: latch the block.
			block := c.blocks[c.sub]
			n := c.readLen
			if n > len(block) {
				n = len(block)
			}
			c.rx = append([]byte(nil), block[:n]...)
			c.status = c.rxStatus()
			c.phase = iicIdle
		}
	case regs.IICTxFIFO:
		c.txWrite(v)
	}
}

func (c *Card) txWrite(v uint32) {
	b := byte(v)
	switch {
	case v&regs.IICTxStart != 0 && b == regs.MCUAddr:
		if c.NoAck {
			c.status = 0
			c.phase = iicIdle
			return
		}
		c.phase = iicAddressed
		c.status = regs.IICStatusAckAddr
	case v&regs.IICTxStart != 0 && b == regs.MCUAddr|1:
		c.phase = iicReadAddr
	case c.phase == iicAddressed:
		c.sub = b
		c.phase = iicSubaddr
		c.status = regs.IICStatusAckSub
	case c.phase == iicReadAddr && v&regs.IICTxStop != 0:
		c.readLen = int(b)
		c.phase = iicReadArmed
	}
}

// startDMALocked begins generating frame completions for a channel.
// Caller holds c.mu.
func (c *Card) startDMALocked(n int) {
	if c.dma[n].stop != nil {
		return
	}
	stop := make(chan struct{})
	c.dma[n].stop = stop
	go c.generate(n, stop, c.frameInterval)
}

// stopDMALocked halts a channel's frame generator. Caller holds c.mu.
func (c *Card) stopDMALocked(n int) {
	if c.dma[n].stop == nil {
		return
	}
	close(c.dma[n].stop)
	c.dma[n].stop = nil
}

// generate paces frame completions while the channel runs, standing in
// for the card's capture-and-writeback DMA.
func (c *Card) generate(n int, stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.completeFrame(n)
		}
	}
}

// completeFrame stamps the next descriptor slot and advances the
// completion counter, exactly one frame's worth of DMA.
func (c *Card) completeFrame(n int) {
	c.mu.Lock()
	chain := c.dma[n].chain
	frame := c.dma[n].frames + 1
	c.mu.Unlock()
	if chain == nil {
		return
	}

	// The chain refuses stale handles, so a resync mid-tick drops the
	// frame instead of corrupting the fresh arena.
	ok := chain.CompleteNext(func(buf []byte) {
		// Black YUYV field with the frame number stamped in the first
		// macropixels, enough for consumers to tell frames apart.
		for i := 0; i < len(buf) && i < 16; i++ {
			buf[i] = byte(frame)
		}
	})
	if !ok {
		return
	}

	c.mu.Lock()
	c.dma[n].frames = frame
	c.words[regs.VideoChannel(n).CompletedCnt]++
	c.mu.Unlock()
}

// rxStatus mirrors the bus master's status progression while draining
// the RX FIFO.
func (c *Card) rxStatus() uint32 {
	switch {
	case len(c.rx) == 0:
		if c.BadStatus {
			return 0x00
		}
		return regs.IICStatusDone
	case len(c.rx) == 1:
		return regs.IICStatusRxB
	default:
		return regs.IICStatusRxA
	}
}

// Writes returns every register write issued so far, in order.
func (c *Card) Writes() []mmio.WriteOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]mmio.WriteOp, len(c.writes))
	copy(out, c.writes)
	return out
}

// ResetWrites clears the write log.
func (c *Card) ResetWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}

// SignalParams describes the HDMI state the simulated MCU reports.
type SignalParams struct {
	TimingH, TimingV uint16 // total pixels per line / total lines
	Width, Height    uint16 // visible raster
	Interlaced       bool
	Colorimetry      byte // 1=BT.709 2=BT.601 3=BT.2020
	Colorspace       byte // 0=4:2:2 1=4:4:4 2=RGB
	EOTF             byte // 0=SDR 2=PQ 3=HLG
	RateX100         uint16
}

// SetLocked makes the MCU report a locked signal with the given timings.
func (c *Card) SetLocked(p SignalParams) {
	b := make([]byte, 0x1a)
	binary.LittleEndian.PutUint16(b[0x04:], p.TimingV)
	binary.LittleEndian.PutUint16(b[0x06:], p.TimingH)
	binary.LittleEndian.PutUint16(b[0x08:], p.Height)
	binary.LittleEndian.PutUint16(b[0x0a:], p.Width)
	b[0x0d] = (p.Colorimetry & 0x3) << 4
	if p.Interlaced {
		b[0x0d] |= 0x01
	}
	b[0x0e] = p.EOTF & 0x3
	b[0x0f] = p.Colorspace
	binary.LittleEndian.PutUint16(b[0x10:], p.RateX100)
	c.SetBlock(0x00, b)
}

// SetUnlocked makes the MCU report no lock. With cablePresent the timing
// hint bytes stay nonzero, which the monitor reads as "cable seated but
// unsynced"; without it the block is all zero.
func (c *Card) SetUnlocked(cablePresent bool, timingH, timingV uint16) {
	b := make([]byte, 0x1a)
	if cablePresent {
		binary.LittleEndian.PutUint16(b[0x04:], timingV)
		binary.LittleEndian.PutUint16(b[0x06:], timingH)
	}
	c.SetBlock(0x00, b)
}

// SetProcamp installs the brightness/contrast/saturation/hue answer at
// subaddress 0x12.
func (c *Card) SetProcamp(brightness, contrast, saturation byte, hue int8) {
	c.SetBlock(0x12, []byte{0, brightness, contrast, saturation, byte(hue)})
}
