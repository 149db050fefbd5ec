// Package regs holds the SC0710 register map. Offsets were recovered
// from bus captures of the vendor driver and are static configuration,
// not tunables.
package regs

// BAR0: bridge and embedded AXI IIC master.
const (
	// HDMI receiver.
	HDMIHeight     uint32 = 0x00C8 // active lines, reprogrammed on resync
	CaptureControl uint32 = 0x00D0 // capture re-arm control word
	CaptureAuxA    uint32 = 0x00CC
	CaptureAuxB    uint32 = 0x00DC
	IICDiag        uint32 = 0x00AC // nonzero after a failed transaction

	// AXI IIC master (Xilinx-style register block at 0x3100).
	IICControl uint32 = 0x3100
	IICStatus  uint32 = 0x3104
	IICTxFIFO  uint32 = 0x3108
	IICRxFIFO  uint32 = 0x310C
	IICRxPIRQ  uint32 = 0x3120
)

// AXI IIC control bits and FIFO word flags.
const (
	IICCtlEnable    uint32 = 0x00000001
	IICCtlFIFOReset uint32 = 0x00000002

	IICTxStart uint32 = 1 << 8
	IICTxStop  uint32 = 1 << 9
)

// Bus status codes observed on BAR0_3104 during a write-read transaction.
const (
	IICStatusAckAddr uint32 = 0x44 // device ack after address byte
	IICStatusAckSub  uint32 = 0xc4 // device ack after subaddress byte
	IICStatusRxA     uint32 = 0x8c // rx byte available
	IICStatusRxB     uint32 = 0xac // rx byte available (last in FIFO)
	IICStatusDone    uint32 = 0xc8 // transaction complete
)

// MCUAddr is the 8-bit bus address of the companion ARM microcontroller
// (7-bit 0x32).
const MCUAddr byte = 0x32 << 1

// Capture re-arm control words. The off/on toggle around a resync works
// around the engine refusing to re-arm while the run flag stays set.
const (
	CaptureRun    uint32 = 0x4100
	CaptureRunSet uint32 = 0x4300
)

// ChannelRegs is the per-channel slice of the BAR1 DMA engine register
// file.
type ChannelRegs struct {
	Control      uint32 // run control, write 1 to start
	ControlW1C   uint32 // write-1-to-clear stop
	Status       uint32
	CompletedCnt uint32 // completed descriptor counter
	SGStartLo    uint32 // scatter-gather table base, low half
	SGStartHi    uint32
	SGAdjacent   uint32
}

// VideoChannel returns the register block for video DMA channel n.
// Channels are spaced 0x100 apart; the scatter-gather pointers live in a
// separate block at 0x4000.
func VideoChannel(n int) ChannelRegs {
	base := uint32(n) * 0x100
	sg := 0x4000 + uint32(n)*0x100
	return ChannelRegs{
		Control:      base + 0x04,
		ControlW1C:   base + 0x08,
		Status:       base + 0x40,
		CompletedCnt: base + 0x48,
		SGStartLo:    sg + 0x80,
		SGStartHi:    sg + 0x84,
		SGAdjacent:   sg + 0x88,
	}
}
