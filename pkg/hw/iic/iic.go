// Package iic drives the embedded AXI IIC master that connects the PCIe
// bridge to the card's ARM microcontroller.
//
// The MCU owns HDMI lock detection; the host only ever issues write-read
// transactions against it ("write one subaddress byte, repeated-start
// read N bytes"). One bus transaction is in flight system-wide at any
// time: the transport shares its mutex with the signal monitor, which
// also serializes all device state it derives from the answers.
package iic

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Nakildias/sc0710/pkg/hw/hwwait"
	"github.com/Nakildias/sc0710/pkg/hw/mmio"
	"github.com/Nakildias/sc0710/pkg/hw/regs"
)

// Transaction failures. All of them mean "no data this poll"; callers
// retry on the next poll interval and never escalate.
var (
	ErrAckTimeout  = errors.New("iic: timeout waiting for device ack")
	ErrReadTimeout = errors.New("iic: timeout reading data")
	ErrBadStatus   = errors.New("iic: unexpected bus status")
)

const (
	ackIters   = 16
	ackBackoff = 60 * time.Microsecond
	ackWindow  = 500 * time.Millisecond // whole-transaction ceiling

	readIters   = 32
	readBackoff = 120 * time.Microsecond
	readWindow  = 100 * time.Millisecond // per-byte ceiling
)

// Transport issues write-read transactions on the internal command bus.
type Transport struct {
	bus mmio.Region
	mu  *sync.Mutex // shared with the signal monitor
	log *slog.Logger
}

// New creates a transport over bus. lock serializes transactions against
// everything else that touches the bus or the state derived from it.
func New(bus mmio.Region, lock *sync.Mutex, log *slog.Logger) *Transport {
	return &Transport{bus: bus, mu: lock, log: log}
}

// WriteRead performs one locked transaction: write sub to dev, then read
// n bytes back with a repeated start.
func (t *Transport) WriteRead(dev byte, sub byte, n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteReadLocked(dev, sub, n)
}

// WriteReadLocked is WriteRead for callers that already hold the bus
// lock (the signal monitor reads status while holding it so the decoded
// device state cannot interleave with another transaction).
func (t *Transport) WriteReadLocked(dev byte, sub byte, n int) ([]byte, error) {
	deadline := time.Now().Add(ackWindow)

	// Reset the TX FIFO, enable the master, address the device.
	t.bus.Write32(regs.IICControl, regs.IICCtlFIFOReset)
	t.bus.Write32(regs.IICControl, regs.IICCtlEnable)
	t.bus.Write32(regs.IICTxFIFO, regs.IICTxStart|uint32(dev))

	if err := t.waitStatus(regs.IICStatusAckAddr, deadline); err != nil {
		return nil, fmt.Errorf("address 0x%02x: %w", dev, err)
	}

	// Single-byte subaddresses only; the MCU protocol never uses more.
	t.bus.Write32(regs.IICTxFIFO, uint32(sub))
	if err := t.waitStatus(regs.IICStatusAckSub, deadline); err != nil {
		return nil, fmt.Errorf("subaddress 0x%02x: %w", sub, err)
	}

	// The vendor driver pauses here before flipping the master around;
	// the MCU drops the repeated start without it.
	time.Sleep(time.Millisecond)

	// Repeated-start read of n bytes.
	t.bus.Write32(regs.IICRxPIRQ, 0x0f)
	t.bus.Write32(regs.IICControl, regs.IICCtlFIFOReset)
	t.bus.Write32(regs.IICControl, 0)
	t.bus.Write32(regs.IICTxFIFO, regs.IICTxStart|uint32(dev|1))
	t.bus.Write32(regs.IICTxFIFO, regs.IICTxStop|uint32(n))
	t.bus.Write32(regs.IICControl, regs.IICCtlEnable)

	buf := make([]byte, n)
	for i := range buf {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("byte %d/%d: %w", i, n, ErrReadTimeout)
		}
		b, err := t.readByte()
		if err != nil {
			return nil, fmt.Errorf("byte %d/%d: %w", i, n, err)
		}
		buf[i] = b
	}

	if v := t.bus.Read32(regs.IICStatus); v != regs.IICStatusDone {
		t.log.Debug("transaction left bad bus status",
			"status", fmt.Sprintf("0x%02x", v),
			"diag", fmt.Sprintf("0x%08x", t.bus.Read32(regs.IICDiag)))
		return nil, fmt.Errorf("final status 0x%02x: %w", v, ErrBadStatus)
	}

	return buf, nil
}

// waitStatus polls the status register for an exact ack code.
func (t *Transport) waitStatus(want uint32, deadline time.Time) error {
	err := hwwait.Until(func() bool {
		return t.bus.Read32(regs.IICStatus) == want
	}, ackIters, time.Until(deadline), ackBackoff)
	if err != nil {
		return ErrAckTimeout
	}
	return nil
}

// readByte busy-reads one byte out of the RX FIFO, waiting for the
// rx-valid status first.
func (t *Transport) readByte() (byte, error) {
	err := hwwait.Until(func() bool {
		v := t.bus.Read32(regs.IICStatus)
		return v == regs.IICStatusRxA || v == regs.IICStatusRxB
	}, readIters, readWindow, readBackoff)
	if err != nil {
		return 0, ErrReadTimeout
	}
	return byte(t.bus.Read32(regs.IICRxFIFO)), nil
}
