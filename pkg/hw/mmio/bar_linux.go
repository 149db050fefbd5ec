//go:build linux

package mmio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BAR is a Region backed by a PCIe BAR mapped from a sysfs resource file,
// e.g. /sys/bus/pci/devices/0000:01:00.0/resource0.
type BAR struct {
	f    *os.File
	mem  []byte
	size uint32
}

// MapBAR maps BAR index bar of the PCI device at addr (domain:bus:dev.fn).
func MapBAR(addr string, bar int) (*BAR, error) {
	path := filepath.Join("/sys/bus/pci/devices", addr, fmt.Sprintf("resource%d", bar))
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmio: stat %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmio: mmap %s: %w", path, err)
	}

	return &BAR{f: f, mem: mem, size: uint32(fi.Size())}, nil
}

func (b *BAR) Read32(off uint32) uint32 {
	if off+4 > b.size {
		return 0
	}
	return atomic.LoadUint32((*uint32)(ptrAt(b.mem, off)))
}

func (b *BAR) Write32(off uint32, v uint32) {
	if off+4 > b.size {
		return
	}
	atomic.StoreUint32((*uint32)(ptrAt(b.mem, off)), v)
}

// Size returns the mapped length in bytes.
func (b *BAR) Size() uint32 { return b.size }

// Close unmaps the BAR and closes the resource file.
func (b *BAR) Close() error {
	if b.mem != nil {
		if err := unix.Munmap(b.mem); err != nil {
			return err
		}
		b.mem = nil
	}
	return b.f.Close()
}

func ptrAt(mem []byte, off uint32) unsafe.Pointer {
	return unsafe.Pointer(&mem[off])
}
