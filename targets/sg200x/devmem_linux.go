//go:build linux

package sg200x

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const devMemPath = "/dev/mem"

// DevMem is the FMUX register page mapped from /dev/mem
type DevMem struct {
	mem  []byte
	regs []uint32
}

// OpenDevMem maps the FMUX page. It needs CAP_SYS_RAWIO (usually root).
func OpenDevMem() (*DevMem, error) {
	f, err := os.OpenFile(devMemPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open "+devMemPath)
	}
	defer f.Close()

	pageSize := os.Getpagesize()
	mem, err := unix.Mmap(int(f.Fd()), fmuxBase, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map FMUX at 0x%08x", fmuxBase)
	}
	regs := unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4)
	return &DevMem{mem: mem, regs: regs}, nil
}

func (d *DevMem) Read32(offset uint32) uint32 {
	return atomic.LoadUint32(&d.regs[offset/4])
}

func (d *DevMem) Write32(offset uint32, value uint32) {
	atomic.StoreUint32(&d.regs[offset/4], value)
}

// Close unmaps the register page
func (d *DevMem) Close() error {
	d.regs = nil
	return unix.Munmap(d.mem)
}
