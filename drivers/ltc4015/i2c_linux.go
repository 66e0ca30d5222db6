//go:build linux

package ltc4015

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// i2cRdwrIoctlCmd mirrors Linux's I2C_RDWR ioctl request number
// (include/uapi/linux/i2c-dev.h).
const i2cRdwrIoctlCmd = 0x0707

const i2cMRd = 0x0001 // i2c_msg.flags: read transfer

// i2cMsg mirrors struct i2c_msg from <linux/i2c.h>.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// i2cRdwrIoctlData mirrors struct i2c_rdwr_ioctl_data.
type i2cRdwrIoctlData struct {
	msgs  uintptr
	nmsgs uint32
}

// LinuxBus implements the I2C interface over a /dev/i2c-N character device
// using the I2C_RDWR ioctl, so a single Tx call can issue the
// write-register-then-read-value transaction the LTC4015 register map needs
// without an intervening STOP condition.
type LinuxBus struct {
	f *os.File
}

// OpenLinuxBus opens /dev/i2c-<bus>.
func OpenLinuxBus(bus int) (*LinuxBus, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/i2c-%d", bus), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("ltc4015: open i2c bus %d: %w", bus, err)
	}
	return &LinuxBus{f: f}, nil
}

// Close releases the underlying device file.
func (b *LinuxBus) Close() error { return b.f.Close() }

// Tx performs a combined write-then-read I2C transaction. Either w or r may
// be empty, but not both.
func (b *LinuxBus) Tx(addr uint16, w, r []byte) error {
	var msgs []i2cMsg
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, flags: i2cMRd, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	if len(msgs) == 0 {
		return fmt.Errorf("ltc4015: empty i2c transaction")
	}
	data := i2cRdwrIoctlData{
		msgs:  uintptr(unsafe.Pointer(&msgs[0])),
		nmsgs: uint32(len(msgs)),
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), uintptr(i2cRdwrIoctlCmd), uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return fmt.Errorf("ltc4015: i2c transfer addr=0x%02x: %w", addr, errno)
	}
	return nil
}
