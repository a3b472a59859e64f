// Package i2c is a minimal handle on a Linux i2c character device, just
// enough to drive a PCF8574 expander backpack: single byte writes to one
// peripheral address.
package i2c

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const ioctlSlave = 0x0703 // I2C_SLAVE from linux/i2c-dev.h

// Bus writes bytes to peripherals on one i2c bus.
type Bus interface {
	WriteByte(addr int, b byte) error
	Close() error
}

type bus struct {
	file *os.File
	addr int
}

// Open the i2c device, eg /dev/i2c-1.
func Open(device string) (Bus, error) {
	file, err := os.OpenFile(device, os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", device)
	}
	return &bus{file: file, addr: -1}, nil
}

func (self *bus) WriteByte(addr int, b byte) error {
	if addr != self.addr {
		if err := unix.IoctlSetInt(int(self.file.Fd()), ioctlSlave, addr); err != nil {
			return errors.Wrapf(err, "selecting i2c address %#x", addr)
		}
		self.addr = addr
	}
	_, err := self.file.Write([]byte{b})
	return err
}

func (self *bus) Close() error {
	return self.file.Close()
}
