package devices

import (
	"sync"
	"time"

	"github.com/iadeleke/domisafe/i2c"
)

// HD44780 commands, via a PCF8574 i2c expander backpack in 4-bit mode.
const (
	lcdClearDisplay = 0x01
	lcdReturnHome   = 0x02
	lcdEntryModeSet = 0x04
	lcdDisplayCtrl  = 0x08
	lcdFunctionSet  = 0x20
	lcdSetDDRAMAddr = 0x80

	lcdEntryLeft = 0x02
	lcd2Line     = 0x08
	lcd5x8Dots   = 0x00
	lcdDisplayOn = 0x04
	lcdCursorOff = 0x00
	lcdBlinkOff  = 0x00

	lcdEnable    = 0b00000100
	lcdBacklight = 0b00001000
)

var lcdRowOffsets = []byte{0x00, 0x40, 0x14, 0x54}

// Lcd is a character display. The device demands a fixed mode-set handshake
// before accepting commands; New performs it once, after which the display
// is ready. Writes past the end of a row do not wrap - the caller splits
// text across rows and drops the overflow.
type Lcd struct {
	bus       i2c.Bus
	addr      int
	cols      int
	rows      int
	mu        sync.Mutex
	backlight bool
}

func NewLcd(bus i2c.Bus, addr, cols, rows int) (*Lcd, error) {
	self := &Lcd{bus: bus, addr: addr, cols: cols, rows: rows, backlight: true}

	time.Sleep(50 * time.Millisecond)

	// init sequence: three mode-sets, then switch to 4-bit
	self.write4(0x30)
	time.Sleep(4500 * time.Microsecond)
	self.write4(0x30)
	time.Sleep(4500 * time.Microsecond)
	self.write4(0x30)
	time.Sleep(150 * time.Microsecond)
	if err := self.write4(0x20); err != nil {
		return nil, err
	}

	self.command(lcdFunctionSet | lcd2Line | lcd5x8Dots)
	self.command(lcdDisplayCtrl | lcdDisplayOn | lcdCursorOff | lcdBlinkOff)
	if err := self.Clear(); err != nil {
		return nil, err
	}
	if err := self.command(lcdEntryModeSet | lcdEntryLeft); err != nil {
		return nil, err
	}
	return self, nil
}

func (self *Lcd) expander(data byte) error {
	if self.backlight {
		data |= lcdBacklight
	}
	return self.bus.WriteByte(self.addr, data)
}

func (self *Lcd) pulse(data byte) error {
	if err := self.expander(data | lcdEnable); err != nil {
		return err
	}
	time.Sleep(500 * time.Microsecond)
	err := self.expander(data &^ lcdEnable)
	time.Sleep(100 * time.Microsecond)
	return err
}

func (self *Lcd) write4(data byte) error {
	if err := self.expander(data); err != nil {
		return err
	}
	return self.pulse(data)
}

func (self *Lcd) write8(val byte, rs byte) error {
	if err := self.write4((val & 0xF0) | rs); err != nil {
		return err
	}
	return self.write4(((val << 4) & 0xF0) | rs)
}

func (self *Lcd) command(cmd byte) error {
	return self.write8(cmd, 0)
}

func (self *Lcd) writeChar(ch byte) error {
	return self.write8(ch, 1)
}

func (self *Lcd) Clear() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	err := self.command(lcdClearDisplay)
	time.Sleep(2 * time.Millisecond)
	return err
}

func (self *Lcd) Home() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	err := self.command(lcdReturnHome)
	time.Sleep(2 * time.Millisecond)
	return err
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (self *Lcd) SetCursor(col, row int) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	row = clamp(row, 0, self.rows-1)
	col = clamp(col, 0, self.cols-1)
	return self.command(lcdSetDDRAMAddr | (lcdRowOffsets[row] + byte(col)))
}

// Print writes text at the cursor. A newline moves to the start of row 1;
// there is no automatic wrapping.
func (self *Lcd) Print(text string) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			if err := self.command(lcdSetDDRAMAddr | lcdRowOffsets[1]); err != nil {
				return err
			}
			continue
		}
		if err := self.writeChar(text[i]); err != nil {
			return err
		}
	}
	return nil
}

func (self *Lcd) SetBacklight(on bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.backlight = on
	// touching the expander applies the change
	return self.expander(0x00)
}

func (self *Lcd) Backlight() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.backlight
}

// Columns of the display.
func (self *Lcd) Columns() int {
	return self.cols
}

// Rows of the display.
func (self *Lcd) Rows() int {
	return self.rows
}

// Cleanup blanks the display. Idempotent, never panics.
func (self *Lcd) Cleanup() {
	self.Clear()
	self.SetBacklight(false)
}

// Close releases the bus handle.
func (self *Lcd) Close() error {
	return self.bus.Close()
}
