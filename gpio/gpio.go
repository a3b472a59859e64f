// Package gpio owns the GPIO character device lines. Each line is claimed by
// exactly one driver at construction; a second claim on the same pin is a
// configuration error, caught before any hardware is touched.
package gpio

import (
	"fmt"
	"sync"

	gpiocdev "github.com/warthog618/go-gpiocdev"
)

// Output is a single digital output line.
type Output interface {
	Set(on bool) error
	Close() error
}

// Input is a single digital input line.
type Input interface {
	Get() (bool, error)
	Close() error
}

// Chip hands out claimed lines on one GPIO character device (eg "gpiochip0").
type Chip struct {
	name    string
	mu      sync.Mutex
	claimed map[int]string
}

func NewChip(name string) *Chip {
	return &Chip{name: name, claimed: map[int]string{}}
}

func (self *Chip) claim(pin int, owner string) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if other, taken := self.claimed[pin]; taken {
		return fmt.Errorf("pin %d already claimed by %s (wanted by %s)", pin, other, owner)
	}
	self.claimed[pin] = owner
	return nil
}

// Output claims pin as an output line, initially low.
func (self *Chip) Output(pin int, owner string) (Output, error) {
	if err := self.claim(pin, owner); err != nil {
		return nil, err
	}
	line, err := gpiocdev.RequestLine(self.name, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &outputLine{line}, nil
}

// Input claims pin as an input line.
func (self *Chip) Input(pin int, owner string) (Input, error) {
	if err := self.claim(pin, owner); err != nil {
		return nil, err
	}
	line, err := gpiocdev.RequestLine(self.name, pin, gpiocdev.AsInput)
	if err != nil {
		return nil, err
	}
	return &inputLine{line}, nil
}

type outputLine struct {
	line *gpiocdev.Line
}

func (self *outputLine) Set(on bool) error {
	value := 0
	if on {
		value = 1
	}
	return self.line.SetValue(value)
}

func (self *outputLine) Close() error {
	return self.line.Close()
}

type inputLine struct {
	line *gpiocdev.Line
}

func (self *inputLine) Get() (bool, error) {
	value, err := self.line.Value()
	return value != 0, err
}

func (self *inputLine) Close() error {
	return self.line.Close()
}
