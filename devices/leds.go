package devices

import (
	"log"
	"sync"

	"github.com/iadeleke/domisafe/gpio"
)

// LedBank is a fixed set of named led channels. The channel set is immutable
// after construction; setting an unknown name is a no-op, not an error, so a
// control message for a channel this deployment doesn't wire up is harmless.
type LedBank struct {
	mu      sync.Mutex
	outputs map[string]gpio.Output
	states  map[string]bool
}

func NewLedBank(outputs map[string]gpio.Output) *LedBank {
	states := map[string]bool{}
	for name, out := range outputs {
		out.Set(false)
		states[name] = false
	}
	return &LedBank{outputs: outputs, states: states}
}

func (self *LedBank) Set(name string, on bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	out, ok := self.outputs[name]
	if !ok {
		return
	}
	out.Set(on)
	self.states[name] = on
	log.Printf("led %s: %v", name, on)
}

func (self *LedBank) All(on bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for name, out := range self.outputs {
		out.Set(on)
		self.states[name] = on
	}
}

// Names of the configured channels.
func (self *LedBank) Names() []string {
	self.mu.Lock()
	defer self.mu.Unlock()
	names := []string{}
	for name := range self.outputs {
		names = append(names, name)
	}
	return names
}

// States returns a copy of the current per-channel state.
func (self *LedBank) States() map[string]bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	states := map[string]bool{}
	for name, on := range self.states {
		states[name] = on
	}
	return states
}

// Cleanup turns every channel off. Idempotent.
func (self *LedBank) Cleanup() {
	self.All(false)
}

// Close releases the lines.
func (self *LedBank) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	var first error
	for _, out := range self.outputs {
		if err := out.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
