package gpio

import (
	"sync"
	"time"
)

// Tone drives a continuous software pwm tone on an output line - the passive
// buzzer needs an oscillating signal, not a level.
type Tone struct {
	out    Output
	high   time.Duration
	low    time.Duration
	mu     sync.Mutex
	cancel chan struct{}
}

func NewTone(out Output, freq int, duty float64) *Tone {
	if freq <= 0 {
		freq = 2000
	}
	if duty < 0 {
		duty = 0
	}
	if duty > 100 {
		duty = 100
	}
	period := time.Second / time.Duration(freq)
	high := time.Duration(float64(period) * duty / 100)
	return &Tone{out: out, high: high, low: period - high}
}

// Start begins the tone. Starting an already-running tone is a no-op.
func (self *Tone) Start() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.cancel != nil {
		return
	}
	cancel := make(chan struct{})
	self.cancel = cancel
	go self.run(cancel)
}

func (self *Tone) run(cancel chan struct{}) {
	for {
		select {
		case <-cancel:
			self.out.Set(false)
			return
		default:
		}
		self.out.Set(true)
		time.Sleep(self.high)
		self.out.Set(false)
		time.Sleep(self.low)
	}
}

// Stop ends the tone and leaves the line low. Safe to call repeatedly.
func (self *Tone) Stop() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.cancel == nil {
		return
	}
	close(self.cancel)
	self.cancel = nil
}
