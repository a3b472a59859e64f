// Package devices holds the actuator drivers: buzzer, led bank and i2c lcd.
// Each driver is the sole owner of its lines and serializes its own state
// with an internal lock.
package devices

import (
	"log"
	"sync"
	"time"

	"github.com/iadeleke/domisafe/gpio"
)

// Buzzer drives a piezo buzzer, either active (plain high/low) or passive
// (pwm tone). It has two layers of state: the toggle state, set directly by
// on/off commands, and a momentary alarm that asserts the output for a fixed
// duration. A toggle-on issued mid-alarm wins: the buzzer stays on after the
// alarm's own timer expires.
type Buzzer struct {
	out  gpio.Output
	tone *gpio.Tone

	mu          sync.Mutex
	toggleOn    bool
	alarmActive bool

	quit     chan struct{}
	quitOnce sync.Once
}

func NewBuzzer(out gpio.Output, mode string, freq int, duty float64) *Buzzer {
	self := &Buzzer{out: out, quit: make(chan struct{})}
	if mode == "passive" {
		self.tone = gpio.NewTone(out, freq, duty)
	}
	return self
}

func (self *Buzzer) assert() {
	if self.tone != nil {
		self.tone.Start()
	} else {
		self.out.Set(true)
	}
}

func (self *Buzzer) deassert() {
	if self.tone != nil {
		self.tone.Stop()
	}
	self.out.Set(false)
}

// SetOn sets the toggle state on and drives the output. Any active alarm
// bookkeeping is cancelled - the toggle now owns the output.
func (self *Buzzer) SetOn() {
	self.mu.Lock()
	self.toggleOn = true
	self.alarmActive = false
	self.mu.Unlock()
	self.assert()
	log.Println("buzzer: on")
}

// SetOff sets the toggle state off and de-asserts the output.
func (self *Buzzer) SetOff() {
	self.mu.Lock()
	self.toggleOn = false
	self.alarmActive = false
	self.mu.Unlock()
	self.deassert()
	log.Println("buzzer: off")
}

// On reports the toggle state.
func (self *Buzzer) On() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.toggleOn
}

// Alarm sounds the buzzer for the duration in the background. Returns false
// immediately if an alarm is already active - alarms are not queued. The
// output is asserted before Alarm returns; only the timer runs in the
// background.
func (self *Buzzer) Alarm(duration time.Duration) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.alarmActive {
		return false
	}
	self.alarmActive = true
	self.assert()
	go self.alarmWorker(duration)
	return true
}

func (self *Buzzer) alarmWorker(duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-self.quit:
	}
	self.mu.Lock()
	self.alarmActive = false
	if !self.toggleOn {
		self.deassert()
	}
	self.mu.Unlock()
	log.Println("buzzer: alarm finished")
}

// Cleanup forces the output low. Idempotent, never panics, and unblocks any
// running alarm timer - called on any exit path.
func (self *Buzzer) Cleanup() {
	self.quitOnce.Do(func() {
		close(self.quit)
	})
	self.mu.Lock()
	self.toggleOn = false
	self.alarmActive = false
	self.mu.Unlock()
	self.deassert()
}

// Close releases the line.
func (self *Buzzer) Close() error {
	return self.out.Close()
}
