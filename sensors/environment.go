// Package sensors holds the sensor adapters: environmental readings with a
// hardware-respecting read policy, and security events from the PIR with
// image capture.
package sensors

import (
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/iadeleke/domisafe/util"
)

// Clock is replaceable for tests.
var Clock = func() time.Time {
	return time.Now()
}

// Reading is one environmental sample. Immutable once produced.
type Reading struct {
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
}

func (self Reading) Map() map[string]interface{} {
	return map[string]interface{}{
		"timestamp":   self.Timestamp.Format(time.RFC3339),
		"temperature": self.Temperature,
		"humidity":    self.Humidity,
	}
}

// TempHumidityReader is the raw sensor driver contract: one read attempt,
// no policy.
type TempHumidityReader interface {
	ReadOnce() (temperature, humidity float64, err error)
}

// Environment samples the temperature/humidity sensor. It enforces the
// sensor's minimum inter-read interval (blocking, not busy-waiting) and
// retries failed reads a bounded number of times. A read that exhausts its
// retries surfaces an error - data is never fabricated.
type Environment struct {
	driver      TempHumidityReader
	minInterval time.Duration
	retries     int
	retryDelay  time.Duration

	mu       sync.Mutex
	lastRead time.Time
}

func NewEnvironment(driver TempHumidityReader, minInterval time.Duration, retries int, retryDelay time.Duration) *Environment {
	if retries < 1 {
		retries = 1
	}
	return &Environment{
		driver:      driver,
		minInterval: minInterval,
		retries:     retries,
		retryDelay:  retryDelay,
	}
}

func (self *Environment) respectInterval(stop <-chan struct{}) bool {
	self.mu.Lock()
	wait := self.minInterval - Clock().Sub(self.lastRead)
	self.mu.Unlock()
	if wait > 0 {
		if !util.Sleep(stop, wait) {
			return false
		}
	}
	self.mu.Lock()
	self.lastRead = Clock()
	self.mu.Unlock()
	return true
}

// Read produces one reading, honouring the minimum interval and retry
// policy. Interruptible by stop.
func (self *Environment) Read(stop <-chan struct{}) (Reading, error) {
	if !self.respectInterval(stop) {
		return Reading{}, errors.New("read interrupted by shutdown")
	}

	var lastErr error
	for attempt := 0; attempt < self.retries; attempt++ {
		temperature, humidity, err := self.driver.ReadOnce()
		if err == nil {
			return Reading{
				Timestamp:   Clock(),
				Temperature: temperature,
				Humidity:    humidity,
			}, nil
		}
		lastErr = err
		log.Println("Sensor read error, retrying:", err)
		if !util.Sleep(stop, self.retryDelay) {
			break
		}
	}
	return Reading{}, errors.Wrapf(lastErr, "failed to read sensor after %d retries", self.retries)
}
