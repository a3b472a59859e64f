package control

import (
	"bytes"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iadeleke/domisafe/config"
	"github.com/iadeleke/domisafe/services"
)

type fakeBuzzer struct {
	on         bool
	alarms     int
	alarmBusy  bool
	lastLength time.Duration
}

func (self *fakeBuzzer) SetOn()   { self.on = true }
func (self *fakeBuzzer) SetOff()  { self.on = false }
func (self *fakeBuzzer) On() bool { return self.on }

func (self *fakeBuzzer) Alarm(d time.Duration) bool {
	if self.alarmBusy {
		return false
	}
	self.alarms++
	self.lastLength = d
	return true
}

type fakeLeds struct {
	mu     sync.Mutex
	states map[string]bool
}

func (self *fakeLeds) Set(name string, on bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.states[name] = on
}

func (self *fakeLeds) All(on bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for name := range self.states {
		self.states[name] = on
	}
}

func (self *fakeLeds) get(name string) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.states[name]
}

type fakeDisplay struct {
	shown    []string
	cleared  int
	homeErr  error
	printErr error
}

func (self *fakeDisplay) Clear() error { self.cleared++; return nil }
func (self *fakeDisplay) Home() error  { return self.homeErr }

func (self *fakeDisplay) Print(text string) error {
	if self.printErr != nil {
		return self.printErr
	}
	self.shown = append(self.shown, text)
	return nil
}

func (self *fakeDisplay) Columns() int { return 16 }
func (self *fakeDisplay) Rows() int    { return 2 }

func testService() (*Service, *fakeBuzzer, *fakeLeds, *fakeDisplay) {
	services.Config = config.ExampleConfig
	services.Stor = services.NewMockStore()
	buzzer := &fakeBuzzer{}
	leds := &fakeLeds{states: map[string]bool{"yellow": false, "red": false, "green": false}}
	display := &fakeDisplay{}
	service := &Service{buzzer: buzzer, leds: leds, lcd: display}
	service.setupRouting(services.Config)
	return service, buzzer, leds, display
}

func TestTruthy(t *testing.T) {
	for _, token := range []string{"on", "1", "true", "high", "ON", " True ", "HIGH"} {
		assert.True(t, Truthy(token), token)
	}
	for _, token := range []string{"off", "0", "false", "low", "", "yes", "2"} {
		assert.False(t, Truthy(token), token)
	}
}

func TestRouteBuzzerToggle(t *testing.T) {
	service, buzzer, _, _ := testService()
	service.route("buzzer-control", "on")
	assert.True(t, buzzer.on)
	service.route("buzzer-control", "off")
	assert.False(t, buzzer.on)
	// unrecognized tokens switch off
	service.route("buzzer-control", "banana")
	assert.False(t, buzzer.on)
}

func TestRouteBuzzerStateSaved(t *testing.T) {
	service, _, _, _ := testService()
	service.route("buzzer-control", "on")
	value, err := services.Stor.Get(StatePrefix + "/buzzer")
	assert.NoError(t, err)
	assert.Equal(t, "on", value)
}

func TestRouteBuzzerMomentary(t *testing.T) {
	service, buzzer, _, _ := testService()
	services.Config.Buzzer.Control = "momentary"
	defer func() { services.Config.Buzzer.Control = "toggle" }()

	service.route("buzzer-control", "on")
	assert.Equal(t, 1, buzzer.alarms)
	assert.Equal(t, 15*time.Second, buzzer.lastLength)
	assert.False(t, buzzer.on, "momentary must not latch the toggle state")

	// off has no meaning for a momentary control
	service.route("buzzer-control", "off")
	assert.Equal(t, 1, buzzer.alarms)
}

func TestRouteBuzzerMomentaryBusy(t *testing.T) {
	service, buzzer, _, _ := testService()
	services.Config.Buzzer.Control = "momentary"
	defer func() { services.Config.Buzzer.Control = "toggle" }()

	buzzer.alarmBusy = true
	service.route("buzzer-control", "on")
	assert.Zero(t, buzzer.alarms)
}

func TestRouteLeds(t *testing.T) {
	service, _, leds, _ := testService()
	service.route("led-red", "on")
	assert.True(t, leds.states["red"])
	assert.False(t, leds.states["green"])

	service.route("led-red", "0")
	assert.False(t, leds.states["red"])

	value, err := services.Stor.Get(StatePrefix + "/led-red")
	assert.NoError(t, err)
	assert.Equal(t, "off", value)
}

func TestRouteLcd(t *testing.T) {
	service, _, _, display := testService()
	service.route("lcd-display", "Hello")
	assert.Equal(t, 1, display.cleared)
	assert.Equal(t, []string{"Hello"}, display.shown)
}

func TestRouteLcdWriteErrors(t *testing.T) {
	service, _, _, display := testService()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stdout)

	display.homeErr = errors.New("write timeout")
	service.route("lcd-display", "Hello")
	assert.Empty(t, display.shown, "a failed cursor reset skips the write")
	assert.Contains(t, buf.String(), "write timeout")

	buf.Reset()
	display.homeErr = nil
	display.printErr = errors.New("write timeout")
	service.route("lcd-display", "Hello")
	assert.Contains(t, buf.String(), "write timeout")
}

func TestRouteUnknownFeedDropped(t *testing.T) {
	service, buzzer, leds, display := testService()
	service.route("thermostat", "on")
	assert.False(t, buzzer.on)
	assert.False(t, leds.states["red"])
	assert.Empty(t, display.shown)
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "Hello", formatMessage("Hello", 16, 2))
	assert.Equal(t, "Hello\nWorld", formatMessage("Hello\nWorld", 16, 2))
	// a long line spills onto the second row, overflow dropped
	assert.Equal(t, "0123456789abcdef\nghij", formatMessage("0123456789abcdefghij", 16, 2))
	assert.Equal(t, "one\ntwo", formatMessage("one\ntwo\nthree", 16, 2))
}

func TestPartyMode(t *testing.T) {
	service, _, leds, _ := testService()
	service.route("party-mode", "on")
	assert.NotNil(t, service.partyStop)
	// restart is a no-op
	stop := service.partyStop
	service.route("party-mode", "on")
	assert.Equal(t, stop, service.partyStop)

	service.route("party-mode", "off")
	assert.Nil(t, service.partyStop)
	time.Sleep(50 * time.Millisecond)
	for _, name := range []string{"yellow", "red", "green"} {
		assert.False(t, leds.get(name), name)
	}
}
