// Service for controlling the actuators: buzzer, led bank and lcd display.
// Subscribes to the control feeds and routes each message to the matching
// device, highest priority first.
package control

import (
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/iadeleke/domisafe/config"
	"github.com/iadeleke/domisafe/devices"
	"github.com/iadeleke/domisafe/gpio"
	"github.com/iadeleke/domisafe/i2c"
	"github.com/iadeleke/domisafe/services"
	"github.com/iadeleke/domisafe/util"
)

// StatePrefix is where the last commanded device states live in the store.
const StatePrefix = "domisafe/state/devices"

type buzzerDevice interface {
	SetOn()
	SetOff()
	Alarm(duration time.Duration) bool
	On() bool
}

type ledDevice interface {
	Set(name string, on bool)
	All(on bool)
}

type displayDevice interface {
	Clear() error
	Home() error
	Print(text string) error
	Columns() int
	Rows() int
}

// Service control
type Service struct {
	buzzer  buzzerDevice
	leds    ledDevice
	lcd     displayDevice
	ledfeed map[string]string // feed -> led name
	order   []string          // led feeds, stable routing order

	partyStop chan struct{}
}

// ID of the service
func (self *Service) ID() string {
	return "control"
}

// Truthy decodes a command token. Everything else is off.
func Truthy(payload string) bool {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on", "1", "true", "high":
		return true
	}
	return false
}

// Init claims the lines and brings up the hardware. Any failure aborts
// startup - running with half the actuators is worse than not running.
func (self *Service) Init() error {
	conf := services.Config
	chip := services.GpioChip()

	out, err := chip.Output(conf.Buzzer.Pin, "buzzer")
	if err != nil {
		return err
	}
	buzzer := devices.NewBuzzer(out, conf.Buzzer.Mode, conf.Buzzer.Frequency, conf.Buzzer.Duty)
	self.buzzer = buzzer
	services.RegisterCleanup("buzzer", buzzer.Cleanup)

	outputs := map[string]gpio.Output{}
	for name, pin := range conf.Leds.Pins {
		out, err := chip.Output(pin, "led "+name)
		if err != nil {
			return err
		}
		outputs[name] = out
	}
	leds := devices.NewLedBank(outputs)
	self.leds = leds
	services.RegisterCleanup("leds", leds.Cleanup)

	bus, err := i2c.Open(conf.Lcd.Device)
	if err != nil {
		return err
	}
	lcd, err := devices.NewLcd(bus, conf.Lcd.Address, conf.Lcd.Columns, conf.Lcd.Rows)
	if err != nil {
		return err
	}
	self.lcd = lcd
	services.RegisterCleanup("lcd", lcd.Cleanup)

	self.setupRouting(conf)

	self.showMessage("DomiSafe\nSystem Ready")
	return nil
}

func (self *Service) setupRouting(conf *config.Config) {
	self.ledfeed = map[string]string{}
	self.order = []string{}
	names := []string{}
	for name := range conf.Leds.Feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		feed := conf.Leds.Feeds[name]
		self.ledfeed[feed] = name
		self.order = append(self.order, feed)
	}
}

func (self *Service) feeds() []string {
	conf := services.Config
	feeds := []string{conf.Buzzer.Feed}
	feeds = append(feeds, self.order...)
	feeds = append(feeds, conf.Lcd.Feed)
	if conf.Leds.Party != "" {
		feeds = append(feeds, conf.Leds.Party)
	}
	return feeds
}

// Run the message loop until shutdown.
func (self *Service) Run() error {
	messages := services.Subscriber.Subscribe(self.feeds()...)
	for {
		select {
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			self.route(message.Feed, string(message.Payload))
		case <-services.Stop():
			self.stopParty()
			return nil
		}
	}
}

// route dispatches one control message. Priority: buzzer, then leds, then
// lcd. First match wins; an unroutable feed is logged and dropped.
func (self *Service) route(feed, payload string) {
	conf := services.Config
	switch {
	case feed == conf.Buzzer.Feed:
		self.handleBuzzer(payload)
	case self.ledfeed[feed] != "":
		name := self.ledfeed[feed]
		on := Truthy(payload)
		self.leds.Set(name, on)
		self.saveState("led-"+name, on)
	case feed == conf.Lcd.Feed:
		self.showMessage(payload)
	case feed == conf.Leds.Party && conf.Leds.Party != "":
		if Truthy(payload) {
			self.startParty()
		} else {
			self.stopParty()
		}
	default:
		log.Printf("Dropping message for unknown feed %s", feed)
	}
}

func (self *Service) handleBuzzer(payload string) {
	conf := services.Config
	if conf.Buzzer.Control == "momentary" {
		// momentary: a truthy command sounds the alarm, off is meaningless
		if !Truthy(payload) {
			return
		}
		if !self.buzzer.Alarm(conf.Buzzer.Alarm.Duration) {
			log.Println("Alarm already sounding, ignored")
		}
		return
	}
	if Truthy(payload) {
		self.buzzer.SetOn()
	} else {
		self.buzzer.SetOff()
	}
	self.saveState("buzzer", self.buzzer.On())
}

// showMessage clears the display and writes the text, split across the rows.
// Overflow is dropped.
func (self *Service) showMessage(text string) {
	if err := self.lcd.Clear(); err != nil {
		log.Println("Error writing to lcd:", err)
		return
	}
	if err := self.lcd.Home(); err != nil {
		log.Println("Error writing to lcd:", err)
		return
	}
	if err := self.lcd.Print(formatMessage(text, self.lcd.Columns(), self.lcd.Rows())); err != nil {
		log.Println("Error writing to lcd:", err)
		return
	}
	log.Printf("lcd: %q", text)
}

// formatMessage fits text to a cols x rows display. Explicit newlines are
// kept; a too-long single line spills onto the next row.
func formatMessage(text string, cols, rows int) string {
	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > cols {
			lines = append(lines, line[:cols])
			line = line[cols:]
		}
		lines = append(lines, line)
	}
	if len(lines) > rows {
		lines = lines[:rows]
	}
	return strings.Join(lines, "\n")
}

func (self *Service) saveState(device string, on bool) {
	if services.Stor == nil {
		return
	}
	value := "off"
	if on {
		value = "on"
	}
	err := services.Stor.Set(StatePrefix+"/"+device, value)
	if err != nil {
		log.Println("Error saving device state:", err)
	}
}

// party mode: cycle the led bank through a little light show until told to
// stop. Restarting while running is a no-op.

func (self *Service) startParty() {
	if self.partyStop != nil {
		return
	}
	log.Println("Party mode on")
	self.partyStop = make(chan struct{})
	go self.partyWorker(self.partyStop)
}

func (self *Service) stopParty() {
	if self.partyStop == nil {
		return
	}
	log.Println("Party mode off")
	close(self.partyStop)
	self.partyStop = nil
}

func (self *Service) partyWorker(stop chan struct{}) {
	names := []string{}
	if leds, ok := self.leds.(*devices.LedBank); ok {
		names = leds.Names()
		sort.Strings(names)
	}
	defer self.leds.All(false)
	for {
		// wave
		for _, name := range names {
			self.leds.Set(name, true)
			if !util.Sleep(stop, 150*time.Millisecond) {
				return
			}
			self.leds.Set(name, false)
		}
		// strobe
		for i := 0; i < 4; i++ {
			self.leds.All(true)
			if !util.Sleep(stop, 100*time.Millisecond) {
				return
			}
			self.leds.All(false)
			if !util.Sleep(stop, 100*time.Millisecond) {
				return
			}
		}
		// random sparkle
		for i := 0; i < 8 && len(names) > 0; i++ {
			name := names[rand.Intn(len(names))]
			self.leds.Set(name, true)
			if !util.Sleep(stop, 120*time.Millisecond) {
				return
			}
			self.leds.Set(name, false)
		}
		// sequence: fill up, then drain
		for _, name := range names {
			self.leds.Set(name, true)
			if !util.Sleep(stop, 150*time.Millisecond) {
				return
			}
		}
		for _, name := range names {
			self.leds.Set(name, false)
			if !util.Sleep(stop, 150*time.Millisecond) {
				return
			}
		}
	}
}
