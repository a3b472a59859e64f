// Service running the sampling loops: environmental readings, security
// checks and device status, each on its own interval. Every sample fans out
// to the sinks - local log, database, feed broker, email alerts - and a
// failing sink never stops the others.
package sampler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/iadeleke/domisafe/gpio"
	"github.com/iadeleke/domisafe/notify"
	"github.com/iadeleke/domisafe/pubsub"
	"github.com/iadeleke/domisafe/sensors"
	"github.com/iadeleke/domisafe/services"
	"github.com/iadeleke/domisafe/services/control"
	"github.com/iadeleke/domisafe/storage"
	"github.com/iadeleke/domisafe/util"
)

type environmentSensor interface {
	Read(stop <-chan struct{}) (sensors.Reading, error)
}

type securitySensor interface {
	Read() (sensors.SecurityEvent, error)
}

type localSink interface {
	Record(category string, fields map[string]interface{}) error
}

type databaseSink interface {
	InsertReading(reading sensors.Reading) error
	InsertSecurityEvent(eventType string, event sensors.SecurityEvent) error
}

type alerter interface {
	Alert(alertType, subject, body, attachment string) bool
}

// Service sampler
type Service struct {
	environment environmentSensor
	security    securitySensor
	local       localSink
	database    databaseSink // nil when no database configured
	mailer      alerter
}

// ID of the service
func (self *Service) ID() string {
	return "sampler"
}

// Init brings up the sensors and sinks. The environment and security sensors
// are required; database and camera are optional per configuration.
func (self *Service) Init() error {
	conf := services.Config

	driver := sensors.NewDHT11(conf.Dht.Pin)
	self.environment = sensors.NewEnvironment(driver,
		conf.Dht.MinInterval.Duration, conf.Dht.Retries, conf.Dht.RetryDelay.Duration)

	chip := services.GpioChip()
	pir, err := chip.Input(conf.Security.PirPin, "pir")
	if err != nil {
		return err
	}
	var smoke gpio.Input
	if conf.Security.SmokePin != 0 {
		smoke, err = chip.Input(conf.Security.SmokePin, "smoke")
		if err != nil {
			return err
		}
	}
	var capture sensors.Capturer
	if conf.Camera.Enabled {
		camera, err := sensors.NewCamera(conf.Camera.Path, conf.Camera.Command)
		if err != nil {
			return err
		}
		capture = camera
	}
	self.security = sensors.NewSecurity(pir, smoke, capture)

	local, err := storage.NewLocal(conf.Datalogger.Path)
	if err != nil {
		return err
	}
	self.local = local

	self.connectDatabase(conf.Database.Url)

	self.mailer = notify.NewMailer(conf.Email)
	return nil
}

// connectDatabase is best-effort: an unreachable database must not stop the
// controller, sampling continues on the remaining sinks.
func (self *Service) connectDatabase(url string) {
	if url == "" {
		log.Println("No database configured, skipping remote storage")
		return
	}
	database, err := storage.OpenPostgres(url)
	if err != nil {
		log.Println("Database unavailable, continuing without:", err)
		return
	}
	self.database = database
	services.RegisterCleanup("database", func() { database.Close() })
}

// Run the three loops until shutdown.
func (self *Service) Run() error {
	conf := services.Config
	stop := services.Stop()

	var wg sync.WaitGroup
	loops := []struct {
		interval time.Duration
		tick     func()
	}{
		{conf.Intervals.Environment.Duration, self.sampleEnvironment},
		{conf.Intervals.Security.Duration, self.sampleSecurity},
		{conf.Intervals.Devices.Duration, self.sampleDevices},
	}
	for _, loop := range loops {
		wg.Add(1)
		go func(interval time.Duration, tick func()) {
			defer wg.Done()
			for {
				tick()
				if !util.Sleep(stop, interval) {
					return
				}
			}
		}(loop.interval, loop.tick)
	}
	wg.Wait()
	return nil
}

func (self *Service) sampleEnvironment() {
	reading, err := self.environment.Read(services.Stop())
	if err != nil {
		log.Println("Environmental read failed:", err)
		return
	}
	log.Printf("Env: temperature=%v, humidity=%v", reading.Temperature, reading.Humidity)

	if err := self.local.Record("environmental", reading.Map()); err != nil {
		log.Println("Local environmental record failed:", err)
	}
	if self.database != nil {
		if err := self.database.InsertReading(reading); err != nil {
			log.Println("Database environmental insert failed:", err)
		}
	}

	conf := services.Config
	self.publish(conf.Telemetry.Temperature, reading.Temperature)
	self.publish(conf.Telemetry.Humidity, reading.Humidity)
}

func (self *Service) sampleSecurity() {
	event, err := self.security.Read()
	if err != nil {
		log.Println("Security read failed:", err)
		return
	}
	if event.MotionDetected || event.SmokeDetected {
		log.Printf("Security: motion=%v, smoke=%v, image=%s",
			event.MotionDetected, event.SmokeDetected, event.ImagePath)
	}

	if err := self.local.Record("security", event.Map()); err != nil {
		log.Println("Local security record failed:", err)
	}
	if self.database != nil {
		if event.MotionDetected {
			if err := self.database.InsertSecurityEvent("motion", event); err != nil {
				log.Println("Database security insert failed:", err)
			}
		}
		if event.SmokeDetected {
			if err := self.database.InsertSecurityEvent("smoke", event); err != nil {
				log.Println("Database security insert failed:", err)
			}
		}
	}

	conf := services.Config
	self.publish(conf.Telemetry.Motion, event.MotionDetected)
	self.publish(conf.Telemetry.Smoke, event.SmokeDetected)

	if event.MotionDetected {
		body := fmt.Sprintf("Motion detected at %s", event.Timestamp.Format(time.RFC1123))
		self.mailer.Alert("motion", "Motion detected", body, event.ImagePath)
	}
	if event.SmokeDetected {
		body := fmt.Sprintf("Smoke detected at %s", event.Timestamp.Format(time.RFC1123))
		self.mailer.Alert("smoke", "Smoke detected", body, "")
	}
}

// sampleDevices logs one status record per configured device, using the last
// commanded state from the store. A device never commanded reads as off.
func (self *Service) sampleDevices() {
	conf := services.Config
	now := storage.Clock().Format(time.RFC3339)
	for _, device := range conf.Devices {
		status := "off"
		if services.Stor != nil {
			if value, err := services.Stor.Get(control.StatePrefix + "/" + device); err == nil {
				status = value
			}
		}
		record := map[string]interface{}{
			"timestamp":   now,
			"device_name": device,
			"status":      status,
		}
		if err := self.local.Record("devices", record); err != nil {
			log.Println("Local device record failed:", err)
		}
	}
}

func (self *Service) publish(feed string, value interface{}) {
	if feed == "" || services.Publisher == nil {
		return
	}
	services.Publisher.Emit(pubsub.NewValue(feed, value))
}
