// Package services contains the service registry, launcher and the shared
// runtime globals (config, pubsub endpoints, state store).
package services

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/iadeleke/domisafe/config"
	"github.com/iadeleke/domisafe/gpio"
	"github.com/iadeleke/domisafe/pubsub"
	"github.com/iadeleke/domisafe/pubsub/mqtt"
)

// Service interface
type Service interface {
	ID() string
	Run() error
}

// ServiceInit interface
type ServiceInit interface {
	Service
	Init() error
}

var serviceMap map[string]Service = map[string]Service{}
var enabled []Service
var Config *config.Config

var Publisher pubsub.Publisher
var Subscriber pubsub.Subscriber
var Stor Store
var Gpio *gpio.Chip

// GpioChip is the process-wide chip handle. Sharing it means a pin claimed
// by one service cannot be claimed again by another - the collision is
// caught at construction, not on the hardware.
func GpioChip() *gpio.Chip {
	if Gpio == nil {
		Gpio = gpio.NewChip(Config.Gpio.Chip)
	}
	return Gpio
}

var stopChan = make(chan struct{})
var running sync.WaitGroup
var shutdownOnce sync.Once

type cleanup struct {
	name string
	fn   func()
}

var cleanupMu sync.Mutex
var cleanups []cleanup

func SetupLogging() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.SetOutput(os.Stdout)
}

func SetupBroker() {
	if Config.Mqtt.Broker == "" {
		log.Fatalln("Set mqtt: broker in the configuration. eg: tcp://io.adafruit.com:1883")
	}
	broker, err := mqtt.NewBroker(Config.Mqtt.Broker, Config.Mqtt.Username, Config.Mqtt.Key)
	if err != nil {
		log.Fatalln("Failed to connect to mqtt broker:", err)
	}
	Publisher = broker.Publisher()
	if Publisher == nil {
		log.Fatalln("Failed to initialise pub endpoint")
	}
	Subscriber = broker.Subscriber()
	if Subscriber == nil {
		log.Fatalln("Failed to initialise sub endpoint")
	}
}

func SetupStore() {
	if Config.Redis.Server == "" {
		Stor = NewMockStore()
		return
	}
	store, err := NewRedisStore(Config.Redis.Server)
	if err != nil {
		log.Fatalln("Failed to connect to redis:", err)
	}
	Stor = store
}

func Setup() {
	SetupBroker()
	SetupStore()
}

// Stop is closed when shutdown begins. Service loops select on it.
func Stop() <-chan struct{} {
	return stopChan
}

func Register(service Service) {
	if _, exists := serviceMap[service.ID()]; exists {
		log.Fatalf("Duplicate service registered: %s", service.ID())
	}
	serviceMap[service.ID()] = service
}

// RegisterCleanup adds a hook run at shutdown, after the service loops have
// stopped. Hooks run in registration order and a failing hook never blocks
// the rest.
func RegisterCleanup(name string, fn func()) {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	cleanups = append(cleanups, cleanup{name, fn})
}

// Launch initializes the named services in order, connects the shared
// transports, then runs the service loops. An Init failure is fatal - a
// half-started controller is worse than none. Launch returns once every
// loop has started.
func Launch(ss []string) {
	enabled = []Service{}
	for _, name := range ss {
		if service, ok := serviceMap[name]; ok {
			enabled = append(enabled, service)
		} else {
			log.Fatalf("Service %s does not exist", name)
		}
	}

	// hardware and sensors first - broker and store connect only once the
	// devices are known good
	for _, service := range enabled {
		log.Printf("Starting %s\n", service.ID())
		if service, ok := service.(ServiceInit); ok {
			err := service.Init()
			if err != nil {
				log.Fatalf("Error init service %s: %s", service.ID(), err.Error())
			}
			log.Printf("Initialized %s\n", service.ID())
		}
	}

	Setup()

	go Heartbeat()

	for _, service := range enabled {
		running.Add(1)
		go func(service Service) {
			defer running.Done()
			err := service.Run()
			if err != nil {
				log.Printf("Error running service %s: %s", service.ID(), err.Error())
			}
		}(service)
	}
}

// Heartbeat publishes uptime to the heartbeat feed every minute.
func Heartbeat() {
	started := time.Now()
	// if the process dies very soon, don't heartbeat at all
	select {
	case <-time.After(5 * time.Second):
	case <-stopChan:
		return
	}

	for {
		uptime := int(time.Since(started).Seconds())
		message := pubsub.New("heartbeat", fmt.Sprint(uptime))
		message.SetRetained(true)
		Publisher.Emit(message)
		select {
		case <-time.After(60 * time.Second):
		case <-stopChan:
			return
		}
	}
}

// Shutdown stops the service loops, runs the cleanup hooks and closes the
// broker connection. Safe to call more than once.
func Shutdown() {
	shutdownOnce.Do(shutdown)
}

func shutdown() {
	log.Println("Shutting down")
	close(stopChan)

	// bounded wait - a stuck loop mustn't hold the hardware cleanup hostage
	done := make(chan struct{})
	go func() {
		running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("Timed out waiting for services to stop")
	}

	cleanupMu.Lock()
	hooks := cleanups
	cleanups = nil
	cleanupMu.Unlock()
	for _, hook := range hooks {
		runCleanup(hook)
	}

	if Publisher != nil {
		Publisher.Close()
	}
	log.Println("Shutdown complete")
}

func runCleanup(hook cleanup) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Cleanup %s panicked: %v", hook.name, r)
		}
	}()
	hook.fn()
}
