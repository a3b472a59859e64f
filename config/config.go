package config

import (
	"io"
	"io/ioutil"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type MqttConf struct {
	Broker   string
	Username string
	Key      string
}

type IntervalsConf struct {
	Environment Duration
	Security    Duration
	Devices     Duration
}

type BuzzerConf struct {
	Pin       int
	Mode      string // active or passive (pwm tone)
	Frequency int
	Duty      float64
	Control   string // toggle or momentary
	Alarm     Duration
	Feed      string
}

type LedsConf struct {
	Pins  map[string]int
	Feeds map[string]string
	Party string
}

type LcdConf struct {
	Device  string
	Address int
	Columns int
	Rows    int
	Feed    string
}

type DhtConf struct {
	Pin         int
	MinInterval Duration `yaml:"min_interval"`
	Retries     int
	RetryDelay  Duration `yaml:"retry_delay"`
}

type SecurityConf struct {
	PirPin   int `yaml:"pir_pin"`
	SmokePin int `yaml:"smoke_pin"` // 0: not wired
}

type CameraConf struct {
	Enabled bool
	Path    string
	Command string
}

type EmailConf struct {
	Server   string
	User     string
	Password string
	From     string
	To       string
	Cooldown Duration
}

type TelemetryConf struct {
	Temperature string
	Humidity    string
	Motion      string
	Smoke       string
}

type DatabaseConf struct {
	Url string
}

type RedisConf struct {
	Server string
}

type DataloggerConf struct {
	Path string
}

type ApiConf struct {
	Listen string
}

type GpioConf struct {
	Chip string
}

// Duration is a yaml-friendly time.Duration ("20s", "5m").
type Duration struct {
	Duration time.Duration
}

func (self *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}
	val, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	self.Duration = val
	return nil
}

// Configuration structure
type Config struct {
	// yaml fields
	Mqtt       MqttConf
	Intervals  IntervalsConf
	Buzzer     BuzzerConf
	Leds       LedsConf
	Lcd        LcdConf
	Dht        DhtConf
	Security   SecurityConf
	Camera     CameraConf
	Email      EmailConf
	Telemetry  TelemetryConf
	Database   DatabaseConf
	Redis      RedisConf
	Datalogger DataloggerConf
	Api        ApiConf
	Gpio       GpioConf
	Devices    []string
}

// Open configuration from disk.
func Open() (*Config, error) {
	file, err := os.Open(ConfigPath("domisafe.yml"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return OpenReader(file)
}

// Open configuration from a reader.
func OpenReader(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return OpenRaw(data)
}

// Open configuration from []byte.
func OpenRaw(data []byte) (*Config, error) {
	self := &Config{}
	err := yaml.Unmarshal(data, self)
	if err != nil {
		return nil, err
	}
	self.setDefaults()
	return self, nil
}

// setDefaults fills the fields a minimal config file leaves out, mirroring
// the deployment defaults of the original wiring.
func (self *Config) setDefaults() {
	if self.Intervals.Environment.Duration == 0 {
		self.Intervals.Environment.Duration = 20 * time.Second
	}
	if self.Intervals.Security.Duration == 0 {
		self.Intervals.Security.Duration = 5 * time.Second
	}
	if self.Intervals.Devices.Duration == 0 {
		self.Intervals.Devices.Duration = 300 * time.Second
	}
	if self.Gpio.Chip == "" {
		self.Gpio.Chip = "gpiochip0"
	}
	if self.Buzzer.Pin == 0 {
		self.Buzzer.Pin = 18
	}
	if self.Buzzer.Mode == "" {
		self.Buzzer.Mode = "passive"
	}
	if self.Buzzer.Frequency == 0 {
		self.Buzzer.Frequency = 2000
	}
	if self.Buzzer.Duty == 0 {
		self.Buzzer.Duty = 70.0
	}
	if self.Buzzer.Control == "" {
		self.Buzzer.Control = "toggle"
	}
	if self.Buzzer.Alarm.Duration == 0 {
		self.Buzzer.Alarm.Duration = 15 * time.Second
	}
	if self.Buzzer.Feed == "" {
		self.Buzzer.Feed = "buzzer-control"
	}
	if self.Leds.Pins == nil {
		self.Leds.Pins = map[string]int{"yellow": 16, "red": 20, "green": 21}
	}
	if self.Leds.Feeds == nil {
		self.Leds.Feeds = map[string]string{
			"yellow": "led-yellow",
			"red":    "led-red",
			"green":  "led-green",
		}
	}
	if self.Lcd.Device == "" {
		self.Lcd.Device = "/dev/i2c-1"
	}
	if self.Lcd.Address == 0 {
		self.Lcd.Address = 0x27
	}
	if self.Lcd.Columns == 0 {
		self.Lcd.Columns = 16
	}
	if self.Lcd.Rows == 0 {
		self.Lcd.Rows = 2
	}
	if self.Lcd.Feed == "" {
		self.Lcd.Feed = "lcd-display"
	}
	if self.Dht.Pin == 0 {
		self.Dht.Pin = 19
	}
	if self.Dht.MinInterval.Duration == 0 {
		self.Dht.MinInterval.Duration = 2 * time.Second
	}
	if self.Dht.Retries == 0 {
		self.Dht.Retries = 5
	}
	if self.Dht.RetryDelay.Duration == 0 {
		self.Dht.RetryDelay.Duration = 500 * time.Millisecond
	}
	if self.Security.PirPin == 0 {
		self.Security.PirPin = 6
	}
	if self.Camera.Path == "" {
		self.Camera.Path = "captured_images"
	}
	if self.Camera.Command == "" {
		self.Camera.Command = "rpicam-still"
	}
	if self.Email.Cooldown.Duration == 0 {
		self.Email.Cooldown.Duration = 300 * time.Second
	}
	if self.Telemetry.Temperature == "" {
		self.Telemetry.Temperature = "temperature"
	}
	if self.Telemetry.Humidity == "" {
		self.Telemetry.Humidity = "humidity"
	}
	if self.Telemetry.Motion == "" {
		self.Telemetry.Motion = "motion"
	}
	if self.Telemetry.Smoke == "" {
		self.Telemetry.Smoke = "smoke"
	}
	if self.Datalogger.Path == "" {
		self.Datalogger.Path = "local_data"
	}
	if self.Api.Listen == "" {
		self.Api.Listen = ":8723"
	}
}

// helpers

// Resolve a configuration file under .config/domisafe
func ConfigPath(p string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = path.Join(os.Getenv("HOME"), ".config")
	}
	return path.Join(config, "domisafe", p)
}
