package config

var ExampleYaml = `
mqtt:
  broker: tcp://io.adafruit.com:1883
  username: example
  key: aio_key
intervals:
  environment: 20s
  security: 5s
  devices: 300s
buzzer:
  pin: 18
  mode: passive
  frequency: 2000
  duty: 70
  control: toggle
  alarm: 15s
  feed: buzzer-control
leds:
  pins:
    yellow: 16
    red: 20
    green: 21
  feeds:
    yellow: led-yellow
    red: led-red
    green: led-green
  party: party-mode
lcd:
  device: /dev/i2c-1
  address: 39
  columns: 16
  rows: 2
  feed: lcd-display
dht:
  pin: 19
  min_interval: 2s
  retries: 5
  retry_delay: 500ms
security:
  pir_pin: 6
camera:
  enabled: true
  path: captured_images
  command: rpicam-still
email:
  server: mail.smtp2go.com:587
  user: alerts
  password: hunter2
  from: alerts@example.com
  to: admin@example.com
  cooldown: 300s
database:
  url: postgres://guardian@localhost/iot?sslmode=disable
redis:
  server: 127.0.0.1:6379
datalogger:
  path: local_data
api:
  listen: ":8723"
devices:
  - living_room_light
  - bedroom_fan
  - front_door
  - garage_door
`

var ExampleConfig *Config

func init() {
	ExampleConfig, _ = OpenRaw([]byte(ExampleYaml))
}
