// The domisafe home monitoring system
//
// Features
//
// - Environmental monitoring (DHT11 temperature and humidity)
//
// - Security monitoring (PIR motion, optional smoke input, camera capture)
//
// - Remote control of buzzer, LEDs and LCD over MQTT feeds
//
// - Telemetry fan-out to local jsonl logs, PostgreSQL and the feed broker
//
// - Email alerts with per-alert-type cooldown
//
// - REST API for history queries, device status and control
//
// - Lightweight, small memory footprint (runs on the Raspberry Pi)
//
// Services
//
// - control: routes inbound feed commands to the actuators
//
// - sampler: periodic environment / security / device-status loops
//
// - api: HTTP query and control endpoints
package domisafe
