package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iadeleke/domisafe/config"
	"github.com/iadeleke/domisafe/pubsub/dummy"
	"github.com/iadeleke/domisafe/services"
	"github.com/iadeleke/domisafe/services/control"
	"github.com/iadeleke/domisafe/storage"
)

type fakeDatabase struct {
	points []storage.Point
	events []storage.Event
	mode   string
	err    error

	lastMetric string
	lastLimit  int
}

func (self *fakeDatabase) QueryReadings(metric string, from, to *time.Time, limit int) ([]storage.Point, error) {
	self.lastMetric = metric
	self.lastLimit = limit
	return self.points, self.err
}

func (self *fakeDatabase) QueryEvents(limit int) ([]storage.Event, error) {
	return self.events, self.err
}

func (self *fakeDatabase) SecurityMode() (string, error) {
	return self.mode, self.err
}

func (self *fakeDatabase) SetSecurityMode(mode string) error {
	self.mode = mode
	return self.err
}

func testService() (*Service, *fakeDatabase, *dummy.Publisher) {
	services.Config = config.ExampleConfig
	services.Stor = services.NewMockStore()
	publisher := &dummy.Publisher{}
	services.Publisher = publisher
	db := &fakeDatabase{mode: "disarmed"}
	return &Service{db: db}, db, publisher
}

func request(t *testing.T, service *Service, method, url, body string) (int, map[string]interface{}) {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	w := httptest.NewRecorder()
	service.router().ServeHTTP(w, req)

	response := map[string]interface{}{}
	if w.Body.Len() > 0 {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w.Code, response
}

func TestReadings(t *testing.T) {
	service, db, _ := testService()
	db.points = []storage.Point{
		{Timestamp: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), Value: 22.5},
	}

	code, response := request(t, service, "GET", "/api/readings/temperature?limit=5", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, response["ok"])
	assert.Equal(t, "temperature", db.lastMetric)
	assert.Equal(t, 5, db.lastLimit)
	readings := response["readings"].([]interface{})
	assert.Len(t, readings, 1)
	assert.Equal(t, 22.5, readings[0].(map[string]interface{})["value"])
}

func TestReadingsBadMetric(t *testing.T) {
	service, _, _ := testService()
	code, response := request(t, service, "GET", "/api/readings/pressure", "")
	assert.Equal(t, 400, code)
	assert.Equal(t, false, response["ok"])
	assert.Contains(t, response["error"], "unknown metric")
}

func TestReadingsBadParams(t *testing.T) {
	service, _, _ := testService()
	code, _ := request(t, service, "GET", "/api/readings/temperature?from=yesterday", "")
	assert.Equal(t, 400, code)
	code, _ = request(t, service, "GET", "/api/readings/temperature?limit=-1", "")
	assert.Equal(t, 400, code)
}

func TestReadingsDatabaseError(t *testing.T) {
	service, db, _ := testService()
	db.err = errors.New("connection lost")
	code, response := request(t, service, "GET", "/api/readings/humidity", "")
	assert.Equal(t, 500, code)
	assert.Equal(t, false, response["ok"])
}

func TestReadingsNoDatabase(t *testing.T) {
	service, _, _ := testService()
	service.db = nil
	code, response := request(t, service, "GET", "/api/readings/temperature", "")
	assert.Equal(t, 500, code)
	assert.Equal(t, "no database configured", response["error"])
}

func TestEvents(t *testing.T) {
	service, db, _ := testService()
	db.events = []storage.Event{
		{EventType: "motion", Timestamp: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)},
	}
	code, response := request(t, service, "GET", "/api/events", "")
	assert.Equal(t, 200, code)
	events := response["events"].([]interface{})
	assert.Len(t, events, 1)
	assert.Equal(t, "motion", events[0].(map[string]interface{})["event_type"])
}

func TestStatus(t *testing.T) {
	service, _, _ := testService()
	services.Stor.Set(control.StatePrefix+"/living_room_light", "on")

	code, response := request(t, service, "GET", "/api/status", "")
	assert.Equal(t, 200, code)
	devices := response["devices"].(map[string]interface{})
	assert.Equal(t, "on", devices["living_room_light"])
	assert.Equal(t, "off", devices["bedroom_fan"], "uncommanded devices default to off")
}

func TestControlDevice(t *testing.T) {
	service, _, publisher := testService()
	code, response := request(t, service, "POST", "/api/control",
		`{"device": "living_room_light", "state": "on"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, true, response["ok"])
	assert.Len(t, publisher.Messages, 1)
	assert.Equal(t, "living_room_light: on", publisher.Messages[0].String())

	value, err := services.Stor.Get(control.StatePrefix + "/living_room_light")
	assert.NoError(t, err)
	assert.Equal(t, "on", value)
}

func TestControlDeviceStateNormalized(t *testing.T) {
	service, _, _ := testService()
	code, _ := request(t, service, "POST", "/api/control",
		`{"device": "living_room_light", "state": "BANANA"}`)
	assert.Equal(t, 200, code)

	// arbitrary tokens are forwarded as-is, but the tracked status is
	// always decoded to on/off
	value, err := services.Stor.Get(control.StatePrefix + "/living_room_light")
	assert.NoError(t, err)
	assert.Equal(t, "off", value)

	request(t, service, "POST", "/api/control", `{"device": "living_room_light", "state": "HIGH"}`)
	value, _ = services.Stor.Get(control.StatePrefix + "/living_room_light")
	assert.Equal(t, "on", value)
}

func TestControlBuzzer(t *testing.T) {
	service, _, publisher := testService()
	code, _ := request(t, service, "POST", "/api/control", `{"device": "buzzer", "state": "on"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, "buzzer-control: on", publisher.Messages[0].String())
}

func TestControlLed(t *testing.T) {
	service, _, publisher := testService()
	code, _ := request(t, service, "POST", "/api/control", `{"device": "led-red", "state": "off"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, "led-red: off", publisher.Messages[0].String())
}

func TestControlMessage(t *testing.T) {
	service, _, publisher := testService()
	code, _ := request(t, service, "POST", "/api/control", `{"message": "Hello\nWorld"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, "lcd-display: Hello\nWorld", publisher.Messages[0].String())
}

func TestControlValidation(t *testing.T) {
	service, _, publisher := testService()
	code, _ := request(t, service, "POST", "/api/control", `{"device": "toaster", "state": "on"}`)
	assert.Equal(t, 400, code)
	code, _ = request(t, service, "POST", "/api/control", `{"device": "buzzer"}`)
	assert.Equal(t, 400, code)
	code, _ = request(t, service, "POST", "/api/control", `{}`)
	assert.Equal(t, 400, code)
	code, _ = request(t, service, "POST", "/api/control", `not json`)
	assert.Equal(t, 400, code)
	assert.Empty(t, publisher.Messages)
}

func TestConnectDatabaseUnreachable(t *testing.T) {
	service, _, _ := testService()
	service.db = nil
	service.connectDatabase("postgres://nobody@127.0.0.1:1/iot?sslmode=disable&connect_timeout=1")
	assert.Nil(t, service.db, "unreachable database must not fail startup")

	// query endpoints degrade to a structured error
	code, response := request(t, service, "GET", "/api/readings/temperature", "")
	assert.Equal(t, 500, code)
	assert.Equal(t, "no database configured", response["error"])
}

func TestSecurityMode(t *testing.T) {
	service, db, _ := testService()
	code, response := request(t, service, "GET", "/api/security/mode", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "disarmed", response["mode"])

	code, response = request(t, service, "POST", "/api/security/mode", `{"mode": "armed"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, "armed", response["mode"])
	assert.Equal(t, "armed", db.mode)

	code, _ = request(t, service, "POST", "/api/security/mode", `{"mode": "party"}`)
	assert.Equal(t, 400, code)
	assert.Equal(t, "armed", db.mode)
}
