// Package api is a service providing an HTTP REST API to query telemetry and
// control the devices.
//
// The endpoints supported are:
//
// http://localhost:8723/api/readings/{metric} - query environmental readings (from, to, limit)
//
// http://localhost:8723/api/events - list recent security events
//
// http://localhost:8723/api/status - current device states
//
// http://localhost:8723/api/control - POST {"device": ..., "state": ...} or {"message": ...}
//
// http://localhost:8723/api/security/mode - GET or POST {"mode": ...} the security mode
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/iadeleke/domisafe/pubsub"
	"github.com/iadeleke/domisafe/services"
	"github.com/iadeleke/domisafe/services/control"
	"github.com/iadeleke/domisafe/storage"
)

type database interface {
	QueryReadings(metric string, from, to *time.Time, limit int) ([]storage.Point, error)
	QueryEvents(limit int) ([]storage.Event, error)
	SecurityMode() (string, error)
	SetSecurityMode(mode string) error
}

// Service api
type Service struct {
	db     database // nil when no database is configured
	server *http.Server
}

// ID of the service
func (self *Service) ID() string {
	return "api"
}

func (self *Service) Init() error {
	self.connectDatabase(services.Config.Database.Url)
	return nil
}

// connectDatabase is best-effort: without a database the query endpoints
// answer 500 but control and status keep working.
func (self *Service) connectDatabase(url string) {
	if url == "" {
		return
	}
	db, err := storage.OpenPostgres(url)
	if err != nil {
		log.Println("Database unavailable, continuing without:", err)
		return
	}
	self.db = db
	services.RegisterCleanup("api database", func() { db.Close() })
}

func jsonResponse(w http.ResponseWriter, obj map[string]interface{}) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	obj["ok"] = true
	json.NewEncoder(w).Encode(obj)
}

func errorResponse(w http.ResponseWriter, code int, err error) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":    false,
		"error": err.Error(),
	})
}

var errNoDatabase = errors.New("no database configured")

func apiIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "text/html")
	fmt.Fprintf(w, "<html>DomiSafe is listening</html>")
}

// parseTime accepts RFC3339 or a plain date.
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func (self *Service) apiReadings(w http.ResponseWriter, r *http.Request) {
	if self.db == nil {
		errorResponse(w, 500, errNoDatabase)
		return
	}
	metric := mux.Vars(r)["metric"]
	if metric != "temperature" && metric != "humidity" {
		errorResponse(w, 400, fmt.Errorf("unknown metric: %s", metric))
		return
	}

	q := r.URL.Query()
	var from, to *time.Time
	if value := q.Get("from"); value != "" {
		t, err := parseTime(value)
		if err != nil {
			errorResponse(w, 400, fmt.Errorf("bad from: %s", value))
			return
		}
		from = &t
	}
	if value := q.Get("to"); value != "" {
		t, err := parseTime(value)
		if err != nil {
			errorResponse(w, 400, fmt.Errorf("bad to: %s", value))
			return
		}
		to = &t
	}
	limit := 0
	if value := q.Get("limit"); value != "" {
		var err error
		limit, err = strconv.Atoi(value)
		if err != nil || limit < 0 {
			errorResponse(w, 400, fmt.Errorf("bad limit: %s", value))
			return
		}
	}

	points, err := self.db.QueryReadings(metric, from, to, limit)
	if err != nil {
		errorResponse(w, 500, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"readings": points})
}

func (self *Service) apiEvents(w http.ResponseWriter, r *http.Request) {
	if self.db == nil {
		errorResponse(w, 500, errNoDatabase)
		return
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		var err error
		limit, err = strconv.Atoi(value)
		if err != nil || limit < 0 {
			errorResponse(w, 400, fmt.Errorf("bad limit: %s", value))
			return
		}
	}
	events, err := self.db.QueryEvents(limit)
	if err != nil {
		errorResponse(w, 500, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"events": events})
}

// apiStatus reports the last commanded state of every device. Devices never
// commanded read as off.
func (self *Service) apiStatus(w http.ResponseWriter, r *http.Request) {
	states := map[string]string{}
	for _, device := range services.Config.Devices {
		states[device] = "off"
	}
	nodes, _ := services.Stor.GetRecursive(control.StatePrefix)
	for _, node := range nodes {
		name := node.Key[strings.LastIndex(node.Key, "/")+1:]
		states[name] = node.Value
	}
	jsonResponse(w, map[string]interface{}{"devices": states})
}

type controlRequest struct {
	Device  string `json:"device"`
	State   string `json:"state"`
	Message string `json:"message"`
}

// apiControl issues a device command or an lcd message by publishing on the
// control feed - the control service routes it exactly like any other
// command.
func (self *Service) apiControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, 400, fmt.Errorf("bad request: %s", err))
		return
	}

	conf := services.Config
	if req.Message != "" {
		services.Publisher.Emit(pubsub.New(conf.Lcd.Feed, req.Message))
		jsonResponse(w, map[string]interface{}{})
		return
	}

	if req.Device == "" {
		errorResponse(w, 400, errors.New("device or message required"))
		return
	}
	if req.State == "" {
		errorResponse(w, 400, errors.New("state required"))
		return
	}

	feed, tracked := self.resolveDevice(req.Device)
	if feed == "" {
		errorResponse(w, 400, fmt.Errorf("unknown device: %s", req.Device))
		return
	}
	services.Publisher.Emit(pubsub.New(feed, req.State))
	if tracked {
		// normalize: status reads must only ever see on/off
		value := "off"
		if control.Truthy(req.State) {
			value = "on"
		}
		services.Stor.Set(control.StatePrefix+"/"+req.Device, value)
	}
	jsonResponse(w, map[string]interface{}{})
}

// resolveDevice maps a device name to its control feed. Actuators map to
// their configured feeds; the registered smart devices publish on a feed
// named after the device, with their state tracked directly in the store.
func (self *Service) resolveDevice(device string) (feed string, tracked bool) {
	conf := services.Config
	if device == "buzzer" {
		return conf.Buzzer.Feed, false
	}
	if strings.HasPrefix(device, "led-") {
		if feed, ok := conf.Leds.Feeds[device[len("led-"):]]; ok {
			return feed, false
		}
		return "", false
	}
	for _, name := range conf.Devices {
		if name == device {
			return device, true
		}
	}
	return "", false
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (self *Service) apiSecurityMode(w http.ResponseWriter, r *http.Request) {
	if self.db == nil {
		errorResponse(w, 500, errNoDatabase)
		return
	}

	if r.Method == "GET" {
		mode, err := self.db.SecurityMode()
		if err != nil {
			errorResponse(w, 500, err)
			return
		}
		jsonResponse(w, map[string]interface{}{"mode": mode})
		return
	}

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, 400, fmt.Errorf("bad request: %s", err))
		return
	}
	if req.Mode != "armed" && req.Mode != "disarmed" {
		errorResponse(w, 400, fmt.Errorf("bad mode: %s", req.Mode))
		return
	}
	if err := self.db.SetSecurityMode(req.Mode); err != nil {
		errorResponse(w, 500, err)
		return
	}
	log.Println("Security mode set to", req.Mode)
	jsonResponse(w, map[string]interface{}{"mode": req.Mode})
}

func (self *Service) router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/").HandlerFunc(apiIndex)
	router.Path("/api/readings/{metric}").Methods("GET").HandlerFunc(self.apiReadings)
	router.Path("/api/events").Methods("GET").HandlerFunc(self.apiEvents)
	router.Path("/api/status").Methods("GET").HandlerFunc(self.apiStatus)
	router.Path("/api/control").Methods("POST").HandlerFunc(self.apiControl)
	router.Path("/api/security/mode").Methods("GET", "POST").HandlerFunc(self.apiSecurityMode)
	return router
}

type loggingHandler struct {
	Handler http.Handler
}

func (self loggingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Printf("%s %s\n", req.Method, req.RequestURI)
	self.Handler.ServeHTTP(w, req)
}

// Run serves until shutdown.
func (self *Service) Run() error {
	addr := services.Config.Api.Listen
	self.server = &http.Server{
		Addr:    addr,
		Handler: loggingHandler{Handler: self.router()},
	}

	go func() {
		<-services.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		self.server.Shutdown(ctx)
	}()

	log.Println("Listening on " + addr)
	err := self.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
