package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/iadeleke/domisafe/sensors"
)

// Postgres is the remote database sink (a Neon instance in production).
// Every insert is a self-contained statement; database/sql pools the
// connection, so no extra locking is needed across sinks.
type Postgres struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS environmental_readings (
		id SERIAL PRIMARY KEY,
		temperature DOUBLE PRECISION,
		humidity DOUBLE PRECISION,
		raw_timestamp TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS security_events (
		id SERIAL PRIMARY KEY,
		event_type VARCHAR(32),
		raw_timestamp TIMESTAMPTZ,
		metadata JSONB,
		created_at TIMESTAMPTZ DEFAULT now()
	)`,
	`ALTER TABLE security_events ADD COLUMN IF NOT EXISTS metadata JSONB`,
	`CREATE TABLE IF NOT EXISTS security_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		mode VARCHAR(16) NOT NULL DEFAULT 'disarmed'
	)`,
	`INSERT INTO security_state (id, mode) VALUES (1, 'disarmed')
		ON CONFLICT (id) DO NOTHING`,
}

// OpenPostgres connects and ensures the schema - the DDL is idempotent, safe
// to run on every startup.
func OpenPostgres(url string) (*Postgres, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to database")
	}
	self := &Postgres{db: db}
	if err := self.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return self, nil
}

func (self *Postgres) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := self.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "ensuring schema")
		}
	}
	return nil
}

func (self *Postgres) InsertReading(reading sensors.Reading) error {
	_, err := self.db.Exec(
		`INSERT INTO environmental_readings (temperature, humidity, raw_timestamp) VALUES ($1, $2, $3)`,
		reading.Temperature, reading.Humidity, reading.Timestamp)
	return err
}

func (self *Postgres) InsertSecurityEvent(eventType string, event sensors.SecurityEvent) error {
	metadata, err := json.Marshal(event.Map())
	if err != nil {
		return err
	}
	_, err = self.db.Exec(
		`INSERT INTO security_events (event_type, raw_timestamp, metadata) VALUES ($1, $2, $3)`,
		eventType, event.Timestamp, metadata)
	return err
}

// Point is one {timestamp, value} pair for the query service.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

var readingColumns = map[string]string{
	"temperature": "temperature",
	"humidity":    "humidity",
}

// QueryReadings returns points for a metric, oldest first, optionally
// bounded by date range and limit. The metric name selects a fixed column -
// never interpolated from user input directly.
func (self *Postgres) QueryReadings(metric string, from, to *time.Time, limit int) ([]Point, error) {
	column, ok := readingColumns[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", metric)
	}

	query := fmt.Sprintf(`SELECT raw_timestamp, %s FROM environmental_readings`, column)
	clauses := []string{}
	args := []interface{}{}
	if from != nil {
		args = append(args, *from)
		clauses = append(clauses, fmt.Sprintf("raw_timestamp >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		clauses = append(clauses, fmt.Sprintf("raw_timestamp <= $%d", len(args)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY raw_timestamp"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := self.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Event is one persisted security event for the query service.
type Event struct {
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// QueryEvents returns the most recent security events, newest first.
func (self *Postgres) QueryEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := self.db.Query(
		`SELECT event_type, raw_timestamp, metadata FROM security_events ORDER BY raw_timestamp DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var metadata []byte
		if err := rows.Scan(&event.EventType, &event.Timestamp, &metadata); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			json.Unmarshal(metadata, &event.Metadata)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// SecurityMode reads the singleton mode row.
func (self *Postgres) SecurityMode() (string, error) {
	var mode string
	err := self.db.QueryRow(`SELECT mode FROM security_state WHERE id = 1`).Scan(&mode)
	return mode, err
}

// SetSecurityMode updates the singleton mode row.
func (self *Postgres) SetSecurityMode(mode string) error {
	_, err := self.db.Exec(
		`INSERT INTO security_state (id, mode) VALUES (1, $1)
			ON CONFLICT (id) DO UPDATE SET mode = EXCLUDED.mode`,
		mode)
	return err
}

func (self *Postgres) Close() error {
	return self.db.Close()
}
