// Package pubsub holds the feed message type and the publish/subscribe
// endpoint interfaces.
package pubsub

import (
	"fmt"
	"strconv"
)

// Message is one value on a feed. Payloads are plain scalar strings - the
// feed broker displays them directly, so no envelope.
type Message struct {
	Feed     string
	Payload  []byte
	Retained bool
}

func New(feed string, payload string) *Message {
	return &Message{Feed: feed, Payload: []byte(payload)}
}

// NewValue formats a scalar for a feed. Booleans become 1/0, floats drop
// trailing zeros.
func NewValue(feed string, value interface{}) *Message {
	var payload string
	switch v := value.(type) {
	case bool:
		if v {
			payload = "1"
		} else {
			payload = "0"
		}
	case float64:
		payload = formatFloat(v)
	default:
		payload = fmt.Sprint(v)
	}
	return New(feed, payload)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (m *Message) String() string {
	return m.Feed + ": " + string(m.Payload)
}

func (m *Message) SetRetained(retained bool) {
	m.Retained = retained
}
