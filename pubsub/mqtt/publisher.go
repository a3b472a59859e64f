package mqtt

import (
	"log"
	"time"

	"github.com/iadeleke/domisafe/pubsub"
)

// Publisher for mqtt
type Publisher struct {
	broker *Broker
}

// ID of Publisher
func (pub *Publisher) ID() string {
	return pub.broker.ID()
}

// Emit a message to its feed topic. Best-effort: a publish failure is logged
// and dropped, the broker reconnects in the background.
func (pub *Publisher) Emit(m *pubsub.Message) {
	topic := pub.broker.topic(m.Feed)
	token := pub.broker.client.Publish(topic, 1, m.Retained, m.Payload)
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		log.Println("Error publishing:", token.Error())
	}
}

func (pub *Publisher) Close() {
	pub.broker.Disconnect()
}
