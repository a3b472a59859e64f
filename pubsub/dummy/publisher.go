package dummy

import "github.com/iadeleke/domisafe/pubsub"

// Dummy Publisher for testing
type Publisher struct {
	Messages []*pubsub.Message
}

func (self *Publisher) ID() string {
	return "dummy"
}

func (self *Publisher) Emit(m *pubsub.Message) {
	self.Messages = append(self.Messages, m)
}

func (self *Publisher) Close() {
}
