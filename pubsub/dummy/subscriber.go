package dummy

import "github.com/iadeleke/domisafe/pubsub"

// Subscriber for testing: replays queued messages to matching subscriptions.
type Subscriber struct {
	Messages []*pubsub.Message
}

// ID of Subscriber
func (sub *Subscriber) ID() string {
	return "dummy"
}

func (sub *Subscriber) Subscribe(feeds ...string) <-chan *pubsub.Message {
	set := map[string]bool{}
	for _, feed := range feeds {
		set[feed] = true
	}
	ch := make(chan *pubsub.Message)
	go func() {
		for _, m := range sub.Messages {
			if set[m.Feed] {
				ch <- m
			}
		}
		close(ch)
	}()
	return ch
}

// Close the channel
func (sub *Subscriber) Close(<-chan *pubsub.Message) {
}
