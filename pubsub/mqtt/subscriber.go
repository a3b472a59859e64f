package mqtt

import (
	"log"
	"sync"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/iadeleke/domisafe/pubsub"
)

type messageChannel struct {
	C     chan *pubsub.Message
	feeds map[string]bool
}

// Subscriber dispatches inbound feed messages to subscribed channels.
type Subscriber struct {
	broker         *Broker
	channels       []messageChannel
	channelsLock   sync.Mutex
	topicCount     map[string]int
	topicCountLock sync.RWMutex
}

func NewSubscriber(broker *Broker) *Subscriber {
	return &Subscriber{broker: broker, topicCount: map[string]int{}}
}

func (self *Subscriber) ID() string {
	return self.broker.ID()
}

func (self *Subscriber) messageHandler(client MQTT.Client, msg MQTT.Message) {
	feed := self.broker.feed(msg.Topic())
	message := pubsub.New(feed, string(msg.Payload()))
	message.SetRetained(msg.Retained())
	self.channelsLock.Lock()
	for _, ch := range self.channels {
		if ch.feeds[feed] {
			ch.C <- message
		}
	}
	self.channelsLock.Unlock()
}

// resubscribe on (re)connection - otherwise a broker restart silently drops
// all the control feeds.
func (self *Subscriber) resubscribe() {
	subs := map[string]byte{}
	self.topicCountLock.RLock()
	for topic := range self.topicCount {
		subs[topic] = 1 // QOS
	}
	self.topicCountLock.RUnlock()

	if len(subs) > 0 {
		log.Println("Connected, subscribing:", subs)
		if token := self.broker.client.SubscribeMultiple(subs, self.messageHandler); token.Wait() && token.Error() != nil {
			log.Println("Error subscribing:", token.Error())
		}
	}
}

func (self *Subscriber) Subscribe(feeds ...string) <-chan *pubsub.Message {
	subs := map[string]byte{}
	self.topicCountLock.Lock()
	for _, feed := range feeds {
		topic := self.broker.topic(feed)
		if _, exists := self.topicCount[topic]; !exists {
			subs[topic] = 1 // QOS
		}
		self.topicCount[topic]++
	}
	self.topicCountLock.Unlock()

	ch := messageChannel{
		C:     make(chan *pubsub.Message, 16),
		feeds: map[string]bool{},
	}
	for _, feed := range feeds {
		ch.feeds[feed] = true
	}
	self.channelsLock.Lock()
	self.channels = append(self.channels, ch)
	self.channelsLock.Unlock()

	if len(subs) > 0 {
		if token := self.broker.client.SubscribeMultiple(subs, self.messageHandler); token.Wait() && token.Error() != nil {
			log.Println("Error subscribing:", token.Error())
		}
	}
	return ch.C
}

func (self *Subscriber) Close(channel <-chan *pubsub.Message) {
	self.channelsLock.Lock()
	var channels []messageChannel
	for _, ch := range self.channels {
		if channel == (<-chan *pubsub.Message)(ch.C) {
			close(ch.C)
		} else {
			channels = append(channels, ch)
		}
	}
	self.channels = channels
	self.channelsLock.Unlock()
}
