package mqtt

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// Broker is a single shared connection to the mqtt feed broker. Feeds are
// mapped to topics as <username>/feeds/<feed>.
type Broker struct {
	url        string
	prefix     string
	client     MQTT.Client
	subscriber *Subscriber
}

func NewBroker(url, username, key string) (*Broker, error) {
	hostname, _ := os.Hostname()
	clientId := fmt.Sprintf("domisafe/%s-%d-%d", hostname, os.Getpid(), rand.Int())

	broker := &Broker{
		url:    url,
		prefix: username + "/feeds/",
	}
	opts := MQTT.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID(clientId)
	opts.SetUsername(username)
	opts.SetPassword(key)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(broker.connectHandler)
	broker.client = MQTT.NewClient(opts)

	if token := broker.client.Connect(); token.WaitTimeout(30*time.Second) && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "mqtt connect")
	}
	return broker, nil
}

func (self *Broker) ID() string {
	return "mqtt: " + self.url
}

func (self *Broker) connectHandler(client MQTT.Client) {
	if self.subscriber != nil {
		self.subscriber.resubscribe()
	}
}

func (self *Broker) topic(feed string) string {
	return self.prefix + feed
}

func (self *Broker) feed(topic string) string {
	if len(topic) > len(self.prefix) {
		return topic[len(self.prefix):]
	}
	return topic
}

func (self *Broker) Publisher() *Publisher {
	return &Publisher{broker: self}
}

func (self *Broker) Subscriber() *Subscriber {
	if self.subscriber == nil {
		self.subscriber = NewSubscriber(self)
	}
	return self.subscriber
}

// Disconnect releases the connection, allowing a little time for inflight
// messages to flush.
func (self *Broker) Disconnect() {
	self.client.Disconnect(250)
	log.Println("mqtt disconnected")
}
