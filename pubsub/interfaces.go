package pubsub

type Publisher interface {
	ID() string
	Emit(m *Message)
	Close()
}

type Subscriber interface {
	ID() string
	Subscribe(feeds ...string) <-chan *Message
	Close(<-chan *Message)
}
