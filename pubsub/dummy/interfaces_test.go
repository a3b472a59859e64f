package dummy

import "github.com/iadeleke/domisafe/pubsub"

// compile-time interface checks
var _ pubsub.Publisher = (*Publisher)(nil)
var _ pubsub.Subscriber = (*Subscriber)(nil)
