package sensors

import (
	dht "github.com/d2r2/go-dht"
	"github.com/pkg/errors"
)

// DHT11 reads the digital temperature/humidity sensor on a GPIO pin. The
// bit-level timing lives in the driver library; retry and pacing policy is
// the Environment adapter's job, so each ReadOnce is a single attempt.
type DHT11 struct {
	pin int
}

func NewDHT11(pin int) *DHT11 {
	return &DHT11{pin: pin}
}

func (self *DHT11) ReadOnce() (float64, float64, error) {
	temperature, humidity, err := dht.ReadDHTxx(dht.DHT11, self.pin, false)
	if err != nil {
		return 0, 0, errors.Wrap(err, "dht11 read")
	}
	return float64(temperature), float64(humidity), nil
}
