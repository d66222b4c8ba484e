package transport

import (
	"errors"

	"github.com/nsqio/go-nsq"
)

var errNoPublisher = errors.New("transport: no publisher")

// nsqPublisher wraps a go-nsq producer behind the Publisher abstraction.
type nsqPublisher struct {
	producer *nsq.Producer
}

// NewNSQPublisher returns a factory opening a producer against addr
// (host:port of an nsqd). The producer connects lazily on first publish.
func NewNSQPublisher(addr string) func() (Publisher, error) {
	return func() (Publisher, error) {
		cfg := nsq.NewConfig()
		producer, err := nsq.NewProducer(addr, cfg)
		if err != nil {
			return nil, err
		}
		// go-nsq logs through its own logger; route it to nothing and
		// let the manager's slog lines describe failures instead.
		producer.SetLoggerLevel(nsq.LogLevelError)
		return &nsqPublisher{producer: producer}, nil
	}
}

func (p *nsqPublisher) Publish(topic string, body []byte) error {
	return p.producer.Publish(topic, body)
}

func (p *nsqPublisher) Stop() {
	p.producer.Stop()
}
