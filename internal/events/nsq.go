package events

import (
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"
)

type NSQPublisher struct {
	producer *nsq.Producer
}

// NewNSQPublisher connects a producer to the nsqd at addr.
func NewNSQPublisher(addr string, logger *slog.Logger) (*NSQPublisher, error) {
	cfg := nsq.NewConfig()

	producer, err := nsq.NewProducer(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	producer.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn), nsq.LogLevelWarning)

	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("nsq ping %s: %w", addr, err)
	}

	logger.Info("event publisher connected", "nsqd", addr)
	return &NSQPublisher{producer: producer}, nil
}

func (p *NSQPublisher) Publish(topic string, body []byte) error {
	return p.producer.Publish(topic, body)
}

func (p *NSQPublisher) Close() {
	p.producer.Stop()
}
