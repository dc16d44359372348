// Package pubsub adapts the hub to the AMQP message bus: producers emit
// through bus topics, and persisted events are re-published for the
// storage collaborator.
package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/boardkit/event-hub/config"
)

// Provider builds watermill publishers and subscribers bound to durable
// topic exchanges.
type Provider struct {
	cfg    config.AMQPConfig
	logger watermill.LoggerAdapter
}

func NewProvider(cfg *config.Config, logger watermill.LoggerAdapter) *Provider {
	return &Provider{cfg: cfg.AMQP, logger: logger}
}

// BuildPublisher returns a publisher that routes messages into the given
// topic exchange; the watermill topic becomes the AMQP routing key.
func (p *Provider) BuildPublisher(exchange string) (message.Publisher, error) {
	pub, err := amqp.NewPublisher(p.exchangeConfig(exchange, ""), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build publisher for %s: %w", exchange, err)
	}
	return pub, nil
}

// BuildSubscriber returns a subscriber consuming the given queue, bound to
// the exchange with the routing-key pattern passed as the watermill topic.
func (p *Provider) BuildSubscriber(queue, exchange string) (message.Subscriber, error) {
	sub, err := amqp.NewSubscriber(p.exchangeConfig(exchange, queue), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build subscriber %s on %s: %w", queue, exchange, err)
	}
	return sub, nil
}

func (p *Provider) exchangeConfig(exchange, queue string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(p.cfg.URI, amqp.GenerateQueueNameConstant(queue))

	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	// Watermill topics map 1:1 onto AMQP routing keys.
	cfg.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }

	return cfg
}
