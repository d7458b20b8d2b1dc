// Package queue implements the optional hook/event pub-sub broker: a
// topic-exchange RabbitMQ publisher that announces control-plane events
// (SPLIT, JOIN, MI_SPAWN, CANCELLATION, STATUS_CHANGE, ...) to external
// subscribers.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"kgcp.evalgo.org/common"
)

// BrokerEvent is the wire shape of a published message. Payload carries
// whatever shape the originating eventstore.Event's own Payload map holds.
type BrokerEvent struct {
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload"`
	CorrelationID string         `json:"correlation_id"`
	Source        string         `json:"source"`
	Timestamp     float64        `json:"timestamp"` // seconds since epoch
	EventID       string         `json:"event_id"`
}

// BrokerConfig configures the exchange topology: a topic exchange named
// Exchange, with a durable dead-letter queue declared as "<exchange>.dlq".
// That queue is not bound to the exchange, and no queue is configured to
// dead-letter into it.
type BrokerConfig struct {
	RabbitMQURL string
	Exchange    string
}

// EventPublisher publishes control-plane events to the broker.
// PublishEvent's broadcast flag selects the routing key: event.EventType
// by default, or the empty key ("fan out to everyone") when broadcast
// is true.
type EventPublisher interface {
	PublishEvent(event BrokerEvent, broadcast bool) error
	Close() error
}

// RabbitMQService is a topic-exchange-backed EventPublisher: connection,
// channel, and config held together behind a dialer seam so tests can
// inject a mock connection/channel pair.
type RabbitMQService struct {
	connection AMQPConnection
	channel    AMQPChannel
	config     BrokerConfig
	log        *common.ContextLogger
}

// NewRabbitMQService dials RabbitMQURL, declares Exchange as a durable
// topic exchange, and declares (without binding) its dead-letter queue.
func NewRabbitMQService(config BrokerConfig, log *common.ContextLogger) (*RabbitMQService, error) {
	return NewRabbitMQServiceWithDialer(config, &RealAMQPDialer{}, log)
}

// NewRabbitMQServiceWithDialer allows injecting a custom dialer for testing.
func NewRabbitMQServiceWithDialer(config BrokerConfig, dialer AMQPDialer, log *common.ContextLogger) (*RabbitMQService, error) {
	if log == nil {
		log = common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
	}

	conn, err := dialer.Dial(config.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := ch.ExchangeDeclare(config.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", config.Exchange, err)
	}

	dlqName := config.Exchange + ".dlq"
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare dead-letter queue %q: %w", dlqName, err)
	}

	return &RabbitMQService{connection: conn, channel: ch, config: config, log: log}, nil
}

// PublishEvent serializes event to JSON and publishes it to the
// configured topic exchange. Routing key is event.EventType unless
// broadcast is set, in which case the routing key is empty so every
// queue bound with a wildcard binding receives it. No delivery
// guarantee stronger than at-least-once is made.
func (r *RabbitMQService) PublishEvent(event BrokerEvent, broadcast bool) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := event.EventType
	if broadcast {
		routingKey = ""
	}

	if err := r.channel.Publish(
		r.config.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{ContentType: "application/json", Body: body},
	); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	r.log.WithFields(map[string]any{
		"event_type": event.EventType, "event_id": event.EventID, "routing_key": routingKey,
	}).Debug("published broker event")
	return nil
}

// Close closes the channel and connection, tolerating either being nil.
func (r *RabbitMQService) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.connection != nil {
		r.connection.Close()
	}
	return nil
}
