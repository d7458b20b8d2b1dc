// Package cli provides command-line interface functionality for the control-plane.
// It includes a RabbitMQ message consumer that subscribes to broker events
// published by queue.RabbitMQService and replays transaction lifecycle
// transitions into the durable PostgreSQL transaction store.
//
// Key Components:
//   - Cobra CLI framework integration for command structure
//   - RabbitMQ consumer with manual acknowledgment and requeue-on-failure
//   - Durable transaction lifecycle replay via db.TransactionStore
//   - Configuration management via Viper and environment variables
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"

	"kgcp.evalgo.org/common"
	"kgcp.evalgo.org/db"
	"kgcp.evalgo.org/queue"
)

// Event type routing keys a consumer subscribes to. Any other event type
// received on the queue is acknowledged and ignored; the queue is bound
// with a wildcard so it also receives event types it does not act on.
const (
	eventTransactionOpen     = "transaction.open"
	eventTransactionCommit   = "transaction.commit"
	eventTransactionRollback = "transaction.rollback"
)

// ConsumerConfig holds the complete configuration for the broker-event
// consumer: where to connect, and which durable queue to bind.
type ConsumerConfig struct {
	AMQPURL    string // RabbitMQ connection URL (amqp://...)
	Exchange   string // Topic exchange to bind to (must match the publisher's)
	Queue      string // Durable queue name this consumer owns
	RoutingKey string // Binding pattern, e.g. "transaction.#" or "#" for everything
}

// Consumer replays broker events from RabbitMQ into the durable
// transaction store. It manages its own RabbitMQ connection and channel,
// and processes messages with manual acknowledgment so a crashed consumer
// redelivers rather than loses events.
type Consumer struct {
	config     ConsumerConfig
	connection *amqp.Connection
	channel    *amqp.Channel
	store      *db.TransactionStore
	log        *common.ContextLogger
}

// NewConsumer creates a Consumer bound to store. The consumer requires an
// explicit Connect() call to establish the RabbitMQ connection.
func NewConsumer(config ConsumerConfig, store *db.TransactionStore, log *common.ContextLogger) *Consumer {
	return &Consumer{config: config, store: store, log: log}
}

// Connect establishes the RabbitMQ connection, declares this consumer's
// queue, binds it to the exchange with RoutingKey, and sets QoS to
// process one message at a time for reliable, ordered replay.
func (c *Consumer) Connect() error {
	var err error
	c.connection, err = amqp.Dial(c.config.AMQPURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.connection.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.channel.ExchangeDeclare(c.config.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := c.channel.QueueDeclare(
		c.config.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(c.config.Queue, c.config.RoutingKey, c.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	return nil
}

// Close releases the RabbitMQ channel and connection. Safe to call
// multiple times and tolerates a Consumer that never connected.
func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.connection != nil {
		c.connection.Close()
	}
}

// StartConsuming registers this consumer with RabbitMQ and processes
// deliveries in a background goroutine until the channel closes. Messages
// that fail to process are nacked and requeued; malformed messages that
// can never succeed are acknowledged to avoid a poison-message loop.
func (c *Consumer) StartConsuming() error {
	msgs, err := c.channel.Consume(
		c.config.Queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("consumer started, waiting for broker events")

	go func() {
		for msg := range msgs {
			if err := c.processDelivery(msg); err != nil {
				c.log.WithError(err).Warn("failed to process broker event, requeueing")
				msg.Nack(false, true)
				continue
			}
			msg.Ack(false)
		}
	}()

	return nil
}

// processDelivery deserializes one broker event and replays it against
// the transaction store. Malformed payloads are reported as non-retryable
// so the caller acknowledges rather than requeues them forever.
func (c *Consumer) processDelivery(msg amqp.Delivery) error {
	var event queue.BrokerEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.log.WithError(err).Warn("dropping malformed broker event")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch event.EventType {
	case eventTransactionOpen:
		reason, _ := event.Payload["reason"].(string)
		_, err := c.store.Open(ctx, event.CorrelationID, event.EventID, event.Source, reason)
		return err
	case eventTransactionCommit:
		return c.store.Commit(ctx, event.EventID)
	case eventTransactionRollback:
		reason, _ := event.Payload["reason"].(string)
		return c.store.Rollback(ctx, event.EventID, reason)
	default:
		c.log.WithFields(map[string]any{"event_type": event.EventType}).Debug("ignoring unhandled event type")
		return nil
	}
}

func init() {
	RootCmd.AddCommand(consumeCmd)
	consumeCmd.PersistentFlags().String("amqp-url", "", "RabbitMQ connection URL")
	consumeCmd.PersistentFlags().String("exchange", "kgcp.events", "RabbitMQ topic exchange name")
	consumeCmd.PersistentFlags().String("queue", "kgcp.transactions", "durable queue name this consumer owns")
	consumeCmd.PersistentFlags().String("routing-key", "transaction.#", "binding pattern for the queue")

	viper.BindPFlag("amqp.url", consumeCmd.PersistentFlags().Lookup("amqp-url"))
	viper.BindPFlag("amqp.exchange", consumeCmd.PersistentFlags().Lookup("exchange"))
	viper.BindPFlag("amqp.consumer_queue", consumeCmd.PersistentFlags().Lookup("queue"))
	viper.BindPFlag("amqp.routing_key", consumeCmd.PersistentFlags().Lookup("routing-key"))
}

// consumeCmd starts the broker-event consumer as a standalone process,
// separate from the HTTP server started by the root command. Running it
// separately lets transaction replay scale independently of API traffic.
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "replay broker events into the durable transaction store",
	Long: `Consume broker events published to the control-plane's topic exchange
and replay transaction lifecycle transitions (open, commit, rollback) into
the durable PostgreSQL transaction store.

This command starts a persistent consumer that:
- Declares and binds a durable queue to the configured exchange
- Processes incoming transaction.* events with manual acknowledgment
- Requeues events that fail to persist, and drops malformed payloads
- Supports graceful shutdown on SIGINT/SIGTERM signals`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := common.ServiceLogger("kgcpd-consumer", "dev")

		dsn := viper.GetString("postgres.dsn")
		if dsn == "" {
			logger.Fatal("postgres.dsn is required (set --postgres-dsn or POSTGRES_DSN)")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgxpool.New(ctx, dsn)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to PostgreSQL")
		}
		defer pool.Close()

		store := db.NewTransactionStore(pool, viper.GetString("postgres.notify_channel"))

		config := ConsumerConfig{
			AMQPURL:    viper.GetString("amqp.url"),
			Exchange:   viper.GetString("amqp.exchange"),
			Queue:      viper.GetString("amqp.consumer_queue"),
			RoutingKey: viper.GetString("amqp.routing_key"),
		}
		if config.AMQPURL == "" {
			logger.Fatal("amqp.url is required (set --amqp-url or AMQP_URL)")
		}

		ConsumerStart(config, store, logger)
	},
}

// ConsumerStart connects the consumer, starts consuming, and blocks until
// SIGINT or SIGTERM, at which point it closes its RabbitMQ resources and
// returns.
func ConsumerStart(config ConsumerConfig, store *db.TransactionStore, log *common.ContextLogger) {
	consumer := NewConsumer(config, store, log)
	defer consumer.Close()

	if err := consumer.Connect(); err != nil {
		log.WithError(err).Fatal("failed to connect consumer")
	}

	if err := consumer.StartConsuming(); err != nil {
		log.WithError(err).Fatal("failed to start consuming")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("consumer is running, press CTRL+C to exit")
	<-sigChan

	log.Info("shutting down consumer")
}
