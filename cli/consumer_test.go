// Package cli provides tests for the broker-event consumer. Event routing
// that never touches the transaction store (malformed payloads, unhandled
// event types) is covered here; persistence of open/commit/rollback is
// covered by the integration test alongside a real PostgreSQL instance.
package cli

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"

	"kgcp.evalgo.org/common"
)

func testConsumer() *Consumer {
	return NewConsumer(ConsumerConfig{}, nil, common.ServiceLogger("test", "dev"))
}

func TestProcessDeliveryMalformedJSONIsDropped(t *testing.T) {
	c := testConsumer()
	err := c.processDelivery(amqp.Delivery{Body: []byte(`{"invalid": json}`)})
	assert.NoError(t, err)
}

func TestProcessDeliveryUnhandledEventTypeIsIgnored(t *testing.T) {
	c := testConsumer()
	err := c.processDelivery(amqp.Delivery{Body: []byte(`{"event_type":"SPLIT","event_id":"evt-1"}`)})
	assert.NoError(t, err)
}
