//go:build integration

package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbitMQContainer starts a RabbitMQ container for testing
func setupRabbitMQContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management-alpine",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start RabbitMQ container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())

	time.Sleep(2 * time.Second)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return url, cleanup
}

func TestRabbitMQServiceIntegrationNewService(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	config := BrokerConfig{RabbitMQURL: url, Exchange: "kgcp.events"}

	t.Run("create service successfully", func(t *testing.T) {
		service, err := NewRabbitMQService(config, nil)
		require.NoError(t, err, "Failed to create RabbitMQ service")
		assert.NotNil(t, service)
		assert.NotNil(t, service.connection)
		assert.NotNil(t, service.channel)
		service.Close()
	})

	t.Run("fail with invalid URL", func(t *testing.T) {
		badConfig := BrokerConfig{RabbitMQURL: "amqp://invalid:5672/", Exchange: "kgcp.events"}
		service, err := NewRabbitMQService(badConfig, nil)
		assert.Error(t, err, "Should fail with invalid URL")
		assert.Nil(t, service)
	})
}

func TestRabbitMQServiceIntegrationPublishEvent(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	config := BrokerConfig{RabbitMQURL: url, Exchange: "kgcp.publish.events"}
	service, err := NewRabbitMQService(config, nil)
	require.NoError(t, err)
	defer service.Close()

	t.Run("publish valid event", func(t *testing.T) {
		event := BrokerEvent{EventType: "STATUS_CHANGE", EventID: "test-001", Source: "kgcp-executor", Timestamp: float64(time.Now().Unix())}
		require.NoError(t, service.PublishEvent(event, false), "Failed to publish event")
	})

	t.Run("publish multiple events", func(t *testing.T) {
		events := []BrokerEvent{
			{EventType: "SPLIT", EventID: "test-002"},
			{EventType: "JOIN", EventID: "test-003"},
			{EventType: "MI_SPAWN", EventID: "test-004"},
		}
		for _, e := range events {
			require.NoError(t, service.PublishEvent(e, false), "Failed to publish event %s", e.EventID)
		}
	})

	t.Run("publish cancellation event", func(t *testing.T) {
		event := BrokerEvent{EventType: "CANCELLATION", EventID: "test-error-001", Payload: map[string]any{"reason": "deadline exceeded"}}
		require.NoError(t, service.PublishEvent(event, false))
	})
}

func TestRabbitMQServiceIntegrationQueueProperties(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	config := BrokerConfig{RabbitMQURL: url, Exchange: "kgcp.durable.events"}
	service, err := NewRabbitMQService(config, nil)
	require.NoError(t, err)
	defer service.Close()

	queue, err := service.channel.QueueInspect(config.Exchange + ".dlq")
	require.NoError(t, err)

	assert.Equal(t, config.Exchange+".dlq", queue.Name)
	assert.GreaterOrEqual(t, queue.Messages, 0, "Dead-letter queue should exist with a non-negative message count")
}

func TestRabbitMQServiceIntegrationClose(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	config := BrokerConfig{RabbitMQURL: url, Exchange: "kgcp.close.events"}

	t.Run("close gracefully", func(t *testing.T) {
		service, err := NewRabbitMQService(config, nil)
		require.NoError(t, err)

		err = service.PublishEvent(BrokerEvent{EventType: "STATUS_CHANGE", EventID: "close-test-001"}, false)
		require.NoError(t, err)

		assert.NotPanics(t, func() { service.Close() })
	})

	t.Run("close multiple times", func(t *testing.T) {
		service, err := NewRabbitMQService(config, nil)
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			service.Close()
			service.Close()
			service.Close()
		})
	})
}

func TestRabbitMQServiceIntegrationReconnection(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	config := BrokerConfig{RabbitMQURL: url, Exchange: "kgcp.reconnect.events"}
	service, err := NewRabbitMQService(config, nil)
	require.NoError(t, err)
	defer service.Close()

	require.NoError(t, service.PublishEvent(BrokerEvent{EventType: "STATUS_CHANGE", EventID: "reconnect-001"}, false))
	service.Close()

	service2, err := NewRabbitMQService(config, nil)
	require.NoError(t, err, "Should be able to reconnect")
	defer service2.Close()

	require.NoError(t, service2.PublishEvent(BrokerEvent{EventType: "STATUS_CHANGE", EventID: "reconnect-002"}, false), "Should be able to publish after reconnection")
}

func TestRabbitMQServiceIntegrationConcurrentPublish(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	config := BrokerConfig{RabbitMQURL: url, Exchange: "kgcp.concurrent.events"}
	service, err := NewRabbitMQService(config, nil)
	require.NoError(t, err)
	defer service.Close()

	numEvents := 50
	var wg sync.WaitGroup
	errChan := make(chan error, numEvents)

	wg.Add(numEvents)
	for i := 0; i < numEvents; i++ {
		go func(id int) {
			defer wg.Done()
			event := BrokerEvent{EventType: "STATUS_CHANGE", EventID: fmt.Sprintf("concurrent-%d", id)}
			errChan <- service.PublishEvent(event, false)
		}(i)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		assert.NoError(t, err, "Concurrent publish should succeed")
	}
}

func TestRabbitMQServiceIntegrationLargeEvents(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	config := BrokerConfig{RabbitMQURL: url, Exchange: "kgcp.large.events"}
	service, err := NewRabbitMQService(config, nil)
	require.NoError(t, err)
	defer service.Close()

	largePayload := make(map[string]any)
	for i := 0; i < 1000; i++ {
		largePayload[fmt.Sprintf("key_%d", i)] = fmt.Sprintf("value_%d_with_some_extra_data_to_make_it_larger", i)
	}

	event := BrokerEvent{EventType: "STATUS_CHANGE", EventID: "large-event-001", Payload: largePayload}
	require.NoError(t, service.PublishEvent(event, false), "Should be able to publish large events")
}
