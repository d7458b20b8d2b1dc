//go:build integration

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"kgcp.evalgo.org/common"
	"kgcp.evalgo.org/db"
)

func delivery(body []byte) amqp.Delivery {
	return amqp.Delivery{Body: body}
}

const consumerSchema = `
CREATE TABLE control_plane_transactions (
	id              BIGSERIAL PRIMARY KEY,
	txn_id          TEXT UNIQUE NOT NULL,
	workflow_id     TEXT NOT NULL,
	status          TEXT NOT NULL,
	agent           TEXT NOT NULL DEFAULT '',
	reason          TEXT,
	rollback_reason TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func setupConsumerPostgres(t *testing.T) *db.TransactionStore {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, consumerSchema)
	require.NoError(t, err)

	return db.NewTransactionStore(pool, "control_plane_transactions_changed")
}

func TestConsumerProcessDeliveryReplaysTransactionLifecycle(t *testing.T) {
	store := setupConsumerPostgres(t)
	c := NewConsumer(ConsumerConfig{}, store, common.ServiceLogger("test", "dev"))
	ctx := context.Background()

	openBody, err := json.Marshal(map[string]any{
		"event_type":     eventTransactionOpen,
		"event_id":       "txn-1",
		"correlation_id": "wf-1",
	})
	require.NoError(t, err)
	require.NoError(t, c.processDelivery(delivery(openBody)))

	rec, err := store.Get(ctx, "txn-1")
	require.NoError(t, err)
	require.Equal(t, db.TxOpen, rec.Status)

	commitBody, err := json.Marshal(map[string]any{
		"event_type": eventTransactionCommit,
		"event_id":   "txn-1",
	})
	require.NoError(t, err)
	require.NoError(t, c.processDelivery(delivery(commitBody)))

	rec, err = store.Get(ctx, "txn-1")
	require.NoError(t, err)
	require.Equal(t, db.TxCommitted, rec.Status)
}

func TestConsumerProcessDeliveryReplaysRollbackWithReason(t *testing.T) {
	store := setupConsumerPostgres(t)
	c := NewConsumer(ConsumerConfig{}, store, common.ServiceLogger("test", "dev"))
	ctx := context.Background()

	openBody, err := json.Marshal(map[string]any{
		"event_type":     eventTransactionOpen,
		"event_id":       "txn-2",
		"correlation_id": "wf-2",
	})
	require.NoError(t, err)
	require.NoError(t, c.processDelivery(delivery(openBody)))

	rollbackBody, err := json.Marshal(map[string]any{
		"event_type": eventTransactionRollback,
		"event_id":   "txn-2",
		"payload":    map[string]any{"reason": "hook condition failed"},
	})
	require.NoError(t, err)
	require.NoError(t, c.processDelivery(delivery(rollbackBody)))

	rec, err := store.Get(ctx, "txn-2")
	require.NoError(t, err)
	require.Equal(t, db.TxRolledBack, rec.Status)
	require.Equal(t, "hook condition failed", rec.RollbackReason)
}
