// Package db provides PostgreSQL LISTEN/NOTIFY support for real-time
// transaction-lifecycle event streaming.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kgcp.evalgo.org/common"
)

// TransactionEvent is a transaction lifecycle change notification
// published on NOTIFY, mirroring the row shape TransactionStore writes.
type TransactionEvent struct {
	TxnID      string `json:"txn_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// TransactionEventHandler is called when a transaction event is received.
type TransactionEventHandler func(event *TransactionEvent)

// Listener subscribes to PostgreSQL NOTIFY channels and dispatches
// transaction lifecycle events.
type Listener struct {
	pool        *pgxpool.Pool
	channel     string
	handlers    []TransactionEventHandler
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	running     bool
	log         *common.ContextLogger
	reconnectCh chan struct{}
}

// NewListener creates a new PostgreSQL LISTEN subscriber.
func NewListener(pool *pgxpool.Pool, channel string, log *common.ContextLogger) *Listener {
	if log == nil {
		log = common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		pool:        pool,
		channel:     channel,
		handlers:    make([]TransactionEventHandler, 0),
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
		reconnectCh: make(chan struct{}, 1),
	}
}

// OnEvent registers a handler for transaction events.
func (l *Listener) OnEvent(handler TransactionEventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, handler)
}

// Start begins listening for notifications.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	go l.listenLoop()
	return nil
}

// Stop stops listening for notifications.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}

	l.running = false
	l.cancel()
}

// listenLoop maintains the LISTEN connection with reconnection support.
func (l *Listener) listenLoop() {
	for {
		select {
		case <-l.ctx.Done():
			return
		default:
			if err := l.listen(); err != nil {
				l.log.WithError(err).Warn("listen error, reconnecting in 1s")
				select {
				case <-l.ctx.Done():
					return
				case <-time.After(time.Second):
					continue
				}
			}
		}
	}
}

// listen establishes a LISTEN connection and processes notifications.
func (l *Listener) listen() error {
	conn, err := l.pool.Acquire(l.ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(l.ctx, fmt.Sprintf("LISTEN %s", l.channel))
	if err != nil {
		return fmt.Errorf("failed to start LISTEN: %w", err)
	}

	l.log.WithFields(map[string]interface{}{"channel": l.channel}).Info("listening for transaction events")

	for {
		notification, err := conn.Conn().WaitForNotification(l.ctx)
		if err != nil {
			return fmt.Errorf("notification wait error: %w", err)
		}

		var event TransactionEvent
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			l.log.WithError(err).Warn("failed to parse notification payload")
			continue
		}

		l.dispatch(&event)
	}
}

// dispatch sends event to all registered handlers.
func (l *Listener) dispatch(event *TransactionEvent) {
	l.mu.RLock()
	handlers := make([]TransactionEventHandler, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}
