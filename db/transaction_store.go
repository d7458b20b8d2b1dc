// Package db persists the durable half of transaction lifecycle: one row
// per hook transaction (open/committed/rolled_back) plus one audit row
// per hook receipt recorded against it.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kgcp.evalgo.org/common"
	"kgcp.evalgo.org/hooks"
)

// Transaction lifecycle states. A transaction is always created open and
// moves to exactly one terminal state; there is no path back to open.
const (
	TxOpen       = "open"
	TxCommitted  = "committed"
	TxRolledBack = "rolled_back"
)

// TransactionRecord is the durable row for one hook transaction.
// Agent and Reason are the transaction's provenance: who opened it and
// why. CreatedAt doubles as the provenance timestamp.
type TransactionRecord struct {
	TxnID          string    `json:"txn_id"`
	WorkflowID     string    `json:"workflow_id"`
	Status         string    `json:"status"`
	Agent          string    `json:"agent"`
	Reason         string    `json:"reason,omitempty"`
	RollbackReason string    `json:"rollback_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TransactionStore provides persistent transaction and hook-receipt
// audit storage using PostgreSQL. All state is stored in the database -
// no in-memory caching.
type TransactionStore struct {
	pool    *pgxpool.Pool
	channel string // NOTIFY channel name
}

// NewTransactionStore creates a new transaction store.
func NewTransactionStore(pool *pgxpool.Pool, notifyChannel string) *TransactionStore {
	return &TransactionStore{
		pool:    pool,
		channel: notifyChannel,
	}
}

// Open creates a new open transaction record for workflowID under txnID,
// recording agent (who/what opened it, e.g. a workflow.Executor's
// ActorID) and reason (why) as its provenance.
func (s *TransactionStore) Open(ctx context.Context, workflowID, txnID, agent, reason string) (*TransactionRecord, error) {
	query := `
		INSERT INTO control_plane_transactions (txn_id, workflow_id, status, agent, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING txn_id, workflow_id, status, agent, COALESCE(reason, ''), COALESCE(rollback_reason, ''), created_at, updated_at`

	rec := &TransactionRecord{}
	err := s.pool.QueryRow(ctx, query, txnID, workflowID, TxOpen, agent, reason).Scan(
		&rec.TxnID, &rec.WorkflowID, &rec.Status, &rec.Agent, &rec.Reason, &rec.RollbackReason, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction: %w", err)
	}

	return rec, nil
}

// Get retrieves a transaction record by txnID.
func (s *TransactionStore) Get(ctx context.Context, txnID string) (*TransactionRecord, error) {
	query := `
		SELECT txn_id, workflow_id, status, agent, COALESCE(reason, ''), COALESCE(rollback_reason, ''), created_at, updated_at
		FROM control_plane_transactions
		WHERE txn_id = $1`

	rec := &TransactionRecord{}
	err := s.pool.QueryRow(ctx, query, txnID).Scan(
		&rec.TxnID, &rec.WorkflowID, &rec.Status, &rec.Agent, &rec.Reason, &rec.RollbackReason, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return rec, nil
}

// Commit transitions txnID from open to committed. Committing a
// transaction that is not currently open (already committed, already
// rolled back, or unknown) is rejected.
func (s *TransactionStore) Commit(ctx context.Context, txnID string) error {
	query := `
		UPDATE control_plane_transactions
		SET status = $1, updated_at = NOW()
		WHERE txn_id = $2 AND status = $3`

	result, err := s.pool.Exec(ctx, query, TxCommitted, txnID, TxOpen)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.NewKGError(common.ErrValidation,
			fmt.Sprintf("transaction not open or not found: txn=%s", txnID), nil)
	}

	return nil
}

// Rollback transitions txnID from open to rolled_back, recording reason.
// POST_COMMIT hooks never fire for a rolled-back transaction; callers
// must check ShouldRollback before reaching that phase.
func (s *TransactionStore) Rollback(ctx context.Context, txnID, reason string) error {
	query := `
		UPDATE control_plane_transactions
		SET status = $1, rollback_reason = $2, updated_at = NOW()
		WHERE txn_id = $3 AND status = $4`

	result, err := s.pool.Exec(ctx, query, TxRolledBack, reason, txnID, TxOpen)
	if err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.NewKGError(common.ErrValidation,
			fmt.Sprintf("transaction not open or not found: txn=%s", txnID), nil)
	}

	return nil
}

// RecordReceipt appends one audit row for a hook receipt produced during
// txnID's phase evaluation. Receipts are append-only: a hook transaction
// accumulates one row per hook that actually ran, in evaluation order.
func (s *TransactionStore) RecordReceipt(ctx context.Context, txnID string, r hooks.HookReceipt) error {
	query := `
		INSERT INTO control_plane_hook_receipts
			(txn_id, hook_id, phase, condition_matched, action_taken, duration_ms, triples_affected, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		txnID, r.HookID, string(r.Phase), r.ConditionMatched, string(r.ActionTaken),
		r.DurationMS, r.TriplesAffected, r.Error, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record hook receipt: %w", err)
	}

	return nil
}

// GetReceipts returns every recorded hook receipt for txnID in the order
// they were appended.
func (s *TransactionStore) GetReceipts(ctx context.Context, txnID string) ([]hooks.HookReceipt, error) {
	query := `
		SELECT hook_id, phase, condition_matched, action_taken, duration_ms, triples_affected, error, created_at
		FROM control_plane_hook_receipts
		WHERE txn_id = $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hook receipts: %w", err)
	}
	defer rows.Close()

	var receipts []hooks.HookReceipt
	for rows.Next() {
		var r hooks.HookReceipt
		var phase, action string
		if err := rows.Scan(&r.HookID, &phase, &r.ConditionMatched, &action,
			&r.DurationMS, &r.TriplesAffected, &r.Error, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan hook receipt: %w", err)
		}
		r.Phase = hooks.Phase(phase)
		r.ActionTaken = hooks.ActionKind(action)
		receipts = append(receipts, r)
	}

	return receipts, nil
}

// GetByStatus returns every transaction currently in status, most
// recently updated first. status must be one of the Tx* constants.
func (s *TransactionStore) GetByStatus(ctx context.Context, status string) ([]*TransactionRecord, error) {
	query := `
		SELECT txn_id, workflow_id, status, agent, COALESCE(reason, ''), COALESCE(rollback_reason, ''), created_at, updated_at
		FROM control_plane_transactions
		WHERE status = $1
		ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions by status: %w", err)
	}
	defer rows.Close()

	var recs []*TransactionRecord
	for rows.Next() {
		rec := &TransactionRecord{}
		if err := rows.Scan(&rec.TxnID, &rec.WorkflowID, &rec.Status, &rec.Agent, &rec.Reason, &rec.RollbackReason,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// GetOpenByWorkflow returns every still-open transaction for a workflow,
// oldest first. Used on recovery to find transactions a crashed process
// left open so a supervisor can roll them forward or back.
func (s *TransactionStore) GetOpenByWorkflow(ctx context.Context, workflowID string) ([]*TransactionRecord, error) {
	query := `
		SELECT txn_id, workflow_id, status, agent, COALESCE(reason, ''), COALESCE(rollback_reason, ''), created_at, updated_at
		FROM control_plane_transactions
		WHERE workflow_id = $1 AND status = $2
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, workflowID, TxOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to get open transactions: %w", err)
	}
	defer rows.Close()

	var recs []*TransactionRecord
	for rows.Next() {
		rec := &TransactionRecord{}
		if err := rows.Scan(&rec.TxnID, &rec.WorkflowID, &rec.Status, &rec.Agent, &rec.Reason, &rec.RollbackReason,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, nil
}
