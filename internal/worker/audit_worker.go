// Package worker processes mutation events off the queue into the audit
// trail. The request path never writes audit rows itself; losing an
// event costs an audit entry, never ledger data.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"registro/internal/amqp"
)

// AuditSink persists one audit row per processed mutation event.
// Satisfied by storage.SQLiteRepository.
type AuditSink interface {
	RecordMutation(ctx context.Context, scopeID, transactionID, action string, version int64, occurredAt time.Time) error
}

// AuditWorker turns mutation messages into audit trail rows.
type AuditWorker struct {
	sink AuditSink

	processed atomic.Int64
	rejected  atomic.Int64
}

func NewAuditWorker(sink AuditSink) *AuditWorker {
	return &AuditWorker{sink: sink}
}

// HandleMutation processes a single mutation message. A returned error
// leaves the message unacked so the broker redelivers it; invalid
// messages are rejected permanently instead.
func (w *AuditWorker) HandleMutation(ctx context.Context, msg *amqp.MutationMessage) error {
	if err := validateMessage(msg); err != nil {
		w.rejected.Add(1)
		slog.WarnContext(ctx, "Rejecting invalid mutation message",
			"scope_id", msg.ScopeID,
			"transaction_id", msg.TransactionID,
			"action", msg.Action,
			"error", err)
		return nil
	}

	occurredAt := msg.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	if err := w.sink.RecordMutation(ctx, msg.ScopeID, msg.TransactionID, msg.Action, msg.Version, occurredAt); err != nil {
		return fmt.Errorf("record mutation audit: %w", err)
	}

	w.processed.Add(1)
	slog.InfoContext(ctx, "Recorded mutation audit entry",
		"scope_id", msg.ScopeID,
		"transaction_id", msg.TransactionID,
		"action", msg.Action,
		"version", msg.Version)
	return nil
}

// Stats reports how many messages this worker processed and rejected.
func (w *AuditWorker) Stats() (processed, rejected int64) {
	return w.processed.Load(), w.rejected.Load()
}

func validateMessage(msg *amqp.MutationMessage) error {
	if msg.ScopeID == "" {
		return fmt.Errorf("empty scope id")
	}
	if msg.TransactionID == "" {
		return fmt.Errorf("empty transaction id")
	}
	switch msg.Action {
	case "create", "update", "delete":
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.Version < 0 {
		return fmt.Errorf("negative version %d", msg.Version)
	}
	return nil
}
