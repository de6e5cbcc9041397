package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"registro/internal/amqp"
)

type fakeSink struct {
	rows []auditRow
	err  error
}

type auditRow struct {
	scopeID       string
	transactionID string
	action        string
	version       int64
	occurredAt    time.Time
}

func (f *fakeSink) RecordMutation(ctx context.Context, scopeID, transactionID, action string, version int64, occurredAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, auditRow{scopeID, transactionID, action, version, occurredAt})
	return nil
}

func TestHandleMutationRecordsRow(t *testing.T) {
	sink := &fakeSink{}
	w := NewAuditWorker(sink)

	msg := amqp.NewMutationMessage("fam-1", "tx-1", "create", 7)
	if err := w.HandleMutation(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(sink.rows))
	}
	row := sink.rows[0]
	if row.scopeID != "fam-1" || row.transactionID != "tx-1" || row.action != "create" || row.version != 7 {
		t.Errorf("row = %+v", row)
	}
	if row.occurredAt.IsZero() {
		t.Error("occurredAt should come from the message timestamp")
	}

	processed, rejected := w.Stats()
	if processed != 1 || rejected != 0 {
		t.Errorf("stats = %d/%d, want 1/0", processed, rejected)
	}
}

func TestHandleMutationInvalidMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  *amqp.MutationMessage
	}{
		{"empty scope", amqp.NewMutationMessage("", "tx-1", "create", 1)},
		{"empty transaction", amqp.NewMutationMessage("fam-1", "", "create", 1)},
		{"unknown action", amqp.NewMutationMessage("fam-1", "tx-1", "upsert", 1)},
		{"negative version", amqp.NewMutationMessage("fam-1", "tx-1", "delete", -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			w := NewAuditWorker(sink)

			// Invalid messages are dropped, not retried.
			if err := w.HandleMutation(context.Background(), tt.msg); err != nil {
				t.Fatalf("invalid message should not error: %v", err)
			}
			if len(sink.rows) != 0 {
				t.Errorf("invalid message was recorded: %+v", sink.rows)
			}
			_, rejected := w.Stats()
			if rejected != 1 {
				t.Errorf("rejected = %d, want 1", rejected)
			}
		})
	}
}

func TestHandleMutationSinkFailureIsRetryable(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	w := NewAuditWorker(sink)

	msg := amqp.NewMutationMessage("fam-1", "tx-1", "update", 3)
	if err := w.HandleMutation(context.Background(), msg); err == nil {
		t.Fatal("sink failure must surface so the message is redelivered")
	}

	processed, rejected := w.Stats()
	if processed != 0 || rejected != 0 {
		t.Errorf("stats = %d/%d, want 0/0", processed, rejected)
	}
}
