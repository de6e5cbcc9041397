// Package services orchestrates ledger operations across the store, the
// totals cache and the mutation-event bus.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"registro/internal/aggregate"
	"registro/internal/amqp"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/query"
)

// defaultPageSize applies when a caller passes a non-positive page size.
const defaultPageSize = 20

// MutationPublisher is the outbound event surface. Satisfied by the
// AMQP client; nil-safe at the service level.
type MutationPublisher interface {
	PublishMutation(ctx context.Context, msg *amqp.MutationMessage) error
}

// BrowseRequest is one filtered, paginated view of a scope's ledger.
type BrowseRequest struct {
	ScopeID  string
	Filter   query.FilterSpec
	Page     int
	PageSize int
	FocusID  string // optional record to scroll into view
}

// BrowseResult carries the page, cached totals, and focus resolution.
// FocusFound is false when a focus was requested but the record does not
// satisfy the filter; the caller decides whether to clear or relax it.
type BrowseResult struct {
	Page       core.TransactionPage
	Totals     core.Totals
	Version    int64
	FocusFound bool
}

type TransactionService struct {
	store     ledger.Store
	totals    *aggregate.Cache
	publisher MutationPublisher
}

func NewTransactionService(store ledger.Store, totals *aggregate.Cache, publisher MutationPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		totals:    totals,
		publisher: publisher,
	}
}

// Browse executes the filter against the ledger and returns the page
// together with totals memoized under the scope's current mutation
// version. A focus target, when present and matching, overrides the
// requested page with the one containing the record.
func (s *TransactionService) Browse(ctx context.Context, req BrowseRequest) (BrowseResult, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}

	result := BrowseResult{}
	if req.FocusID != "" {
		rank, found, err := s.store.Locate(ctx, req.ScopeID, req.Filter, req.FocusID)
		if err != nil {
			return BrowseResult{}, fmt.Errorf("locate focus target: %w", err)
		}
		result.FocusFound = found
		if found {
			req.Page = int(rank)/req.PageSize + 1
		}
	}

	page, err := s.store.Query(ctx, req.ScopeID, req.Filter, req.Page, req.PageSize)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("query transactions: %w", err)
	}
	result.Page = page

	version, err := s.store.CurrentMutationVersion(ctx, req.ScopeID)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("read mutation version: %w", err)
	}
	result.Version = version

	totals, err := s.totals.Totals(ctx, req.ScopeID, version, req.Filter, func(ctx context.Context) (core.Totals, error) {
		return s.store.Aggregate(ctx, req.ScopeID, req.Filter)
	})
	if err != nil {
		return BrowseResult{}, fmt.Errorf("aggregate totals: %w", err)
	}
	result.Totals = totals

	return result, nil
}

// Create saves a transaction and announces the mutation. The local write
// is authoritative; a publish failure is logged, never surfaced.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (string, error) {
	id, err := s.store.Create(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	s.announce(ctx, tx.ScopeID, id, "create")
	return id, nil
}

func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) error {
	if err := s.store.Update(ctx, tx); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	s.announce(ctx, tx.ScopeID, tx.ID, "update")
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, scopeID, id string) error {
	if err := s.store.Delete(ctx, scopeID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.announce(ctx, scopeID, id, "delete")
	return nil
}

func (s *TransactionService) announce(ctx context.Context, scopeID, id, action string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Mutation publisher not configured, skipping event",
			"scope_id", scopeID, "transaction_id", id, "action", action)
		return
	}
	version, err := s.store.CurrentMutationVersion(ctx, scopeID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read version for mutation event",
			"scope_id", scopeID, "error", err)
		return
	}
	msg := amqp.NewMutationMessage(scopeID, id, action, version)
	if err := s.publisher.PublishMutation(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mutation event",
			"scope_id", scopeID, "transaction_id", id, "action", action, "error", err)
	}
}
