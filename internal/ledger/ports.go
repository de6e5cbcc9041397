package ledger

import (
	"context"
	"errors"

	"registro/internal/core"
	"registro/internal/query"
)

var ErrNotFound = errors.New("transaction not found")

// Ports for the ledger store. Every read takes the canonical FilterSpec;
// the store applies it conjunctively with set-membership OR within a
// field, ordered most-recent-first with the identifier as tie-breaker.
type (
	Querier interface {
		// Query returns one ordered page of the filtered ledger.
		// page is 1-based.
		Query(ctx context.Context, scopeID string, spec query.FilterSpec, page, pageSize int) (core.TransactionPage, error)
	}

	Aggregator interface {
		// Aggregate computes grouped sums over the filtered set.
		Aggregate(ctx context.Context, scopeID string, spec query.FilterSpec) (core.Totals, error)
	}

	VersionReader interface {
		// CurrentMutationVersion returns the scope's opaque version
		// token. It advances on every create/update/delete in the
		// scope, related to the current filter or not.
		CurrentMutationVersion(ctx context.Context, scopeID string) (int64, error)
	}

	Locator interface {
		// Locate returns the zero-based rank of the transaction
		// within the filtered, ordered set, or found=false when the
		// record does not satisfy the filter.
		Locate(ctx context.Context, scopeID string, spec query.FilterSpec, transactionID string) (rank int64, found bool, err error)
	}

	Writer interface {
		Create(ctx context.Context, tx core.Transaction) (id string, err error)
		Update(ctx context.Context, tx core.Transaction) error
		Delete(ctx context.Context, scopeID, id string) error
	}

	// Store is the full surface the service layer wires against.
	Store interface {
		Querier
		Aggregator
		VersionReader
		Locator
		Writer
	}
)
