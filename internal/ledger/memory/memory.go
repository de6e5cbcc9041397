// Package memory implements the ledger ports in process memory. It is
// the default backend for local development and the reference for the
// executor's filtering and ordering semantics; the SQLite store mirrors
// this behavior in SQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/query"
)

type Store struct {
	mu       sync.RWMutex
	rows     []core.Transaction
	versions map[string]int64
}

func NewStore() *Store {
	return &Store{versions: make(map[string]int64)}
}

// Seed loads transactions without advancing mutation versions. Test and
// bootstrap helper.
func (s *Store) Seed(txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, txs...)
}

func (s *Store) Query(ctx context.Context, scopeID string, spec query.FilterSpec, page, pageSize int) (core.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	matched := s.filtered(scopeID, spec)

	offset := (page - 1) * pageSize
	info := core.PageInfo{Page: page, PageSize: pageSize, HasPrev: page > 1}
	if offset >= len(matched) {
		return core.TransactionPage{Info: info}, nil
	}
	end := offset + pageSize
	if end < len(matched) {
		info.HasNext = true
	} else {
		end = len(matched)
	}
	items := make([]core.Transaction, end-offset)
	copy(items, matched[offset:end])
	return core.TransactionPage{Items: items, Info: info}, nil
}

func (s *Store) Aggregate(ctx context.Context, scopeID string, spec query.FilterSpec) (core.Totals, error) {
	matched := s.filtered(scopeID, spec)

	totals := core.Totals{Complete: true}
	for _, tx := range matched {
		totals.Count++
		switch tx.Type {
		case core.TypeIncome:
			totals.Income.Cents += tx.Amount.Cents
		case core.TypeExpense:
			totals.Expense.Cents += tx.Amount.Cents
		}
	}
	return totals, nil
}

func (s *Store) CurrentMutationVersion(ctx context.Context, scopeID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[scopeID], nil
}

func (s *Store) Locate(ctx context.Context, scopeID string, spec query.FilterSpec, transactionID string) (int64, bool, error) {
	matched := s.filtered(scopeID, spec)
	for i, tx := range matched {
		if tx.ID == transactionID {
			return int64(i), true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) Create(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, tx)
	s.versions[tx.ScopeID]++
	return tx.ID, nil
}

func (s *Store) Update(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ScopeID == tx.ScopeID && row.ID == tx.ID {
			s.rows[i] = tx
			s.versions[tx.ScopeID]++
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) Delete(ctx context.Context, scopeID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ScopeID == scopeID && row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			s.versions[scopeID]++
			return nil
		}
	}
	return ledger.ErrNotFound
}

// filtered returns the scope's matching rows in executor order. Callers
// receive a fresh slice; rows themselves are treated as immutable.
func (s *Store) filtered(scopeID string, spec query.FilterSpec) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Transaction
	for _, tx := range s.rows {
		if tx.ScopeID != scopeID {
			continue
		}
		if query.Matches(spec, tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return query.OrderBefore(out[i], out[j])
	})
	return out
}

var _ ledger.Store = (*Store)(nil)
