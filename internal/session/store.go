// Package session persists the last-applied filter and pagination cursor
// per user session. The store only affects convenience restoration on
// bare navigation; a request's own explicit filter always wins.
package session

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"registro/internal/core"
	"registro/internal/query"
)

// State is the per-session record: last-applied filter plus cursor.
type State struct {
	Filter   query.FilterSpec
	Page     int
	PageSize int
}

// Field names a clearable filter dimension for chip removal.
type Field string

const (
	FieldAccount  Field = "account"
	FieldCategory Field = "category"
	FieldMerchant Field = "merchant"
	FieldTag      Field = "tag"
	FieldType     Field = "type"
	FieldSearch   Field = "search"
	FieldAmount   Field = "amount"
	FieldDates    Field = "dates"
)

// Transport is the raw opaque read/write the session layer exposes.
// The store never sees cookies or headers, only bytes keyed by session.
type Transport interface {
	Read(sessionID string) ([]byte, bool)
	Write(sessionID string, data []byte)
}

// MemoryTransport keeps session bytes in process memory. Within one
// session concurrent writers race and the last write wins, which is
// acceptable for restoration state.
type MemoryTransport struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{data: make(map[string][]byte)}
}

func (t *MemoryTransport) Read(sessionID string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.data[sessionID]
	return b, ok
}

func (t *MemoryTransport) Write(sessionID string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[sessionID] = data
}

// Store records and restores filter state through a Transport.
type Store struct {
	transport Transport
	now       func() time.Time
}

func NewStore(transport Transport) *Store {
	return &Store{transport: transport, now: time.Now}
}

// Record overwrites the stored state for the session unconditionally.
func (s *Store) Record(sessionID string, state State) {
	data, err := encodeState(state)
	if err != nil {
		slog.Warn("Failed to encode session filter state", "error", err)
		return
	}
	s.transport.Write(sessionID, data)
}

// Restore returns the stored state, if any. The caller decides whether
// to re-issue the request with these parameters; the store never
// substitutes them silently.
func (s *Store) Restore(sessionID string) (State, bool) {
	data, ok := s.transport.Read(sessionID)
	if !ok {
		return State{}, false
	}
	state, err := decodeState(data)
	if err != nil {
		slog.Warn("Discarding undecodable session filter state", "error", err)
		return State{}, false
	}
	return state, true
}

// ClearValue removes a single value from a set-valued field (or the
// whole field for scalar ones) from the stored filter and re-persists
// it. The remaining filter is re-canonicalized against defaultPeriod so
// the stored spec never loses its date bounds. Returns the updated
// state, or false when no state exists for the session.
func (s *Store) ClearValue(sessionID string, field Field, value string, defaultPeriod query.PeriodKey) (State, bool) {
	state, ok := s.Restore(sessionID)
	if !ok {
		return State{}, false
	}

	f := &state.Filter
	switch field {
	case FieldAccount:
		f.AccountIDs = removeValue(f.AccountIDs, value)
	case FieldCategory:
		f.CategoryIDs = removeValue(f.CategoryIDs, value)
	case FieldMerchant:
		f.MerchantIDs = removeValue(f.MerchantIDs, value)
	case FieldTag:
		f.TagIDs = removeValue(f.TagIDs, value)
	case FieldType:
		f.Types = slices.DeleteFunc(slices.Clone(f.Types), func(t core.TransactionType) bool {
			return string(t) == value
		})
		if len(f.Types) == 0 {
			f.Types = nil
		}
	case FieldSearch:
		f.Search = ""
	case FieldAmount:
		f.Amount = 0
		f.AmountOp = ""
	case FieldDates:
		f.StartDate, f.EndDate = core.Date{}, core.Date{}
	default:
		return state, true
	}

	state.Filter = query.Renormalize(state.Filter, defaultPeriod, s.now())
	state.Page = 1
	s.Record(sessionID, state)
	return state, true
}

func removeValue(vals []string, value string) []string {
	out := slices.DeleteFunc(slices.Clone(vals), func(v string) bool {
		return v == value
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
