// Package query canonicalizes raw filter input into FilterSpec values and
// resolves symbolic time windows. A FilterSpec produced here is free of
// blank fields and stable under re-normalization, which is what makes it
// safe to use as cache-key material.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"registro/internal/core"
)

// AmountOperator selects how the amount predicate compares.
type AmountOperator string

const (
	AmountEqual       AmountOperator = "equal"
	AmountGreaterThan AmountOperator = "greater_than"
	AmountLessThan    AmountOperator = "less_than"
)

// IsValid reports whether op is a known operator.
func (op AmountOperator) IsValid() bool {
	switch op {
	case AmountEqual, AmountGreaterThan, AmountLessThan:
		return true
	}
	return false
}

// FilterSpec is the canonical, immutable filter value. All set-valued
// fields are sorted and deduplicated with empty entries removed; the
// amount predicate is either fully present (cents + operator) or fully
// absent. Build one through Normalize, never by hand in request paths.
type FilterSpec struct {
	StartDate core.Date // zero means no lower bound (explicit all_time)
	EndDate   core.Date
	Search    string
	Amount    int64 // cents; meaningful only when AmountOp is set
	AmountOp  AmountOperator

	AccountIDs  []string
	CategoryIDs []string
	MerchantIDs []string
	TagIDs      []string
	Types       []core.TransactionType
}

// RawFilter is loosely-typed filter input as it arrives at the boundary.
// Unknown fields have already been discarded by the caller; every value
// here may be blank, malformed, or duplicated.
type RawFilter struct {
	StartDate      string
	EndDate        string
	Search         string
	Amount         string
	AmountOperator string

	AccountIDs  []string
	CategoryIDs []string
	MerchantIDs []string
	TagIDs      []string
	Types       []string
}

// IsEmpty reports whether the raw input carries no recognized value at all.
func (r RawFilter) IsEmpty() bool {
	return strings.TrimSpace(r.StartDate) == "" &&
		strings.TrimSpace(r.EndDate) == "" &&
		strings.TrimSpace(r.Search) == "" &&
		strings.TrimSpace(r.Amount) == "" &&
		strings.TrimSpace(r.AmountOperator) == "" &&
		!hasAny(r.AccountIDs) && !hasAny(r.CategoryIDs) &&
		!hasAny(r.MerchantIDs) && !hasAny(r.TagIDs) && !hasAny(r.Types)
}

func hasAny(vals []string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Digest returns a stable content hash of the canonical spec, suitable as
// cache-key material. Two semantically identical filters normalize to the
// same representation and therefore the same digest. Every value is
// length-prefixed before hashing; user-supplied text (search, IDs) must
// never be able to forge a field boundary, or distinct filters would
// share a cache entry.
func (f FilterSpec) Digest() string {
	var b strings.Builder
	writeValue := func(v string) {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	writeField := func(name string, vals ...string) {
		if len(vals) == 0 {
			return
		}
		b.WriteString(name)
		b.WriteByte('=')
		for _, v := range vals {
			writeValue(v)
		}
		b.WriteByte(';')
	}
	if !f.StartDate.IsZero() {
		writeField("start", f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		writeField("end", f.EndDate.String())
	}
	if f.Search != "" {
		writeField("search", f.Search)
	}
	if f.AmountOp != "" {
		writeField("amount", strconv.FormatInt(f.Amount, 10))
		writeField("op", string(f.AmountOp))
	}
	writeField("accounts", f.AccountIDs...)
	writeField("categories", f.CategoryIDs...)
	writeField("merchants", f.MerchantIDs...)
	writeField("tags", f.TagIDs...)
	if len(f.Types) > 0 {
		b.WriteString("types=")
		for _, t := range f.Types {
			writeValue(string(t))
		}
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Values renders the spec as URL query parameters. Used when the session
// store signals a restore and the handler re-issues the request so the
// browsable URL reflects the active filter.
func (f FilterSpec) Values() url.Values {
	v := url.Values{}
	if !f.StartDate.IsZero() {
		v.Set("start_date", f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		v.Set("end_date", f.EndDate.String())
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.AmountOp != "" {
		v.Set("amount", strconv.FormatFloat(float64(f.Amount)/100, 'f', 2, 64))
		v.Set("amount_operator", string(f.AmountOp))
	}
	for _, id := range f.AccountIDs {
		v.Add("account_ids", id)
	}
	for _, id := range f.CategoryIDs {
		v.Add("category_ids", id)
	}
	for _, id := range f.MerchantIDs {
		v.Add("merchant_ids", id)
	}
	for _, id := range f.TagIDs {
		v.Add("tag_ids", id)
	}
	for _, t := range f.Types {
		v.Add("types", string(t))
	}
	return v
}
