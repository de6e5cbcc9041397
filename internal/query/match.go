package query

import (
	"slices"
	"strings"

	"registro/internal/core"
)

// Matches reports whether tx satisfies every populated field of the spec.
// Fields combine conjunctively; within a set-valued field membership is
// disjunctive. This is the reference predicate; the SQL store mirrors it.
func Matches(spec FilterSpec, tx core.Transaction) bool {
	if !spec.StartDate.IsZero() && tx.Date.Before(spec.StartDate.Time) {
		return false
	}
	if !spec.EndDate.IsZero() && tx.Date.After(spec.EndDate.Time) {
		return false
	}
	if spec.Search != "" &&
		!strings.Contains(strings.ToLower(tx.Description), strings.ToLower(spec.Search)) {
		return false
	}
	if spec.AmountOp != "" {
		switch spec.AmountOp {
		case AmountEqual:
			if tx.Amount.Cents != spec.Amount {
				return false
			}
		case AmountGreaterThan:
			if tx.Amount.Cents <= spec.Amount {
				return false
			}
		case AmountLessThan:
			if tx.Amount.Cents >= spec.Amount {
				return false
			}
		}
	}
	if len(spec.AccountIDs) > 0 && !slices.Contains(spec.AccountIDs, tx.AccountID) {
		return false
	}
	if len(spec.CategoryIDs) > 0 && !slices.Contains(spec.CategoryIDs, tx.CategoryID) {
		return false
	}
	if len(spec.MerchantIDs) > 0 && !slices.Contains(spec.MerchantIDs, tx.MerchantID) {
		return false
	}
	if len(spec.TagIDs) > 0 && !anyTag(spec.TagIDs, tx.TagIDs) {
		return false
	}
	if len(spec.Types) > 0 && !slices.Contains(spec.Types, tx.Type) {
		return false
	}
	return true
}

func anyTag(wanted, have []string) bool {
	for _, w := range wanted {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

// OrderBefore is the single ordering rule for filtered results: most
// recent date first, ties broken by descending identifier so pagination
// is deterministic across repeated calls over unchanged data.
func OrderBefore(a, b core.Transaction) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.After(b.Date.Time)
	}
	return a.ID > b.ID
}
