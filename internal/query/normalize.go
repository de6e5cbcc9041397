package query

import (
	"slices"
	"strings"
	"time"

	"registro/internal/core"
)

// Normalize turns raw, possibly-absent filter input into a canonical
// FilterSpec. Malformed field values are dropped silently; a partially
// specified filter is preferable to an error page. When neither date
// bound is supplied, the user's default period (falling back to the
// 30-day window) populates both, so an unbounded scan is never the
// default. Normalize always returns a valid spec and is idempotent over
// the spec's own representation.
func Normalize(raw RawFilter, defaultPeriod PeriodKey, now time.Time) FilterSpec {
	spec := FilterSpec{
		Search: strings.TrimSpace(raw.Search),
	}

	if d, err := core.ParseDate(raw.StartDate); err == nil {
		spec.StartDate = d
	}
	if d, err := core.ParseDate(raw.EndDate); err == nil {
		spec.EndDate = d
	}
	// Inverted explicit bounds are swapped rather than rejected.
	if !spec.StartDate.IsZero() && !spec.EndDate.IsZero() && spec.StartDate.After(spec.EndDate.Time) {
		spec.StartDate, spec.EndDate = spec.EndDate, spec.StartDate
	}

	if cents, err := core.ParseDecimalToCents(raw.Amount); err == nil {
		spec.Amount = cents
		op := AmountOperator(strings.TrimSpace(raw.AmountOperator))
		if !op.IsValid() {
			op = AmountEqual
		}
		spec.AmountOp = op
	}
	// Operator without a parseable amount is dropped: spec.AmountOp stays empty.

	spec.AccountIDs = canonicalSet(raw.AccountIDs)
	spec.CategoryIDs = canonicalSet(raw.CategoryIDs)
	spec.MerchantIDs = canonicalSet(raw.MerchantIDs)
	spec.TagIDs = canonicalSet(raw.TagIDs)
	spec.Types = canonicalTypes(raw.Types)

	if spec.StartDate.IsZero() && spec.EndDate.IsZero() {
		key := defaultPeriod
		if key == "" {
			key = DefaultPeriodKey
		}
		period, err := Resolve(key, now)
		if err != nil {
			period = FallbackPeriod(now)
		}
		spec.StartDate = period.Start
		spec.EndDate = period.End
	}

	return spec
}

// Renormalize re-canonicalizes an existing spec, reapplying the default
// window when both date bounds have been cleared. Used after filter-chip
// removal so the stored spec never loses the invariant.
func Renormalize(spec FilterSpec, defaultPeriod PeriodKey, now time.Time) FilterSpec {
	raw := RawFilter{
		Search:      spec.Search,
		AccountIDs:  spec.AccountIDs,
		CategoryIDs: spec.CategoryIDs,
		MerchantIDs: spec.MerchantIDs,
		TagIDs:      spec.TagIDs,
	}
	if !spec.StartDate.IsZero() {
		raw.StartDate = spec.StartDate.String()
	}
	if !spec.EndDate.IsZero() {
		raw.EndDate = spec.EndDate.String()
	}
	for _, t := range spec.Types {
		raw.Types = append(raw.Types, string(t))
	}
	out := Normalize(raw, defaultPeriod, now)
	// Amount cents survive re-normalization without a string round trip.
	if spec.AmountOp.IsValid() && spec.Amount > 0 {
		out.Amount = spec.Amount
		out.AmountOp = spec.AmountOp
	}
	return out
}

// canonicalSet trims, drops empties, deduplicates and sorts. Insertion
// order is irrelevant to filter semantics, and sorting keeps the digest
// stable across permuted input.
func canonicalSet(vals []string) []string {
	if len(vals) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return out
}

func canonicalTypes(vals []string) []core.TransactionType {
	canon := canonicalSet(vals)
	if len(canon) == 0 {
		return nil
	}
	out := make([]core.TransactionType, 0, len(canon))
	for _, v := range canon {
		if t, ok := core.ParseTransactionType(v); ok {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
