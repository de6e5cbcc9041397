package query

import (
	"testing"
	"time"

	"registro/internal/core"
)

var normNow = time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)

func TestNormalizeEmptyInputGetsDefaultWindow(t *testing.T) {
	spec := Normalize(RawFilter{}, PeriodLast30Days, normNow)

	if spec.StartDate.IsZero() || spec.EndDate.IsZero() {
		t.Fatal("normalized spec must have both date bounds populated")
	}
	if !spec.StartDate.Equal(core.NewDate(2025, 5, 16).Time) {
		t.Errorf("start = %s, want 2025-05-16", spec.StartDate)
	}
	if !spec.EndDate.Equal(core.NewDate(2025, 6, 15).Time) {
		t.Errorf("end = %s, want 2025-06-15", spec.EndDate)
	}
}

func TestNormalizeUnknownDefaultPeriodFallsBack(t *testing.T) {
	spec := Normalize(RawFilter{}, "not_a_period", normNow)

	want := FallbackPeriod(normNow)
	if !spec.StartDate.Equal(want.Start.Time) || !spec.EndDate.Equal(want.End.Time) {
		t.Errorf("got [%s, %s], want fallback [%s, %s]",
			spec.StartDate, spec.EndDate, want.Start, want.End)
	}
}

func TestNormalizeUnsetPreferenceUsesThirtyDays(t *testing.T) {
	spec := Normalize(RawFilter{}, "", normNow)
	if got := spec.EndDate.Sub(spec.StartDate.Time); got != 30*24*time.Hour {
		t.Errorf("window width = %v, want 720h", got)
	}
}

func TestNormalizeExplicitDatesSkipDefault(t *testing.T) {
	spec := Normalize(RawFilter{StartDate: "2024-01-01", EndDate: "2024-02-01"}, PeriodLast7Days, normNow)
	if spec.StartDate.String() != "2024-01-01" || spec.EndDate.String() != "2024-02-01" {
		t.Errorf("got [%s, %s], want explicit bounds", spec.StartDate, spec.EndDate)
	}
}

func TestNormalizeSwapsInvertedBounds(t *testing.T) {
	spec := Normalize(RawFilter{StartDate: "2024-02-01", EndDate: "2024-01-01"}, "", normNow)
	if spec.StartDate.String() != "2024-01-01" || spec.EndDate.String() != "2024-02-01" {
		t.Errorf("got [%s, %s], want swapped bounds", spec.StartDate, spec.EndDate)
	}
}

func TestNormalizeSingleBoundIsKept(t *testing.T) {
	spec := Normalize(RawFilter{EndDate: "2024-03-31"}, PeriodLast7Days, normNow)
	if !spec.StartDate.IsZero() {
		t.Errorf("start should stay absent when only end is supplied, got %s", spec.StartDate)
	}
	if spec.EndDate.String() != "2024-03-31" {
		t.Errorf("end = %s, want 2024-03-31", spec.EndDate)
	}
}

func TestNormalizeDropsMalformedValues(t *testing.T) {
	spec := Normalize(RawFilter{
		StartDate: "not-a-date",
		Amount:    "abc",
		Types:     []string{"income", "bogus"},
	}, "", normNow)

	// Malformed start date dropped together with the absent end date, so
	// the default window applies.
	if spec.StartDate.IsZero() || spec.EndDate.IsZero() {
		t.Error("default window should apply when explicit dates are unparseable")
	}
	if spec.AmountOp != "" {
		t.Errorf("amount predicate should be absent, got op %q", spec.AmountOp)
	}
	if len(spec.Types) != 1 || spec.Types[0] != core.TypeIncome {
		t.Errorf("types = %v, want [income]", spec.Types)
	}
}

func TestNormalizeAmountPredicate(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		operator string
		wantOp   AmountOperator
		wantAmt  int64
	}{
		{"amount with operator", "12.34", "greater_than", AmountGreaterThan, 1234},
		{"amount without operator defaults to equal", "5", "", AmountEqual, 500},
		{"amount with unknown operator defaults to equal", "5", "between", AmountEqual, 500},
		{"operator without amount is dropped", "", "less_than", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Normalize(RawFilter{Amount: tt.amount, AmountOperator: tt.operator}, "", normNow)
			if spec.AmountOp != tt.wantOp {
				t.Errorf("op = %q, want %q", spec.AmountOp, tt.wantOp)
			}
			if spec.Amount != tt.wantAmt {
				t.Errorf("amount = %d, want %d", spec.Amount, tt.wantAmt)
			}
		})
	}
}

func TestNormalizeCanonicalizesSets(t *testing.T) {
	spec := Normalize(RawFilter{
		CategoryIDs: []string{" b ", "a", "", "b", "a "},
	}, "", normNow)

	if len(spec.CategoryIDs) != 2 || spec.CategoryIDs[0] != "a" || spec.CategoryIDs[1] != "b" {
		t.Errorf("category_ids = %v, want [a b]", spec.CategoryIDs)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := RawFilter{
		StartDate:   "2025-01-10",
		EndDate:     "2025-03-10",
		Search:      "  caffè  ",
		Amount:      "10,50",
		AccountIDs:  []string{"acc2", "acc1", "acc2"},
		CategoryIDs: []string{"", "cat1"},
		Types:       []string{"Expense"},
	}
	once := Normalize(raw, "", normNow)
	twice := Renormalize(once, "", normNow)

	if once.Digest() != twice.Digest() {
		t.Errorf("normalize not idempotent:\n once=%+v\ntwice=%+v", once, twice)
	}
}

func TestDigestStableUnderPermutationAndPadding(t *testing.T) {
	a := Normalize(RawFilter{
		Search:      "rent",
		AccountIDs:  []string{"x", "y"},
		CategoryIDs: []string{"c1", "c2"},
	}, "", normNow)
	b := Normalize(RawFilter{
		Search:      "  rent ",
		AccountIDs:  []string{" y", "x ", "x"},
		CategoryIDs: []string{"c2", "c1"},
	}, "", normNow)

	if a.Digest() != b.Digest() {
		t.Errorf("digests differ for semantically identical filters:\n a=%+v\n b=%+v", a, b)
	}
}

func TestDigestDistinguishesFilters(t *testing.T) {
	a := Normalize(RawFilter{Search: "rent"}, "", normNow)
	b := Normalize(RawFilter{Search: "groceries"}, "", normNow)
	if a.Digest() == b.Digest() {
		t.Error("different filters must not collide on digest")
	}
}

func TestDigestValueBoundariesCannotBeForged(t *testing.T) {
	// Search is free user text; a term that mimics the serialization of
	// another field must not hash to the same key as that field.
	cases := []struct {
		name string
		a, b RawFilter
	}{
		{
			"search term imitating a set field",
			RawFilter{Search: "x;accounts=a"},
			RawFilter{Search: "x", AccountIDs: []string{"a"}},
		},
		{
			"delimiter inside a set value",
			RawFilter{AccountIDs: []string{"a,b"}},
			RawFilter{AccountIDs: []string{"a", "b"}},
		},
		{
			"value spilling across set boundaries",
			RawFilter{AccountIDs: []string{"a"}, CategoryIDs: []string{"b"}},
			RawFilter{AccountIDs: []string{"a;categories=b"}},
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			a := Normalize(tt.a, "", normNow)
			b := Normalize(tt.b, "", normNow)
			if a.Digest() == b.Digest() {
				t.Errorf("distinct filters collide:\n a=%+v\n b=%+v", a, b)
			}
		})
	}
}
