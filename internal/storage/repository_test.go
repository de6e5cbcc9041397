package storage

import (
	"strings"
	"testing"

	"registro/internal/query"
)

func TestBuildFilterEscapesSearchMetacharacters(t *testing.T) {
	cases := []struct {
		name   string
		search string
		want   string
	}{
		{"percent is literal", "50% off", `50\% off`},
		{"underscore is literal", "tx_fee", `tx\_fee`},
		{"backslash is literal", `a\b`, `a\\b`},
		{"uppercase folded", "MARKET", "market"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildFilter("fam-1", query.FilterSpec{Search: tt.search})
			if !strings.Contains(where, `ESCAPE '\'`) {
				t.Errorf("where clause lacks ESCAPE: %s", where)
			}
			found := false
			for _, a := range args {
				if s, ok := a.(string); ok && s == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("args %v do not carry escaped term %q", args, tt.want)
			}
		})
	}
}

func TestBuildFilterCombinesConditions(t *testing.T) {
	spec := query.FilterSpec{
		AccountIDs: []string{"acc-1", "acc-2"},
		TagIDs:     []string{"tag-1"},
		Amount:     4200,
		AmountOp:   query.AmountGreaterThan,
	}
	where, args := buildFilter("fam-1", spec)

	if !strings.Contains(where, "account_id IN (?,?)") {
		t.Errorf("missing account IN clause: %s", where)
	}
	if !strings.Contains(where, "amount_cents > ?") {
		t.Errorf("missing amount predicate: %s", where)
	}
	if !strings.Contains(where, "tt.tag_id IN (?)") {
		t.Errorf("missing tag EXISTS probe: %s", where)
	}
	// scope + two accounts + one tag + amount
	if len(args) != 5 {
		t.Errorf("args = %v, want 5 values", args)
	}
}
