package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"registro/internal/core"
)

func parserServer() *Server {
	return &Server{
		defaultPageSize: 20,
		maxPageSize:     100,
		now:             func() time.Time { return testNow },
	}
}

func TestParseBrowseParams(t *testing.T) {
	s := parserServer()

	tests := []struct {
		name      string
		url       string
		wantScope string
		wantPage  int
		wantSize  int
		wantHas   bool
	}{
		{
			name:      "bare navigation",
			url:       "/transactions?scope_id=fam-1",
			wantScope: "fam-1",
			wantPage:  1,
			wantSize:  20,
			wantHas:   false,
		},
		{
			name:      "explicit paging counts as a filter",
			url:       "/transactions?scope_id=fam-1&page=3",
			wantScope: "fam-1",
			wantPage:  3,
			wantSize:  20,
			wantHas:   true,
		},
		{
			name:      "page size is clamped to the maximum",
			url:       "/transactions?scope_id=fam-1&page_size=5000",
			wantScope: "fam-1",
			wantPage:  1,
			wantSize:  100,
			wantHas:   true,
		},
		{
			name:      "invalid page falls back to 1",
			url:       "/transactions?scope_id=fam-1&page=abc",
			wantScope: "fam-1",
			wantPage:  1,
			wantSize:  20,
			wantHas:   true,
		},
		{
			name:      "search marks the request as filtered",
			url:       "/transactions?scope_id=fam-1&search=bar",
			wantScope: "fam-1",
			wantPage:  1,
			wantSize:  20,
			wantHas:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := s.parseBrowseParams(httptest.NewRequest("GET", tt.url, nil))
			if p.ScopeID != tt.wantScope {
				t.Errorf("ScopeID = %q, want %q", p.ScopeID, tt.wantScope)
			}
			if p.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", p.Page, tt.wantPage)
			}
			if p.PageSize != tt.wantSize {
				t.Errorf("PageSize = %d, want %d", p.PageSize, tt.wantSize)
			}
			if p.HasFilter != tt.wantHas {
				t.Errorf("HasFilter = %v, want %v", p.HasFilter, tt.wantHas)
			}
		})
	}
}

func TestParseBrowseParamsPeriodResolution(t *testing.T) {
	s := parserServer()

	p := s.parseBrowseParams(httptest.NewRequest("GET", "/transactions?scope_id=fam-1&period=this_month", nil))
	if p.Raw.StartDate != "2025-06-01" || p.Raw.EndDate != "2025-06-15" {
		t.Errorf("period bounds = %s..%s, want 2025-06-01..2025-06-15", p.Raw.StartDate, p.Raw.EndDate)
	}

	// Explicit dates win over a symbolic period.
	p = s.parseBrowseParams(httptest.NewRequest("GET",
		"/transactions?scope_id=fam-1&period=this_month&start_date=2025-01-01", nil))
	if p.Raw.StartDate != "2025-01-01" {
		t.Errorf("StartDate = %s, explicit date should win", p.Raw.StartDate)
	}

	// Unknown period keys are dropped, not errors.
	p = s.parseBrowseParams(httptest.NewRequest("GET", "/transactions?scope_id=fam-1&period=bogus", nil))
	if p.Raw.StartDate != "" || p.Raw.EndDate != "" {
		t.Errorf("unknown period produced bounds %s..%s", p.Raw.StartDate, p.Raw.EndDate)
	}
	if !p.HasFilter {
		t.Error("a period parameter, even unknown, is an explicit request")
	}
}

func TestParseTransactionPayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid payload",
			body: `{"scope_id":"fam-1","date":"2025-06-14","description":"cinema","amount":"15.50","type":"expense","account_id":"acc-1"}`,
		},
		{
			name:    "malformed json",
			body:    `{"scope_id":`,
			wantErr: true,
		},
		{
			name:    "bad date",
			body:    `{"scope_id":"fam-1","date":"14/06/2025","description":"x","amount":"1.00","type":"expense","account_id":"acc-1"}`,
			wantErr: true,
		},
		{
			name:    "bad amount",
			body:    `{"scope_id":"fam-1","date":"2025-06-14","description":"x","amount":"-3","type":"expense","account_id":"acc-1"}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			body:    `{"scope_id":"fam-1","date":"2025-06-14","description":"x","amount":"1.00","type":"loan","account_id":"acc-1"}`,
			wantErr: true,
		},
		{
			name:    "missing account",
			body:    `{"scope_id":"fam-1","date":"2025-06-14","description":"x","amount":"1.00","type":"expense"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/transactions", strings.NewReader(tt.body))
			tx, err := parseTransactionPayload(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if tx.Amount.Cents != 1550 {
					t.Errorf("cents = %d, want 1550", tx.Amount.Cents)
				}
				if tx.Type != core.TypeExpense {
					t.Errorf("type = %s", tx.Type)
				}
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"with\x00null", "withnull"},
		{"tab\tkept", "tab\tkept"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
