// This file implements the JSON response shapes for the browsing API and
// the helpers that build them from domain values.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"registro/internal/core"
	"registro/internal/query"
	"registro/internal/services"
)

type transactionJSON struct {
	ID          string   `json:"id"`
	ScopeID     string   `json:"scope_id"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	AmountCents int64    `json:"amount_cents"`
	Type        string   `json:"type"`
	AccountID   string   `json:"account_id"`
	CategoryID  string   `json:"category_id,omitempty"`
	MerchantID  string   `json:"merchant_id,omitempty"`
	TagIDs      []string `json:"tag_ids,omitempty"`
}

type pageInfoJSON struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
}

type totalsJSON struct {
	IncomeCents  int64 `json:"income_cents"`
	ExpenseCents int64 `json:"expense_cents"`
	NetCents     int64 `json:"net_cents"`
	Count        int64 `json:"count"`
	Complete     bool  `json:"complete"`
}

type filterJSON struct {
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
	Search         string   `json:"search,omitempty"`
	AmountCents    int64    `json:"amount_cents,omitempty"`
	AmountOperator string   `json:"amount_operator,omitempty"`
	AccountIDs     []string `json:"account_ids,omitempty"`
	CategoryIDs    []string `json:"category_ids,omitempty"`
	MerchantIDs    []string `json:"merchant_ids,omitempty"`
	TagIDs         []string `json:"tag_ids,omitempty"`
	Types          []string `json:"types,omitempty"`
}

type browseJSON struct {
	Items      []transactionJSON `json:"items"`
	Page       pageInfoJSON      `json:"page"`
	Totals     totalsJSON        `json:"totals"`
	Filter     filterJSON        `json:"filter"`
	FocusFound *bool             `json:"focus_found,omitempty"`
}

type mutationJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func buildTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          tx.ID,
		ScopeID:     tx.ScopeID,
		Date:        tx.Date.String(),
		Description: tx.Description,
		AmountCents: tx.Amount.Cents,
		Type:        string(tx.Type),
		AccountID:   tx.AccountID,
		CategoryID:  tx.CategoryID,
		MerchantID:  tx.MerchantID,
		TagIDs:      tx.TagIDs,
	}
}

func buildFilterJSON(spec query.FilterSpec) filterJSON {
	f := filterJSON{
		Search:      spec.Search,
		AccountIDs:  spec.AccountIDs,
		CategoryIDs: spec.CategoryIDs,
		MerchantIDs: spec.MerchantIDs,
		TagIDs:      spec.TagIDs,
	}
	if !spec.StartDate.IsZero() {
		f.StartDate = spec.StartDate.String()
	}
	if !spec.EndDate.IsZero() {
		f.EndDate = spec.EndDate.String()
	}
	if spec.AmountOp != "" {
		f.AmountCents = spec.Amount
		f.AmountOperator = string(spec.AmountOp)
	}
	for _, t := range spec.Types {
		f.Types = append(f.Types, string(t))
	}
	return f
}

func buildBrowseJSON(spec query.FilterSpec, res services.BrowseResult, focusRequested bool) browseJSON {
	out := browseJSON{
		Items: make([]transactionJSON, 0, len(res.Page.Items)),
		Page: pageInfoJSON{
			Page:     res.Page.Info.Page,
			PageSize: res.Page.Info.PageSize,
			HasNext:  res.Page.Info.HasNext,
			HasPrev:  res.Page.Info.HasPrev,
		},
		Totals: totalsJSON{
			IncomeCents:  res.Totals.Income.Cents,
			ExpenseCents: res.Totals.Expense.Cents,
			NetCents:     res.Totals.Net().Cents,
			Count:        res.Totals.Count,
			Complete:     res.Totals.Complete,
		},
		Filter: buildFilterJSON(spec),
	}
	for _, tx := range res.Page.Items {
		out.Items = append(out.Items, buildTransactionJSON(tx))
	}
	if focusRequested {
		found := res.FocusFound
		out.FocusFound = &found
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}
