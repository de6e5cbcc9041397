package session

import (
	"encoding/json"
	"fmt"

	"registro/internal/core"
	"registro/internal/query"
)

// stateRecord is the serialized layout handed to the transport. It is a
// field-for-field mirror of the filter plus the cursor; the only
// compatibility requirement is round-tripping within one system version.
type stateRecord struct {
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
	Page           int      `json:"page"`
	PageSize       int      `json:"page_size"`
}

func encodeState(state State) ([]byte, error) {
	rec := stateRecord{
		Search:         state.Filter.Search,
		AmountCents:    state.Filter.Amount,
		AmountOperator: string(state.Filter.AmountOp),
		AccountIDs:     state.Filter.AccountIDs,
		CategoryIDs:    state.Filter.CategoryIDs,
		MerchantIDs:    state.Filter.MerchantIDs,
		TagIDs:         state.Filter.TagIDs,
		Page:           state.Page,
		PageSize:       state.PageSize,
	}
	if !state.Filter.StartDate.IsZero() {
		rec.StartDate = state.Filter.StartDate.String()
	}
	if !state.Filter.EndDate.IsZero() {
		rec.EndDate = state.Filter.EndDate.String()
	}
	for _, t := range state.Filter.Types {
		rec.Types = append(rec.Types, string(t))
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal session state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (State, error) {
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return State{}, fmt.Errorf("unmarshal session state: %w", err)
	}

	state := State{
		Filter: query.FilterSpec{
			Search:      rec.Search,
			Amount:      rec.AmountCents,
			AmountOp:    query.AmountOperator(rec.AmountOperator),
			AccountIDs:  rec.AccountIDs,
			CategoryIDs: rec.CategoryIDs,
			MerchantIDs: rec.MerchantIDs,
			TagIDs:      rec.TagIDs,
		},
		Page:     rec.Page,
		PageSize: rec.PageSize,
	}
	if rec.StartDate != "" {
		d, err := core.ParseDate(rec.StartDate)
		if err != nil {
			return State{}, fmt.Errorf("decode start date: %w", err)
		}
		state.Filter.StartDate = d
	}
	if rec.EndDate != "" {
		d, err := core.ParseDate(rec.EndDate)
		if err != nil {
			return State{}, fmt.Errorf("decode end date: %w", err)
		}
		state.Filter.EndDate = d
	}
	for _, t := range rec.Types {
		state.Filter.Types = append(state.Filter.Types, core.TransactionType(t))
	}
	return state, nil
}
