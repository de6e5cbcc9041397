// Package http provides the HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: browse parameters, session cookies, and mutation payloads.
package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"registro/internal/core"
	"registro/internal/query"
)

const sessionCookieName = "registro_session"

// BrowseParams holds everything a listing request can carry: the raw
// filter, the pagination cursor, and an optional focus target.
type BrowseParams struct {
	ScopeID  string
	Raw      query.RawFilter
	Page     int
	PageSize int
	FocusID  string

	// HasFilter is true when the request carried any filter or paging
	// parameter of its own. A bare navigation is eligible for session
	// restoration; an explicit request always wins.
	HasFilter bool
}

// parseBrowseParams extracts browse parameters from the query string.
// A symbolic period parameter is resolved to concrete bounds here so the
// normalizer only ever sees dates; an unknown period key is dropped and
// the default window applies downstream.
func (s *Server) parseBrowseParams(r *http.Request) BrowseParams {
	q := r.URL.Query()

	p := BrowseParams{
		ScopeID:  strings.TrimSpace(q.Get("scope_id")),
		Page:     1,
		PageSize: s.defaultPageSize,
		FocusID:  strings.TrimSpace(q.Get("focus")),
	}

	p.Raw = query.RawFilter{
		StartDate:      strings.TrimSpace(q.Get("start_date")),
		EndDate:        strings.TrimSpace(q.Get("end_date")),
		Search:         sanitizeInput(q.Get("search")),
		Amount:         strings.TrimSpace(q.Get("amount")),
		AmountOperator: strings.TrimSpace(q.Get("amount_operator")),
		AccountIDs:     q["account_ids"],
		CategoryIDs:    q["category_ids"],
		MerchantIDs:    q["merchant_ids"],
		TagIDs:         q["tag_ids"],
		Types:          q["types"],
	}

	if key := strings.TrimSpace(q.Get("period")); key != "" && p.Raw.StartDate == "" && p.Raw.EndDate == "" {
		if period, err := query.Resolve(query.PeriodKey(key), s.now()); err == nil {
			if !period.Start.IsZero() {
				p.Raw.StartDate = period.Start.String()
			}
			p.Raw.EndDate = period.End.String()
		}
	}

	hasPaging := false
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
		hasPaging = true
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PageSize = n
		}
		hasPaging = true
	}
	if p.PageSize > s.maxPageSize {
		p.PageSize = s.maxPageSize
	}

	p.HasFilter = !p.Raw.IsEmpty() || hasPaging || q.Get("period") != "" || p.FocusID != ""

	return p
}

// sessionID returns the caller's session identifier, minting a new one
// and setting the cookie when absent.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := generateSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// transactionPayload is the JSON mutation body. Amount arrives as a
// decimal string and is parsed to cents server side.
type transactionPayload struct {
	ScopeID     string   `json:"scope_id"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	Type        string   `json:"type"`
	AccountID   string   `json:"account_id"`
	CategoryID  string   `json:"category_id"`
	MerchantID  string   `json:"merchant_id"`
	TagIDs      []string `json:"tag_ids"`
}

// parseTransactionPayload decodes and validates a mutation body into a
// domain transaction.
func parseTransactionPayload(r *http.Request) (core.Transaction, error) {
	var p transactionPayload
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return core.Transaction{}, fmt.Errorf("decode payload: %w", err)
	}

	date, err := core.ParseDate(strings.TrimSpace(p.Date))
	if err != nil {
		return core.Transaction{}, core.ErrInvalidDate
	}
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(p.Amount))
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	tags := make([]string, 0, len(p.TagIDs))
	for _, t := range p.TagIDs {
		if v := strings.TrimSpace(t); v != "" {
			tags = append(tags, v)
		}
	}
	if len(tags) == 0 {
		tags = nil
	}

	tx := core.Transaction{
		ScopeID:     strings.TrimSpace(p.ScopeID),
		Date:        date,
		Description: sanitizeInput(p.Description),
		Amount:      core.Money{Cents: cents},
		Type:        core.TransactionType(strings.TrimSpace(p.Type)),
		AccountID:   strings.TrimSpace(p.AccountID),
		CategoryID:  strings.TrimSpace(p.CategoryID),
		MerchantID:  strings.TrimSpace(p.MerchantID),
		TagIDs:      tags,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// browseURL builds the canonical listing URL for a restored or cleared
// filter state.
func browseURL(scopeID string, values url.Values, page, pageSize int) string {
	values.Set("scope_id", scopeID)
	values.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		values.Set("page_size", strconv.Itoa(pageSize))
	}
	return "/transactions?" + values.Encode()
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// generateSessionID creates an opaque session identifier.
func generateSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("sess_%d", time.Now().UnixNano())
	}
	return "sess_" + hex.EncodeToString(bytes)
}
