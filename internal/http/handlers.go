package http

import (
	"errors"
	"net/http"
	"strings"

	"registro/internal/ledger"
	applog "registro/internal/log"
	"registro/internal/query"
	"registro/internal/services"
	"registro/internal/session"
)

// handleTransactions serves the listing surface: GET browses the ledger
// with filter, totals and pagination; POST creates a transaction.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleBrowse(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleBrowse lists transactions. A bare navigation (no filter or
// paging parameters) with stored session state redirects to the stored
// filter so the URL always reflects what is shown; anything explicit is
// normalized, recorded as the session's new state, and executed.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	params := s.parseBrowseParams(r)
	if params.ScopeID == "" {
		writeError(w, http.StatusBadRequest, "scope_id is required")
		return
	}

	sid := sessionID(w, r)

	if !params.HasFilter {
		if state, ok := s.sessions.Restore(sid); ok {
			target := browseURL(params.ScopeID, state.Filter.Values(), state.Page, state.PageSize)
			applog.FromContext(r.Context()).DebugContext(r.Context(), "Restoring session filter",
				"session_id", sid, "target", target)
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
	}

	spec := query.Normalize(params.Raw, s.defaultPeriod, s.now())

	res, err := s.service.Browse(r.Context(), services.BrowseRequest{
		ScopeID:  params.ScopeID,
		Filter:   spec,
		Page:     params.Page,
		PageSize: params.PageSize,
		FocusID:  params.FocusID,
	})
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Browse failed",
			"scope_id", params.ScopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	// Record the page actually served; a focus target may have moved it
	// away from the requested one.
	s.sessions.Record(sid, session.State{
		Filter:   spec,
		Page:     res.Page.Info.Page,
		PageSize: res.Page.Info.PageSize,
	})

	writeJSON(w, http.StatusOK, buildBrowseJSON(spec, res, params.FocusID != ""))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	tx, err := parseTransactionPayload(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := s.service.Create(r.Context(), tx)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create transaction failed",
			"scope_id", tx.ScopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	writeJSON(w, http.StatusCreated, mutationJSON{ID: id, Status: "created"})
}

// handleTransactionByID serves PUT and DELETE on /transactions/{id}.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.handleUpdate(w, r, id)
	case http.MethodDelete:
		s.handleDelete(w, r, id)
	default:
		writeMethodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := parseTransactionPayload(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tx.ID = id

	if err := s.service.Update(r.Context(), tx); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Update transaction failed",
			"scope_id", tx.ScopeID, "transaction_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	writeJSON(w, http.StatusOK, mutationJSON{ID: id, Status: "updated"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	scopeID := strings.TrimSpace(r.URL.Query().Get("scope_id"))
	if scopeID == "" {
		writeError(w, http.StatusBadRequest, "scope_id is required")
		return
	}

	if err := s.service.Delete(r.Context(), scopeID, id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete transaction failed",
			"scope_id", scopeID, "transaction_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	writeJSON(w, http.StatusOK, mutationJSON{ID: id, Status: "deleted"})
}

// handleClearFilter removes one filter chip from the stored session
// state and redirects to the updated listing. With nothing stored it
// falls back to a bare listing for the scope.
func (s *Server) handleClearFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	scopeID := strings.TrimSpace(r.Form.Get("scope_id"))
	if scopeID == "" {
		writeError(w, http.StatusBadRequest, "scope_id is required")
		return
	}
	field := session.Field(strings.TrimSpace(r.Form.Get("field")))
	value := strings.TrimSpace(r.Form.Get("value"))
	if field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}

	sid := sessionID(w, r)

	state, ok := s.sessions.ClearValue(sid, field, value, s.defaultPeriod)
	if !ok {
		http.Redirect(w, r, "/transactions?scope_id="+scopeID, http.StatusSeeOther)
		return
	}

	target := browseURL(scopeID, state.Filter.Values(), state.Page, state.PageSize)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
