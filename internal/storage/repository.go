package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/query"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the ledger ports over a local SQLite file.
// The filtering and ordering semantics mirror the in-memory reference
// store; mutation versions are bumped in the same transaction as the
// write so a reader can never observe a mutation without a new version.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// buildFilter translates every populated FilterSpec field into an AND-ed
// SQL condition. Set membership becomes IN, tags an EXISTS probe.
func buildFilter(scopeID string, spec query.FilterSpec) (string, []any) {
	conds := []string{"scope_id = ?", "deleted_at IS NULL"}
	args := []any{scopeID}

	if !spec.StartDate.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, spec.StartDate.String())
	}
	if !spec.EndDate.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, spec.EndDate.String())
	}
	if spec.Search != "" {
		conds = append(conds, `LOWER(description) LIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, escapeLike(strings.ToLower(spec.Search)))
	}
	if spec.AmountOp != "" {
		switch spec.AmountOp {
		case query.AmountEqual:
			conds = append(conds, "amount_cents = ?")
		case query.AmountGreaterThan:
			conds = append(conds, "amount_cents > ?")
		case query.AmountLessThan:
			conds = append(conds, "amount_cents < ?")
		}
		args = append(args, spec.Amount)
	}

	inClause := func(column string, vals []string) {
		if len(vals) == 0 {
			return
		}
		conds = append(conds, column+" IN ("+placeholders(len(vals))+")")
		for _, v := range vals {
			args = append(args, v)
		}
	}
	inClause("account_id", spec.AccountIDs)
	inClause("category_id", spec.CategoryIDs)
	inClause("merchant_id", spec.MerchantIDs)

	if len(spec.TagIDs) > 0 {
		conds = append(conds,
			"EXISTS (SELECT 1 FROM transaction_tags tt WHERE tt.transaction_id = transactions.id AND tt.tag_id IN ("+
				placeholders(len(spec.TagIDs))+"))")
		for _, v := range spec.TagIDs {
			args = append(args, v)
		}
	}
	if len(spec.Types) > 0 {
		conds = append(conds, "type IN ("+placeholders(len(spec.Types))+")")
		for _, t := range spec.Types {
			args = append(args, string(t))
		}
	}

	return strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE metacharacters so a search term matches
// literally, the same as the in-memory matcher's substring test.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

const orderClause = " ORDER BY date DESC, id DESC"

func (r *SQLiteRepository) Query(ctx context.Context, scopeID string, spec query.FilterSpec, page, pageSize int) (core.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	where, args := buildFilter(scopeID, spec)

	// Fetch one row beyond the page so HasNext needs no count query.
	q := "SELECT id, scope_id, date, description, amount_cents, type, account_id, category_id, merchant_id FROM transactions WHERE " +
		where + orderClause + " LIMIT ? OFFSET ?"
	args = append(args, pageSize+1, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var items []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return core.TransactionPage{}, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return core.TransactionPage{}, fmt.Errorf("iterate transactions: %w", err)
	}

	info := core.PageInfo{Page: page, PageSize: pageSize, HasPrev: page > 1}
	if len(items) > pageSize {
		info.HasNext = true
		items = items[:pageSize]
	}
	if err := r.attachTags(ctx, items); err != nil {
		return core.TransactionPage{}, err
	}
	return core.TransactionPage{Items: items, Info: info}, nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var tx core.Transaction
	var date string
	if err := rows.Scan(&tx.ID, &tx.ScopeID, &date, &tx.Description, &tx.Amount.Cents,
		&tx.Type, &tx.AccountID, &tx.CategoryID, &tx.MerchantID); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	tx.Date = d
	return tx, nil
}

func (r *SQLiteRepository) attachTags(ctx context.Context, items []core.Transaction) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]any, len(items))
	index := make(map[string]int, len(items))
	for i, tx := range items {
		ids[i] = tx.ID
		index[tx.ID] = i
	}

	q := "SELECT transaction_id, tag_id FROM transaction_tags WHERE transaction_id IN (" +
		placeholders(len(ids)) + ") ORDER BY tag_id"
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return fmt.Errorf("query transaction tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txID, tagID string
		if err := rows.Scan(&txID, &tagID); err != nil {
			return fmt.Errorf("scan transaction tag: %w", err)
		}
		if i, ok := index[txID]; ok {
			items[i].TagIDs = append(items[i].TagIDs, tagID)
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) Aggregate(ctx context.Context, scopeID string, spec query.FilterSpec) (core.Totals, error) {
	where, args := buildFilter(scopeID, spec)
	q := `SELECT
		COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0),
		COUNT(*)
	FROM transactions WHERE ` + where

	var totals core.Totals
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&totals.Income.Cents, &totals.Expense.Cents, &totals.Count)
	if err != nil {
		return core.Totals{}, fmt.Errorf("aggregate totals: %w", err)
	}
	totals.Complete = true
	return totals, nil
}

func (r *SQLiteRepository) CurrentMutationVersion(ctx context.Context, scopeID string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		"SELECT version FROM scope_versions WHERE scope_id = ?", scopeID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read mutation version: %w", err)
	}
	return version, nil
}

func (r *SQLiteRepository) Locate(ctx context.Context, scopeID string, spec query.FilterSpec, transactionID string) (int64, bool, error) {
	where, args := buildFilter(scopeID, spec)

	// The target must itself satisfy the filter; otherwise report none.
	var date, id string
	probe := "SELECT date, id FROM transactions WHERE id = ? AND " + where
	probeArgs := append([]any{transactionID}, args...)
	err := r.db.QueryRowContext(ctx, probe, probeArgs...).Scan(&date, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("locate target: %w", err)
	}

	// Rank is the number of filtered rows ordering strictly before it.
	count := "SELECT COUNT(*) FROM transactions WHERE " + where +
		" AND (date > ? OR (date = ? AND id > ?))"
	countArgs := append(append([]any{}, args...), date, date, id)
	var rank int64
	if err := r.db.QueryRowContext(ctx, count, countArgs...).Scan(&rank); err != nil {
		return 0, false, fmt.Errorf("rank target: %w", err)
	}
	return rank, true, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	err := r.inTx(ctx, func(dbtx *sql.Tx) error {
		_, err := dbtx.ExecContext(ctx,
			`INSERT INTO transactions (id, scope_id, date, description, amount_cents, type, account_id, category_id, merchant_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, tx.ScopeID, tx.Date.String(), tx.Description, tx.Amount.Cents,
			string(tx.Type), tx.AccountID, tx.CategoryID, tx.MerchantID)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := insertTags(ctx, dbtx, tx.ID, tx.TagIDs); err != nil {
			return err
		}
		return bumpVersion(ctx, dbtx, tx.ScopeID)
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"scope_id", tx.ScopeID,
		"type", string(tx.Type),
		"amount_cents", tx.Amount.Cents)
	return tx.ID, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	return r.inTx(ctx, func(dbtx *sql.Tx) error {
		res, err := dbtx.ExecContext(ctx,
			`UPDATE transactions SET date = ?, description = ?, amount_cents = ?, type = ?,
			 account_id = ?, category_id = ?, merchant_id = ?, updated_at = datetime('now')
			 WHERE id = ? AND scope_id = ? AND deleted_at IS NULL`,
			tx.Date.String(), tx.Description, tx.Amount.Cents, string(tx.Type),
			tx.AccountID, tx.CategoryID, tx.MerchantID, tx.ID, tx.ScopeID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ledger.ErrNotFound
		}
		if _, err := dbtx.ExecContext(ctx,
			"DELETE FROM transaction_tags WHERE transaction_id = ?", tx.ID); err != nil {
			return fmt.Errorf("clear transaction tags: %w", err)
		}
		if err := insertTags(ctx, dbtx, tx.ID, tx.TagIDs); err != nil {
			return err
		}
		return bumpVersion(ctx, dbtx, tx.ScopeID)
	})
}

func (r *SQLiteRepository) Delete(ctx context.Context, scopeID, id string) error {
	return r.inTx(ctx, func(dbtx *sql.Tx) error {
		res, err := dbtx.ExecContext(ctx,
			"UPDATE transactions SET deleted_at = datetime('now') WHERE id = ? AND scope_id = ? AND deleted_at IS NULL",
			id, scopeID)
		if err != nil {
			return fmt.Errorf("soft delete transaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ledger.ErrNotFound
		}
		return bumpVersion(ctx, dbtx, scopeID)
	})
}

// RecordMutation appends one row to the audit trail. Called by the
// mutation-audit worker, not by the request path.
func (r *SQLiteRepository) RecordMutation(ctx context.Context, scopeID, transactionID, action string, version int64, occurredAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mutation_audit (scope_id, transaction_id, action, version, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		scopeID, transactionID, action, version, occurredAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record mutation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(dbtx); err != nil {
		if rbErr := dbtx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertTags(ctx context.Context, dbtx *sql.Tx, txID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		if strings.TrimSpace(tagID) == "" {
			continue
		}
		if _, err := dbtx.ExecContext(ctx,
			"INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)",
			txID, tagID); err != nil {
			return fmt.Errorf("insert transaction tag: %w", err)
		}
	}
	return nil
}

// bumpVersion advances the scope's mutation token. Any write anywhere in
// the scope advances it, even when unrelated to a given filter;
// over-invalidation is acceptable, under-invalidation is not.
func bumpVersion(ctx context.Context, dbtx *sql.Tx, scopeID string) error {
	_, err := dbtx.ExecContext(ctx,
		`INSERT INTO scope_versions (scope_id, version) VALUES (?, 1)
		 ON CONFLICT (scope_id) DO UPDATE SET version = version + 1`,
		scopeID)
	if err != nil {
		return fmt.Errorf("advance mutation version: %w", err)
	}
	return nil
}

var _ ledger.Store = (*SQLiteRepository)(nil)
