package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"moneyviz/internal/core"

	_ "modernc.org/sqlite"
)

// dsnPragmas are applied to every pooled connection.
const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Record is one statement row ready to be stored.
type Record struct {
	Date                core.Date
	ValueDate           core.Date // zero when the statement carried none
	AmountCents         int64
	BalanceCents        int64
	Location            string
	Description         string
	DescriptionOriginal string
	// DescriptionID is the normalised display name the row is grouped under.
	DescriptionID string
	Processed     bool
	CategoryID    string // empty for uncategorised descriptions
}

// ImportResult counts what ImportRecords did.
type ImportResult struct {
	Inserted int
	Skipped  int
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + dsnPragmas
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListCategories returns every category id in ascending order.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM category ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// EnsureCategories inserts any of names not already present.
func (r *SQLiteRepository) EnsureCategories(ctx context.Context, names []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureCategories(ctx, tx, names); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit categories: %w", err)
	}
	return nil
}

func ensureCategories(ctx context.Context, tx *sql.Tx, names []string) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO category (id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare category insert: %w", err)
	}
	defer stmt.Close()

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, name); err != nil {
			return fmt.Errorf("insert category %q: %w", name, err)
		}
	}
	return nil
}

// DailyTotals sums amounts per effective date (value date, else posting
// date) in ascending order. An empty category means every transaction,
// categorised or not. Zero dates leave that side of the range open.
func (r *SQLiteRepository) DailyTotals(ctx context.Context, category string, start, end core.Date) ([]core.DailyTotal, error) {
	var (
		where []string
		args  []any
	)
	if category != "" {
		where = append(where, "d.category_id = ?")
		args = append(args, category)
	}
	if !start.IsZero() {
		where = append(where, "COALESCE(t.value_date, t.date) >= ?")
		args = append(args, start.String())
	}
	if !end.IsZero() {
		where = append(where, "COALESCE(t.value_date, t.date) <= ?")
		args = append(args, end.String())
	}

	query := `SELECT COALESCE(t.value_date, t.date) AS day, SUM(t.amount_cents)
		FROM bank_transaction t
		LEFT JOIN description d ON d.id = t.description_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY day ORDER BY day ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily totals: %w", err)
	}
	defer rows.Close()

	var out []core.DailyTotal
	for rows.Next() {
		var (
			day   string
			cents int64
		)
		if err := rows.Scan(&day, &cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		d, err := core.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", day, err)
		}
		out = append(out, core.DailyTotal{Date: d, Cents: cents})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily totals: %w", err)
	}
	return out, nil
}

// CategoryTotals sums amounts per category over the range. Uncategorised
// spending is reported under the empty name.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, start, end core.Date) ([]core.CategoryAmount, error) {
	var (
		where []string
		args  []any
	)
	if !start.IsZero() {
		where = append(where, "COALESCE(t.value_date, t.date) >= ?")
		args = append(args, start.String())
	}
	if !end.IsZero() {
		where = append(where, "COALESCE(t.value_date, t.date) <= ?")
		args = append(args, end.String())
	}

	query := `SELECT COALESCE(d.category_id, '') AS category, SUM(t.amount_cents)
		FROM bank_transaction t
		LEFT JOIN description d ON d.id = t.description_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY category ORDER BY category ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

// ImportRecords stores records in one transaction. Categories and
// descriptions are created on first sight; a row already present (same
// date, amount, balance and original description) is skipped.
func (r *SQLiteRepository) ImportRecords(ctx context.Context, records []Record) (ImportResult, error) {
	var res ImportResult
	if len(records) == 0 {
		return res, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var categories []string
	seen := map[string]bool{}
	for _, rec := range records {
		if rec.CategoryID != "" && !seen[rec.CategoryID] {
			seen[rec.CategoryID] = true
			categories = append(categories, rec.CategoryID)
		}
	}
	if err := ensureCategories(ctx, tx, categories); err != nil {
		return res, err
	}

	descStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO description (id, processed, category_id) VALUES (?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("prepare description insert: %w", err)
	}
	defer descStmt.Close()

	txStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO bank_transaction
		(date, value_date, amount_cents, location, description_id, description, description_original, balance_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer txStmt.Close()

	for i, rec := range records {
		if rec.Date.IsZero() {
			return res, fmt.Errorf("record %d: %w", i, core.ErrInvalidDate)
		}

		var descID any
		if rec.DescriptionID != "" {
			descID = rec.DescriptionID
			if _, err := descStmt.ExecContext(ctx, rec.DescriptionID, rec.Processed, nullString(rec.CategoryID)); err != nil {
				return res, fmt.Errorf("record %d: insert description: %w", i, err)
			}
		}

		var valueDate any
		if !rec.ValueDate.IsZero() {
			valueDate = rec.ValueDate.String()
		}

		result, err := txStmt.ExecContext(ctx,
			rec.Date.String(),
			valueDate,
			rec.AmountCents,
			nullString(rec.Location),
			descID,
			rec.Description,
			rec.DescriptionOriginal,
			rec.BalanceCents,
		)
		if err != nil {
			return res, fmt.Errorf("record %d: insert transaction: %w", i, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("record %d: rows affected: %w", i, err)
		}
		if n > 0 {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("commit import: %w", err)
	}
	return res, nil
}

// CountTransactions returns the number of stored transactions.
func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bank_transaction`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
