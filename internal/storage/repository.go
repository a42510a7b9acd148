package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"finboard/internal/core"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

type Dialect string

// PoolConfig sizes the connection pool of a Postgres repository.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Repository stores transactions in SQLite or PostgreSQL.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations("sqlite", dbPath, SQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: SQLite, now: time.Now}, nil
}

func NewPostgresRepository(ctx context.Context, dsn string, pool PoolConfig) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations("postgres", dsn, Postgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: Postgres, now: time.Now}, nil
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind turns ? placeholders into $n for Postgres.
func (r *Repository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

const listTransactions = `
SELECT id, user_id, type, amount, description, category, tx_date, created_at
FROM transactions
WHERE user_id = ?
ORDER BY tx_date DESC, created_at DESC`

func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(listTransactions), userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			tx      core.Transaction
			typ     string
			date    dateColumn
			created int64
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &typ, &tx.Amount, &tx.Description, &tx.Category, &date, &created); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = core.TxType(typ)
		tx.Date = core.Date(date)
		tx.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

const insertTransaction = `
INSERT INTO transactions (id, user_id, type, amount, description, category, tx_date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (r *Repository) CreateTransaction(ctx context.Context, userID string, in core.NewTransaction) (core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Transaction{}, core.ErrEmptyUser
	}
	now := r.now().UTC()
	in = in.Normalize(core.DateOf(now))
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date,
		CreatedAt:   now.Truncate(time.Millisecond),
	}
	_, err := r.db.ExecContext(ctx, r.rebind(insertTransaction),
		tx.ID, tx.UserID, string(tx.Type), tx.Amount.String(), tx.Description, tx.Category,
		dateColumn(tx.Date), tx.CreatedAt.UnixMilli())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"dialect", string(r.dialect),
		"id", tx.ID,
		"user_id", tx.UserID,
		"type", string(tx.Type),
		"category", tx.Category)

	return tx, nil
}

// dateColumn maps a core.Date to TEXT (SQLite) or DATE (Postgres).
type dateColumn core.Date

func (d dateColumn) Value() (driver.Value, error) {
	return core.Date(d).String(), nil
}

func (d *dateColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = dateColumn(core.DateOf(v))
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("unsupported date column type %T", src)
}

func (d *dateColumn) parse(s string) error {
	parsed, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("parse date column %q: %w", s, err)
	}
	*d = dateColumn(parsed)
	return nil
}
