package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	phone      TEXT,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT
);
CREATE TABLE IF NOT EXISTS tickets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	issue       TEXT NOT NULL,
	priority    TEXT NOT NULL DEFAULT 'medium',
	status      TEXT NOT NULL DEFAULT 'open',
	created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// seedCustomer pairs a fixed id with its initial record so demo scenarios
// reference stable customers across restarts.
type seedCustomer struct {
	id     int64
	name   string
	email  string
	phone  string
	status string
}

var seedCustomers = []seedCustomer{
	{1, "Ana Martinez", "ana@example.com", "555-0101", "active"},
	{2, "Brian Lee", "brian@example.com", "555-0102", "delinquent"},
	{3, "Cara Nguyen", "cara@example.com", "555-0103", "vip"},
	{5, "Dana Whitfield", "dana@example.com", "555-0105", "active"},
	{12345, "Priya Raman", "priya@example.com", "555-0199", "active"},
}

// SQLiteStore is the durable Store backend.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteOptions configures opening a SQLiteStore.
type SQLiteOptions struct {
	// Seed populates the demo customer set (plus one open high-priority
	// ticket for customer 12345) when the tables are empty.
	Seed bool
}

// OpenSQLite opens (and if necessary creates) the database at path and
// ensures the schema exists.
func OpenSQLite(path string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// A single writer keeps per-record updates atomic without WAL tuning.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if opts.Seed {
		if err := s.seed(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLiteStore) seed() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return fmt.Errorf("count customers: %w", err)
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, c := range seedCustomers {
		if _, err := tx.Exec(
			`INSERT INTO customers (id, name, email, phone, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.id, c.name, c.email, c.phone, c.status, now(), now(),
		); err != nil {
			return fmt.Errorf("seed customer %d: %w", c.id, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO tickets (customer_id, issue, priority, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		int64(12345), "Service outage reported on premium account", "high", "open", now(),
	); err != nil {
		return fmt.Errorf("seed ticket: %w", err)
	}

	return tx.Commit()
}

// FetchCustomer implements Store.
func (s *SQLiteStore) FetchCustomer(ctx context.Context, id int64) (*Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, COALESCE(phone, ''), status, created_at, COALESCE(updated_at, '')
		 FROM customers WHERE id = ?`, id)
	var c Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch customer %d: %w", id, err)
	}
	return &c, nil
}

// ListCustomers implements Store.
func (s *SQLiteStore) ListCustomers(ctx context.Context, status string, limit int) ([]Customer, error) {
	if limit <= 0 || limit > MaxListLimit {
		return nil, fmt.Errorf("limit %d out of range: %w", limit, ErrValidation)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, name, email, COALESCE(phone, ''), status, created_at, COALESCE(updated_at, '')
			 FROM customers WHERE status = ? ORDER BY id LIMIT ?`, status, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, name, email, COALESCE(phone, ''), status, created_at, COALESCE(updated_at, '')
			 FROM customers ORDER BY id LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCustomer implements Store. The update runs in one statement so it is
// atomic per record.
func (s *SQLiteStore) UpdateCustomer(ctx context.Context, id int64, fields map[string]string) (*Customer, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", ErrValidation)
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		if !updateFieldAllowed(f) {
			return nil, fmt.Errorf("field %q not updatable: %w", f, ErrValidation)
		}
		names = append(names, f)
	}
	sort.Strings(names)

	set := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, f := range names {
		set = append(set, f+" = ?")
		args = append(args, fields[f])
	}
	set = append(set, "updated_at = ?")
	args = append(args, now(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update customer %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update customer %d: %w", id, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}

	return s.FetchCustomer(ctx, id)
}

// CreateTicket implements Store.
func (s *SQLiteStore) CreateTicket(ctx context.Context, customerID int64, issue, priority string) (*Ticket, error) {
	if _, err := s.FetchCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	createdAt := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (customer_id, issue, priority, status, created_at) VALUES (?, ?, ?, 'open', ?)`,
		customerID, issue, priority, createdAt)
	if err != nil {
		return nil, fmt.Errorf("create ticket for customer %d: %w", customerID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create ticket for customer %d: %w", customerID, err)
	}

	return &Ticket{
		ID:         id,
		CustomerID: customerID,
		Issue:      issue,
		Priority:   priority,
		Status:     "open",
		CreatedAt:  createdAt,
	}, nil
}

// FetchHistory implements Store.
func (s *SQLiteStore) FetchHistory(ctx context.Context, customerID int64) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, issue, priority, status, created_at
		 FROM tickets WHERE customer_id = ? ORDER BY created_at DESC, id DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("fetch history for customer %d: %w", customerID, err)
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Issue, &t.Priority, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
