package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite order store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed during order writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, session_id, test_ids, total_cost, requires_fasting, urgency, notes, created_at`

func scanOrder(s scanner) (*Order, error) {
	o := &Order{}
	var testIDs []byte
	var urgency string

	err := s.Scan(&o.ID, &o.SessionID, &testIDs, &o.TotalCost,
		&o.RequiresFasting, &urgency, &o.Notes, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(testIDs, &o.TestIDs); err != nil {
		return nil, fmt.Errorf("failed to decode test ids: %w", err)
	}
	o.Urgency = domain.Urgency(urgency)
	return o, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		test_ids TEXT NOT NULL,
		total_cost REAL NOT NULL,
		requires_fasting INTEGER NOT NULL DEFAULT 0,
		urgency TEXT NOT NULL,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_session_id ON orders(session_id);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save inserts a new order.
func (s *SQLiteStore) Save(ctx context.Context, order *Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	testIDs, err := json.Marshal(order.TestIDs)
	if err != nil {
		return fmt.Errorf("failed to encode test ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, session_id, test_ids, total_cost, requires_fasting, urgency, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		order.ID,
		order.SessionID,
		string(testIDs),
		order.TotalCost,
		order.RequiresFasting,
		string(order.Urgency),
		order.Notes,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves an order by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return o, nil
}

// List returns orders newest first with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM orders ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

// ListBySession returns the orders submitted from one session.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM orders WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Order, error) {
	defer rows.Close()

	var result []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Count returns the total number of orders.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

// Delete removes an order by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id)
	return err
}

// ExportJSON exports all orders to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports orders from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func exportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list orders: %w", err)
	}

	export := &OrderExport{
		Version:    exportVersion,
		ExportedAt: time.Now(),
		Count:      len(all),
		Orders:     all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export OrderExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, o := range export.Orders {
		if o.ID != "" {
			_, err := store.Get(ctx, o.ID)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
		}

		if err := store.Save(ctx, o); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
