package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL order store.
// It expects the orders table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL order store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save inserts a new order. Re-saving an existing ID is a no-op.
func (s *PostgresStore) Save(ctx context.Context, order *Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO orders (
			id, session_id, test_ids, total_cost, requires_fasting, urgency, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		order.ID,
		order.SessionID,
		pq.Array(order.TestIDs),
		order.TotalCost,
		order.RequiresFasting,
		string(order.Urgency),
		order.Notes,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func scanPostgresOrder(s scanner) (*Order, error) {
	o := &Order{}
	var urgency string
	err := s.Scan(&o.ID, &o.SessionID, pq.Array(&o.TestIDs), &o.TotalCost,
		&o.RequiresFasting, &urgency, &o.Notes, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Urgency = domain.Urgency(urgency)
	return o, nil
}

// Get retrieves an order by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanPostgresOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// List returns orders newest first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return collectPostgres(rows)
}

// ListBySession returns the orders submitted from one session.
func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM orders WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return collectPostgres(rows)
}

func collectPostgres(rows *sql.Rows) ([]*Order, error) {
	defer rows.Close()

	var result []*Order
	for rows.Next() {
		o, err := scanPostgresOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Count returns the total number of orders.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// Delete removes an order by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// ExportJSON exports all orders to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports orders from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
