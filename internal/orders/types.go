// Package orders persists submitted test orders built from a session's
// selection.
package orders

import (
	"context"
	"io"
	"time"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// Order is a submitted selection of catalog tests.
type Order struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"session_id"`
	TestIDs         []string       `json:"test_ids"`
	TotalCost       float64        `json:"total_cost"`
	RequiresFasting bool           `json:"requires_fasting"`
	Urgency         domain.Urgency `json:"urgency"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Store defines the interface for order storage operations.
type Store interface {
	// Save stores a new order. An empty ID is replaced with a generated UUID.
	Save(ctx context.Context, order *Order) error

	// Get returns the order with the given ID or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)

	// List returns orders newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*Order, error)

	// ListBySession returns a session's orders newest first.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*Order, error)

	// Count returns the total number of orders.
	Count(ctx context.Context) (int64, error)

	// Delete removes an order by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON exports all orders to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports orders from a JSON reader.
	// Orders whose ID already exists are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// OrderExport represents the JSON export format.
type OrderExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Orders     []*Order  `json:"orders"`
}

// maxExportLimit is the maximum number of orders exported at once.
const maxExportLimit = 1000000

const exportVersion = "1.0"
