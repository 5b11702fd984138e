package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnostic-test-advisor/internal/domain"
)

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

var orderColumns = []string{"id", "session_id", "test_ids", "total_cost", "requires_fasting", "urgency", "notes", "created_at"}

func TestNewPostgresStore_NilDB(t *testing.T) {
	store, err := NewPostgresStore(nil)

	assert.Nil(t, store)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), "session-1", sqlmock.AnyArg(), 800.0, true, "within_24h", "morning slot", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	order := sampleOrder("session-1")

	// Act
	err := store.Save(context.Background(), order)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectExec("INSERT INTO orders").WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), sampleOrder("session-1"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save order")
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(orderColumns).
		AddRow("order-1", "session-1", "{cbc,ecg}", 550.0, false, "immediate", "", created)
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WithArgs("order-1").
		WillReturnRows(rows)

	// Act
	got, err := store.Get(context.Background(), "order-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "order-1", got.ID)
	assert.Equal(t, []string{"cbc", "ecg"}, got.TestIDs)
	assert.Equal(t, domain.UrgencyImmediate, got.Urgency)
	assert.Equal(t, created, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_ListBySession(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(orderColumns).
		AddRow("o2", "s", "{troponin}", 1200.0, false, "immediate", "", now).
		AddRow("o1", "s", "{cbc}", 300.0, false, "routine", "", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE session_id").
		WithArgs("s", 5).
		WillReturnRows(rows)

	got, err := store.ListBySession(context.Background(), "s", 5)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o2", got[0].ID)
	assert.Equal(t, []string{"cbc"}, got[1].TestIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAndDelete(t *testing.T) {
	store, mock := setupMockStore(t)
	defer store.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("DELETE FROM orders").WithArgs("o1").WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	require.NoError(t, store.Delete(context.Background(), "o1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
