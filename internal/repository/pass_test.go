package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/diagnostic-test-advisor/internal/database"
	"github.com/diagnostic-test-advisor/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	runner, err := database.NewMigrationRunner(config.URL(), "", logger)
	require.NoError(t, err)
	t.Cleanup(func() { runner.Close() })
	require.NoError(t, runner.Up(ctx))

	return db
}

func TestPassRepository_RecordAndList(t *testing.T) {
	db := setupTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewPassRepository(db.Pool, logger)
	ctx := context.Background()

	for seq := uint64(1); seq <= 3; seq++ {
		err := repo.RecordPass(ctx, &domain.PassRecord{
			SessionID: "session-1",
			Sequence:  seq,
			Urgency:   domain.UrgencyWithin24h,
			Diagnosis: fmt.Sprintf("pass %d", seq),
			Symptoms:  []string{"fever"},
			Recommendations: []domain.TestRecommendation{
				{Test: domain.Test{ID: "cbc", Name: "Complete Blood Count"}, RelevanceScore: 20, Urgency: domain.UrgencyWithin24h},
			},
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.RecordPass(ctx, &domain.PassRecord{
		SessionID: "session-2", Sequence: 1, Urgency: domain.UrgencyRoutine, CreatedAt: time.Now().UTC(),
	}))

	records, err := repo.ListBySession(ctx, "session-1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(3), records[0].Sequence)
	assert.Equal(t, "pass 3", records[0].Diagnosis)
	assert.Equal(t, []string{"fever"}, records[0].Symptoms)
	require.Len(t, records[0].Recommendations, 1)
	assert.Equal(t, "cbc", records[0].Recommendations[0].Test.ID)

	count, err := repo.CountBySession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestPassRepository_DuplicateSequenceIgnored(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPassRepository(db.Pool, logrus.New())
	ctx := context.Background()

	record := &domain.PassRecord{SessionID: "s", Sequence: 1, Urgency: domain.UrgencyRoutine, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.RecordPass(ctx, record))

	again := *record
	again.ID = ""
	require.NoError(t, repo.RecordPass(ctx, &again))

	count, err := repo.CountBySession(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPassRepository_InvalidID(t *testing.T) {
	repo := NewPassRepository(nil, logrus.New())

	err := repo.RecordPass(context.Background(), &domain.PassRecord{ID: "not-a-uuid"})

	assert.Error(t, err)
}
