package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// PassRepository persists surfaced recommendation passes.
type PassRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPassRepository creates a new pass repository
func NewPassRepository(db *pgxpool.Pool, logger *logrus.Logger) *PassRepository {
	return &PassRepository{
		db:  db,
		log: logger,
	}
}

// RecordPass inserts a surfaced pass. Re-recording the same session
// sequence is ignored.
func (r *PassRepository) RecordPass(ctx context.Context, record *domain.PassRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return fmt.Errorf("invalid pass id %q: %w", record.ID, err)
	}

	recs, err := json.Marshal(record.Recommendations)
	if err != nil {
		return fmt.Errorf("encoding recommendations: %w", err)
	}

	symptoms := record.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}

	query := `
		INSERT INTO recommendation_passes (
			id, session_id, sequence, urgency, diagnosis, symptoms, recommendations, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (session_id, sequence) DO NOTHING`

	_, err = r.db.Exec(ctx, query,
		id,
		record.SessionID,
		int64(record.Sequence),
		string(record.Urgency),
		record.Diagnosis,
		symptoms,
		recs,
		record.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"session_id": record.SessionID,
			"sequence":   record.Sequence,
			"error":      err,
		}).Error("Failed to record recommendation pass")
		return fmt.Errorf("recording pass: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"session_id":      record.SessionID,
		"sequence":        record.Sequence,
		"recommendations": len(record.Recommendations),
	}).Debug("Recommendation pass recorded")

	return nil
}

// ListBySession returns a session's passes, newest first.
func (r *PassRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.PassRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id::text, session_id, sequence, urgency, diagnosis, symptoms, recommendations, created_at
		FROM recommendation_passes
		WHERE session_id = $1
		ORDER BY sequence DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing passes: %w", err)
	}
	defer rows.Close()

	var records []*domain.PassRecord
	for rows.Next() {
		var (
			rec      domain.PassRecord
			sequence int64
			urgency  string
			recs     []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &sequence, &urgency,
			&rec.Diagnosis, &rec.Symptoms, &recs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning pass: %w", err)
		}
		if err := json.Unmarshal(recs, &rec.Recommendations); err != nil {
			return nil, fmt.Errorf("decoding recommendations: %w", err)
		}
		rec.Sequence = uint64(sequence)
		rec.Urgency = domain.Urgency(urgency)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passes: %w", err)
	}

	return records, nil
}

// CountBySession returns the number of recorded passes for a session.
func (r *PassRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM recommendation_passes WHERE session_id = $1", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting passes: %w", err)
	}
	return count, nil
}
