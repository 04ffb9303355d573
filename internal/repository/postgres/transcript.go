package postgres

import (
	"context"
	"fmt"

	"github.com/construex/whatsapp-designer/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TranscriptRepository implements domain.TranscriptRepository
type TranscriptRepository struct {
	pool *pgxpool.Pool
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(pool *pgxpool.Pool) *TranscriptRepository {
	return &TranscriptRepository{pool: pool}
}

// Record inserts one conversation line
func (r *TranscriptRepository) Record(ctx context.Context, entry *domain.TranscriptEntry) error {
	query := `
		INSERT INTO transcripts (user_id, session_id, direction, type, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.UserID,
		entry.SessionID,
		entry.Direction,
		entry.Type,
		entry.Body,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript entry: %w", err)
	}

	return nil
}

// ListByUser returns the most recent lines for a user, newest first
func (r *TranscriptRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.TranscriptEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT user_id, session_id, direction, type, body, created_at
		FROM transcripts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var entries []domain.TranscriptEntry
	for rows.Next() {
		var entry domain.TranscriptEntry
		if err := rows.Scan(
			&entry.UserID,
			&entry.SessionID,
			&entry.Direction,
			&entry.Type,
			&entry.Body,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
