package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// TranscriptRepository persists interactive insight questions and answers.
type TranscriptRepository struct {
	db *sqlx.DB
}

// NewTranscriptRepository constructs a TranscriptRepository.
func NewTranscriptRepository(db *sqlx.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Create stores a transcript entry.
func (r *TranscriptRepository) Create(ctx context.Context, entry *models.InsightTranscript) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO insight_transcripts (id, user_id, query, intent, summary, section_id, created_at)
        VALUES (:id, :user_id, :query, :intent, :summary, :section_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create insight transcript: %w", err)
	}
	return nil
}

// ListByUser returns the most recent entries for a user.
func (r *TranscriptRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.InsightTranscript, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, user_id, query, intent, summary, section_id, created_at
        FROM insight_transcripts WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	entries := []models.InsightTranscript{}
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list insight transcripts: %w", err)
	}
	return entries, nil
}
