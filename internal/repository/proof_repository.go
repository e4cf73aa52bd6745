package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// ProofRepository stores attendance proof metadata.
type ProofRepository struct {
	db *sqlx.DB
}

// NewProofRepository constructs a ProofRepository.
func NewProofRepository(db *sqlx.DB) *ProofRepository {
	return &ProofRepository{db: db}
}

// Create inserts proof metadata.
func (r *ProofRepository) Create(ctx context.Context, proof *models.AttendanceProof) error {
	if proof.ID == "" {
		proof.ID = uuid.NewString()
	}
	if proof.CreatedAt.IsZero() {
		proof.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_proofs (id, section_id, date, file_path, file_name, mime_type, size_bytes, uploaded_by, created_at)
        VALUES (:id, :section_id, :date, :file_path, :file_name, :mime_type, :size_bytes, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, proof); err != nil {
		return fmt.Errorf("create attendance proof: %w", err)
	}
	return nil
}

// FindByID returns proof metadata by identifier.
func (r *ProofRepository) FindByID(ctx context.Context, id string) (*models.AttendanceProof, error) {
	const query = `SELECT id, section_id, date, file_path, file_name, mime_type, size_bytes, uploaded_by, created_at FROM attendance_proofs WHERE id = $1`
	var proof models.AttendanceProof
	if err := r.db.GetContext(ctx, &proof, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance proof: %w", err)
	}
	return &proof, nil
}
