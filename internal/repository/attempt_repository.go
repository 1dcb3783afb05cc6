package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-attempts/internal/model"
)

const attemptColumns = `id, owner_id, assessment_id, kind, started_at, finished_at,
	score, percentage, passed, duration_minutes, finish_reason`

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	db DBTX
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.AssessmentID, &a.Kind, &a.StartedAt, &a.FinishedAt,
		&a.Score, &a.Percentage, &a.Passed, &a.DurationMinutes, &a.FinishReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// FindOpen retrieves the unfinished attempt for (owner, assessment, kind).
func (r *AttemptRepository) FindOpen(ctx context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE owner_id = $1 AND assessment_id = $2 AND kind = $3 AND finished_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1`, ownerID, assessmentID, kind))
}

// LockOpen is FindOpen with FOR UPDATE. Only meaningful inside a transaction.
func (r *AttemptRepository) LockOpen(ctx context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE owner_id = $1 AND assessment_id = $2 AND kind = $3 AND finished_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1
		 FOR UPDATE`, ownerID, assessmentID, kind))
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// LockByID retrieves an attempt and locks its row until the transaction ends.
func (r *AttemptRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR UPDATE`, id))
}

// Create inserts a new open attempt. A concurrent open attempt for the same
// slot fails with a unique violation on attempts_one_open_idx.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO attempts (owner_id, assessment_id, kind, started_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		a.OwnerID, a.AssessmentID, a.Kind, a.StartedAt,
	).Scan(&a.ID)
}

// Finalize writes the closing fields of an attempt, guarded by finished_at IS NULL.
func (r *AttemptRepository) Finalize(ctx context.Context, a *model.Attempt) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE attempts
		 SET finished_at = $2, score = $3, percentage = $4, passed = $5,
		     duration_minutes = $6, finish_reason = $7
		 WHERE id = $1 AND finished_at IS NULL`,
		a.ID, a.FinishedAt, a.Score, a.Percentage, a.Passed, a.DurationMinutes, a.FinishReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinished
	}
	return nil
}

// ListByOwner retrieves an owner's attempts for one assessment and kind, newest first.
func (r *AttemptRepository) ListByOwner(ctx context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) ([]model.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE owner_id = $1 AND assessment_id = $2 AND kind = $3
		 ORDER BY started_at DESC`, ownerID, assessmentID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
