package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EnrollmentRepository reads and updates module enrollment state.
type EnrollmentRepository struct {
	db DBTX
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// IsEnrolled reports whether the owner is enrolled in the module.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, ownerID int, moduleID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM module_enrollments WHERE owner_id = $1 AND module_id = $2
		 )`, ownerID, moduleID,
	).Scan(&ok)
	return ok, err
}

// ApplyPassOutcome marks the module completed and certified for the owner.
// Elevated users may pass without an enrollment row, so this upserts.
func (r *EnrollmentRepository) ApplyPassOutcome(ctx context.Context, ownerID int, moduleID uuid.UUID, percentage float64, completedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO module_enrollments (owner_id, module_id, progress_status, certified, completed_at, final_percentage)
		 VALUES ($1, $2, 'COMPLETED', TRUE, $3, $4)
		 ON CONFLICT (owner_id, module_id) DO UPDATE
		 SET progress_status = 'COMPLETED',
		     certified = TRUE,
		     completed_at = EXCLUDED.completed_at,
		     final_percentage = EXCLUDED.final_percentage,
		     updated_at = NOW()`,
		ownerID, moduleID, completedAt, percentage)
	return err
}
