package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// AssessmentRepository reads assessment policies owned by the course catalog.
type AssessmentRepository struct {
	db DBTX
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(db DBTX) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// GetPolicy retrieves the current policy of an assessment.
func (r *AssessmentRepository) GetPolicy(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentPolicy, error) {
	p := &model.AssessmentPolicy{}
	err := r.db.QueryRow(ctx,
		`SELECT id, module_id, title, duration_minutes, passing_grade, questions_limit
		 FROM assessments WHERE id = $1`, assessmentID,
	).Scan(&p.AssessmentID, &p.ModuleID, &p.Title, &p.DurationMinutes, &p.PassingGrade, &p.QuestionsLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}
