package model

import "github.com/google/uuid"

// AssessmentPolicy is the catalog-owned configuration of an assessment.
// It is read fresh on every Start and Submit.
type AssessmentPolicy struct {
	AssessmentID    uuid.UUID `json:"assessment_id"`
	ModuleID        uuid.UUID `json:"module_id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	PassingGrade    float64   `json:"passing_grade"`
	QuestionsLimit  int       `json:"questions_limit"`
}
