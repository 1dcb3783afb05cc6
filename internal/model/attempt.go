package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptKind distinguishes a pre-test from a post-test.
type AttemptKind string

const (
	AttemptKindPre  AttemptKind = "PRE"
	AttemptKindPost AttemptKind = "POST"
)

// Valid reports whether k is one of the known kinds.
func (k AttemptKind) Valid() bool {
	return k == AttemptKindPre || k == AttemptKindPost
}

// FinishReason records how an attempt was closed.
type FinishReason string

const (
	FinishReasonSubmitted FinishReason = "SUBMITTED"
	FinishReasonExpired   FinishReason = "EXPIRED"
)

// AttemptState is the lifecycle state of an attempt slot for (owner, assessment, kind).
type AttemptState string

const (
	AttemptStateNone     AttemptState = "NONE"
	AttemptStateActive   AttemptState = "ACTIVE"
	AttemptStateExpired  AttemptState = "EXPIRED"
	AttemptStateFinished AttemptState = "FINISHED"
)

// Attempt is one instance of an identity taking one assessment once.
type Attempt struct {
	ID              uuid.UUID     `json:"id"`
	OwnerID         int           `json:"owner_id"`
	AssessmentID    uuid.UUID     `json:"assessment_id"`
	Kind            AttemptKind   `json:"kind"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	Score           int           `json:"score"`
	Percentage      float64       `json:"percentage"`
	Passed          bool          `json:"passed"`
	DurationMinutes int           `json:"duration_minutes"`
	FinishReason    *FinishReason `json:"finish_reason,omitempty"`
}

// IsFinished reports whether the attempt has been closed by submission or expiry.
func (a *Attempt) IsFinished() bool {
	return a.FinishedAt != nil
}

// SnapshotItem is one frozen question of an attempt. Answer fields stay nil
// until the attempt is submitted.
type SnapshotItem struct {
	ID              int64      `json:"id"`
	AttemptID       uuid.UUID  `json:"attempt_id"`
	QuestionID      uuid.UUID  `json:"question_id"`
	Position        int        `json:"position"`
	SubmittedAnswer *OptionKey `json:"submitted_answer,omitempty"`
	CorrectAnswer   *OptionKey `json:"correct_answer,omitempty"`
	IsCorrect       *bool      `json:"is_correct,omitempty"`
}

// Actor is the authenticated caller. Elevated actors bypass enrollment checks.
type Actor struct {
	ID       int
	Elevated bool
}
