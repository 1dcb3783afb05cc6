package model

import (
	"time"

	"github.com/google/uuid"
)

// StartAttemptRequest is the payload for starting (or resuming) an attempt.
type StartAttemptRequest struct {
	Kind AttemptKind `json:"kind" binding:"required,attempt_kind"`
}

// SubmittedAnswer is one answer in a submission payload.
type SubmittedAnswer struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	UserAnswer string    `json:"user_answer" binding:"max=16"`
}

// SubmitAttemptRequest is the payload for submitting an attempt.
type SubmitAttemptRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"max=500,dive"`
}

// AttemptView is returned by Start. It carries the server clock so the client
// can render a countdown without trusting its own time.
type AttemptView struct {
	AttemptID       uuid.UUID        `json:"attempt_id"`
	AssessmentID    uuid.UUID        `json:"assessment_id"`
	Kind            AttemptKind      `json:"kind"`
	DurationMinutes int              `json:"duration_minutes"`
	GraceSeconds    int              `json:"grace_seconds"`
	StartedAt       time.Time        `json:"started_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
	ServerTime      time.Time        `json:"server_time"`
	Resumed         bool             `json:"resumed"`
	Questions       []PublicQuestion `json:"questions"`
}

// QuestionsView is the read-only projection of an active attempt's frozen questions.
type QuestionsView struct {
	AttemptID  uuid.UUID        `json:"attempt_id"`
	Kind       AttemptKind      `json:"kind"`
	StartedAt  time.Time        `json:"started_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	ServerTime time.Time        `json:"server_time"`
	Questions  []PublicQuestion `json:"questions"`
}

// Result is the outcome of a submission. It carries no per-question answers.
type Result struct {
	AttemptID       uuid.UUID   `json:"attempt_id"`
	Kind            AttemptKind `json:"kind"`
	Score           int         `json:"score"`
	Percentage      float64     `json:"percentage"`
	Passed          bool        `json:"passed"`
	TotalQuestions  int         `json:"total_questions"`
	CorrectAnswers  int         `json:"correct_answers"`
	PassingGrade    float64     `json:"passing_grade"`
	FinishedAt      time.Time   `json:"finished_at"`
	DurationMinutes int         `json:"duration_minutes"`
	TimedOut        bool        `json:"timed_out"`
}

// ResultItem is the per-question breakdown of a closed attempt.
type ResultItem struct {
	PublicQuestion
	SubmittedAnswer *OptionKey `json:"submitted_answer"`
	CorrectAnswer   *OptionKey `json:"correct_answer"`
	IsCorrect       bool       `json:"is_correct"`
}

// DetailedResult is returned once an attempt is closed and immutable.
type DetailedResult struct {
	Result
	Items []ResultItem `json:"items"`
}

// AttemptSummary is one row of an owner's attempt history.
type AttemptSummary struct {
	Attempt
	State AttemptState `json:"state"`
}
