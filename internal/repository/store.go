package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/exstem-attempts/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyFinished is returned when a finalize loses the compare-and-swap on finished_at.
	ErrAlreadyFinished = errors.New("attempt already finished")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// can run against the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// AttemptStore persists attempts.
type AttemptStore interface {
	// FindOpen returns the unfinished attempt for the slot, or ErrNotFound.
	FindOpen(ctx context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) (*model.Attempt, error)
	// LockOpen is FindOpen with a row lock held until the transaction ends.
	LockOpen(ctx context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) (*model.Attempt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	// Finalize closes an open attempt. It returns ErrAlreadyFinished if the
	// attempt was closed concurrently.
	Finalize(ctx context.Context, a *model.Attempt) error
	ListByOwner(ctx context.Context, ownerID int, assessmentID uuid.UUID, kind model.AttemptKind) ([]model.Attempt, error)
}

// SnapshotStore persists the frozen question set of each attempt.
type SnapshotStore interface {
	InsertBatch(ctx context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID) error
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.SnapshotItem, error)
	// SaveGrades fills answer fields of existing rows; it never inserts.
	SaveGrades(ctx context.Context, attemptID uuid.UUID, items []model.SnapshotItem) error
}

// QuestionBank is the read side of the question catalog.
type QuestionBank interface {
	// SelectQuestions returns up to count random, distinct, active questions.
	SelectQuestions(ctx context.Context, assessmentID uuid.UUID, count int) ([]model.QuestionRef, error)
	// ResolveCorrectKeys reads the current answer key of each question.
	ResolveCorrectKeys(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]model.OptionKey, error)
	PublicQuestions(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]model.PublicQuestion, error)
}

// PolicyStore reads assessment policies.
type PolicyStore interface {
	GetPolicy(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentPolicy, error)
}

// EnrollmentChecker answers whether an identity may attempt a module's assessments.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, ownerID int, moduleID uuid.UUID) (bool, error)
}

// OutcomeStore records a passed post-test against the enrollment.
type OutcomeStore interface {
	ApplyPassOutcome(ctx context.Context, ownerID int, moduleID uuid.UUID, percentage float64, completedAt time.Time) error
}

// Stores groups the repositories bound to one transaction.
type Stores struct {
	Attempts  AttemptStore
	Snapshots SnapshotStore
	Outcomes  OutcomeStore
}

// Transactor runs fn as one atomic unit. fn may be invoked more than once
// when the transaction is retried, so it must not have side effects outside s.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
