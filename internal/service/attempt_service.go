package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/deadline"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/repository"
	"github.com/stemsi/exstem-attempts/internal/scoring"
)

// AttemptDeps are the collaborators of AttemptService. Attempts and Snapshots
// are used for reads outside a transaction.
type AttemptDeps struct {
	Tx         repository.Transactor
	Attempts   repository.AttemptStore
	Snapshots  repository.SnapshotStore
	Bank       repository.QuestionBank
	Policies   repository.PolicyStore
	Enrollment repository.EnrollmentChecker
	Outcome    *OutcomePropagator
	Audit      AuditPublisher
	Log        zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// AttemptService runs the attempt lifecycle: start, resume, expiry, submission and results.
type AttemptService struct {
	tx         repository.Transactor
	attempts   repository.AttemptStore
	snapshots  repository.SnapshotStore
	bank       repository.QuestionBank
	policies   repository.PolicyStore
	enrollment repository.EnrollmentChecker
	outcome    *OutcomePropagator
	audit      AuditPublisher
	log        zerolog.Logger
	now        func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(d AttemptDeps) *AttemptService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	outcome := d.Outcome
	if outcome == nil {
		outcome = NewOutcomePropagator(d.Log)
	}
	return &AttemptService{
		tx:         d.Tx,
		attempts:   d.Attempts,
		snapshots:  d.Snapshots,
		bank:       d.Bank,
		policies:   d.Policies,
		enrollment: d.Enrollment,
		outcome:    outcome,
		audit:      d.Audit,
		log:        d.Log.With().Str("component", "attempt_service").Logger(),
		now:        now,
	}
}

// clock returns the current time at the precision PostgreSQL stores.
func (s *AttemptService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Start begins a new attempt or resumes the caller's active one.
//
// An open attempt that is already past its deadline is closed as failed and
// ErrAttemptExpired is returned; the next Start creates a fresh attempt.
func (s *AttemptService) Start(ctx context.Context, actor model.Actor, assessmentID uuid.UUID, kind model.AttemptKind) (*model.AttemptView, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	policy, err := s.loadPolicy(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, policy); err != nil {
		return nil, err
	}

	var (
		attempt   *model.Attempt
		questions []model.PublicQuestion
		resumed   bool
		expired   bool
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context, st repository.Stores) error {
		attempt, questions, resumed, expired = nil, nil, false, false
		now := s.clock()

		open, err := st.Attempts.LockOpen(ctx, actor.ID, assessmentID, kind)
		switch {
		case err == nil:
			if deadline.Check(open.StartedAt, policy.DurationMinutes, deadline.Grace, now) == deadline.Expired {
				closeExpired(open, now)
				if err := st.Attempts.Finalize(ctx, open); err != nil {
					return storeErr("expire attempt", err)
				}
				attempt, expired = open, true
				return nil
			}
			attempt, resumed = open, true
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return storeErr("lock open attempt", err)
		}

		created := &model.Attempt{
			OwnerID:      actor.ID,
			AssessmentID: assessmentID,
			Kind:         kind,
			StartedAt:    now,
		}
		if err := st.Attempts.Create(ctx, created); err != nil {
			return storeErr("create attempt", err)
		}

		picked, err := s.bank.SelectQuestions(ctx, assessmentID, policy.QuestionsLimit)
		if err != nil {
			return storeErr("select questions", err)
		}
		if len(picked) == 0 {
			return ErrNoEligibleContent
		}

		ids := make([]uuid.UUID, len(picked))
		public := make([]model.PublicQuestion, len(picked))
		for i, q := range picked {
			ids[i] = q.ID
			public[i] = q.Public()
		}
		if err := st.Snapshots.InsertBatch(ctx, created.ID, ids); err != nil {
			return storeErr("insert snapshot", err)
		}

		attempt, questions = created, public
		return nil
	})
	if err != nil {
		return nil, storeErr("start attempt", err)
	}

	switch {
	case expired:
		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Int("owner_id", actor.ID).
			Msg("Open attempt expired on start")
		s.publish(ctx, attempt, model.AttemptEventExpired)
		return nil, ErrAttemptExpired
	case resumed:
		questions, err = s.snapshotQuestions(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, attempt, model.AttemptEventResumed)
	default:
		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Int("owner_id", actor.ID).
			Str("kind", string(kind)).
			Int("questions", len(questions)).
			Msg("Attempt started")
		s.publish(ctx, attempt, model.AttemptEventStarted)
	}

	return &model.AttemptView{
		AttemptID:       attempt.ID,
		AssessmentID:    attempt.AssessmentID,
		Kind:            attempt.Kind,
		DurationMinutes: policy.DurationMinutes,
		GraceSeconds:    int(deadline.Grace / time.Second),
		StartedAt:       attempt.StartedAt,
		ExpiresAt:       deadline.ExpiresAt(attempt.StartedAt, policy.DurationMinutes, deadline.Grace),
		ServerTime:      s.clock(),
		Resumed:         resumed,
		Questions:       questions,
	}, nil
}

// GetQuestions returns the frozen questions of the caller's active attempt.
// It never creates or modifies an attempt.
func (s *AttemptService) GetQuestions(ctx context.Context, actor model.Actor, assessmentID uuid.UUID, kind model.AttemptKind) (*model.QuestionsView, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	open, err := s.attempts.FindOpen(ctx, actor.ID, assessmentID, kind)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveAttempt
		}
		return nil, storeErr("find open attempt", err)
	}

	policy, err := s.loadPolicy(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if deadline.Check(open.StartedAt, policy.DurationMinutes, deadline.Grace, now) == deadline.Expired {
		return nil, ErrNoActiveAttempt
	}

	questions, err := s.snapshotQuestions(ctx, open.ID)
	if err != nil {
		return nil, err
	}

	return &model.QuestionsView{
		AttemptID:  open.ID,
		Kind:       open.Kind,
		StartedAt:  open.StartedAt,
		ExpiresAt:  deadline.ExpiresAt(open.StartedAt, policy.DurationMinutes, deadline.Grace),
		ServerTime: now,
		Questions:  questions,
	}, nil
}

// ListAttempts returns the caller's attempt history for an assessment, newest first.
func (s *AttemptService) ListAttempts(ctx context.Context, actor model.Actor, assessmentID uuid.UUID, kind model.AttemptKind) ([]model.AttemptSummary, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	policy, err := s.loadPolicy(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByOwner(ctx, actor.ID, assessmentID, kind)
	if err != nil {
		return nil, storeErr("list attempts", err)
	}

	now := s.clock()
	summaries := make([]model.AttemptSummary, 0, len(attempts))
	for i := range attempts {
		summaries = append(summaries, model.AttemptSummary{
			Attempt: attempts[i],
			State:   StateOf(&attempts[i], policy, now),
		})
	}
	return summaries, nil
}

// AttemptState reports the live state of one attempt, used by the attempt stream.
func (s *AttemptService) AttemptState(ctx context.Context, actor model.Actor, attemptID uuid.UUID) (*AttemptClock, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, storeErr("get attempt", err)
	}
	if a.OwnerID != actor.ID {
		return nil, ErrUnauthorized
	}

	policy, err := s.loadPolicy(ctx, a.AssessmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	return &AttemptClock{
		AttemptID:  a.ID,
		State:      StateOf(a, policy, now),
		ServerTime: now,
		ExpiresAt:  deadline.ExpiresAt(a.StartedAt, policy.DurationMinutes, deadline.Grace),
		Remaining:  deadline.Remaining(a.StartedAt, policy.DurationMinutes, deadline.Grace, now),
	}, nil
}

// AttemptClock is a point-in-time view of an attempt's deadline.
type AttemptClock struct {
	AttemptID  uuid.UUID
	State      model.AttemptState
	ServerTime time.Time
	ExpiresAt  time.Time
	Remaining  time.Duration
}

// StateOf derives the lifecycle state of an existing attempt.
func StateOf(a *model.Attempt, policy *model.AssessmentPolicy, now time.Time) model.AttemptState {
	if a == nil {
		return model.AttemptStateNone
	}
	if a.IsFinished() {
		return model.AttemptStateFinished
	}
	if deadline.Check(a.StartedAt, policy.DurationMinutes, deadline.Grace, now) == deadline.Expired {
		return model.AttemptStateExpired
	}
	return model.AttemptStateActive
}

func (s *AttemptService) loadPolicy(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentPolicy, error) {
	policy, err := s.policies.GetPolicy(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, storeErr("get policy", err)
	}
	return policy, nil
}

func (s *AttemptService) authorize(ctx context.Context, actor model.Actor, policy *model.AssessmentPolicy) error {
	if actor.Elevated {
		return nil
	}
	ok, err := s.enrollment.IsEnrolled(ctx, actor.ID, policy.ModuleID)
	if err != nil {
		return storeErr("check enrollment", err)
	}
	if !ok {
		return ErrNotEnrolled
	}
	return nil
}

// snapshotQuestions loads the public projection of an attempt's questions in display order.
func (s *AttemptService) snapshotQuestions(ctx context.Context, attemptID uuid.UUID) ([]model.PublicQuestion, error) {
	items, err := s.snapshots.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, storeErr("list snapshot", err)
	}

	public, err := s.bank.PublicQuestions(ctx, questionIDs(items))
	if err != nil {
		return nil, storeErr("load questions", err)
	}

	questions := make([]model.PublicQuestion, 0, len(items))
	for _, it := range items {
		q, ok := public[it.QuestionID]
		if !ok {
			s.log.Warn().
				Str("attempt_id", attemptID.String()).
				Str("question_id", it.QuestionID.String()).
				Msg("Snapshotted question missing from bank")
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (s *AttemptService) publish(ctx context.Context, a *model.Attempt, typ model.AttemptEventType) {
	if s.audit == nil {
		return
	}
	ev := model.AttemptEvent{
		AttemptID:    a.ID,
		OwnerID:      a.OwnerID,
		AssessmentID: a.AssessmentID,
		Kind:         a.Kind,
		Type:         typ,
		At:           s.clock(),
	}
	if a.IsFinished() {
		pct, passed := a.Percentage, a.Passed
		ev.Percentage, ev.Passed = &pct, &passed
	}
	s.audit.Publish(ctx, ev)
}

// closeExpired marks an open attempt as failed by timeout.
func closeExpired(a *model.Attempt, now time.Time) {
	reason := model.FinishReasonExpired
	a.FinishedAt = &now
	a.FinishReason = &reason
	a.Score = 0
	a.Percentage = 0
	a.Passed = false
	a.DurationMinutes = scoring.DurationMinutes(a.StartedAt, now)
}

func questionIDs(items []model.SnapshotItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.QuestionID
	}
	return ids
}
