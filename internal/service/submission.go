package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/deadline"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/repository"
	"github.com/stemsi/exstem-attempts/internal/scoring"
)

// Submit grades and closes an attempt.
//
// A submission that arrives after the deadline closes the attempt as failed;
// the returned Result has TimedOut set and the error is ErrTimeExceeded.
func (s *AttemptService) Submit(ctx context.Context, actor model.Actor, attemptID uuid.UUID, answers []model.SubmittedAnswer) (*model.Result, error) {
	byQuestion := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.UserAnswer
	}

	var (
		result   *model.Result
		attempt  *model.Attempt
		timedOut bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context, st repository.Stores) error {
		result, attempt, timedOut = nil, nil, false

		a, err := st.Attempts.LockByID(ctx, attemptID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAttemptNotFound
			}
			return storeErr("lock attempt", err)
		}
		if a.OwnerID != actor.ID {
			return ErrUnauthorized
		}
		if a.IsFinished() {
			return ErrAlreadySubmitted
		}

		policy, err := s.loadPolicy(ctx, a.AssessmentID)
		if err != nil {
			return err
		}

		items, err := st.Snapshots.ListByAttempt(ctx, a.ID)
		if err != nil {
			return storeErr("list snapshot", err)
		}

		now := s.clock()
		if deadline.Check(a.StartedAt, policy.DurationMinutes, deadline.Grace, now) == deadline.Expired {
			closeExpired(a, now)
			if err := st.Attempts.Finalize(ctx, a); err != nil {
				return finalizeErr(err)
			}
			attempt, timedOut = a, true
			result = resultOf(a, policy, len(items), 0)
			return nil
		}

		keys, err := s.bank.ResolveCorrectKeys(ctx, questionIDs(items))
		if err != nil {
			return storeErr("resolve answer keys", err)
		}

		sum := scoring.Grade(items, byQuestion, keys, policy.PassingGrade)
		if err := st.Snapshots.SaveGrades(ctx, a.ID, items); err != nil {
			return storeErr("save grades", err)
		}

		reason := model.FinishReasonSubmitted
		a.FinishedAt = &now
		a.FinishReason = &reason
		a.Score = sum.Correct
		a.Percentage = sum.Percentage
		a.Passed = sum.Passed
		a.DurationMinutes = scoring.DurationMinutes(a.StartedAt, now)
		if err := st.Attempts.Finalize(ctx, a); err != nil {
			return finalizeErr(err)
		}

		if err := s.outcome.Apply(ctx, st.Outcomes, a, policy); err != nil {
			return storeErr("apply outcome", err)
		}

		attempt = a
		result = resultOf(a, policy, sum.Total, sum.Correct)
		return nil
	})
	if err != nil {
		return nil, storeErr("submit attempt", err)
	}

	if timedOut {
		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Int("owner_id", actor.ID).
			Msg("Late submission rejected")
		s.publish(ctx, attempt, model.AttemptEventRejectedLate)
		return result, ErrTimeExceeded
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Int("owner_id", actor.ID).
		Int("score", result.Score).
		Float64("percentage", result.Percentage).
		Bool("passed", result.Passed).
		Msg("Attempt submitted")
	s.publish(ctx, attempt, model.AttemptEventSubmitted)
	return result, nil
}

// GetResult returns the graded breakdown of a closed attempt.
func (s *AttemptService) GetResult(ctx context.Context, actor model.Actor, attemptID uuid.UUID) (*model.DetailedResult, error) {
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
	if !a.IsFinished() {
		return nil, ErrStillInProgress
	}

	policy, err := s.loadPolicy(ctx, a.AssessmentID)
	if err != nil {
		return nil, err
	}

	items, err := s.snapshots.ListByAttempt(ctx, a.ID)
	if err != nil {
		return nil, storeErr("list snapshot", err)
	}

	public, err := s.bank.PublicQuestions(ctx, questionIDs(items))
	if err != nil {
		return nil, storeErr("load questions", err)
	}

	correct := 0
	breakdown := make([]model.ResultItem, 0, len(items))
	for _, it := range items {
		q, ok := public[it.QuestionID]
		if !ok {
			q = model.PublicQuestion{ID: it.QuestionID}
		}
		isCorrect := it.IsCorrect != nil && *it.IsCorrect
		if isCorrect {
			correct++
		}
		breakdown = append(breakdown, model.ResultItem{
			PublicQuestion:  q,
			SubmittedAnswer: it.SubmittedAnswer,
			CorrectAnswer:   it.CorrectAnswer,
			IsCorrect:       isCorrect,
		})
	}

	return &model.DetailedResult{
		Result: *resultOf(a, policy, len(items), correct),
		Items:  breakdown,
	}, nil
}

func resultOf(a *model.Attempt, policy *model.AssessmentPolicy, total, correct int) *model.Result {
	r := &model.Result{
		AttemptID:       a.ID,
		Kind:            a.Kind,
		Score:           a.Score,
		Percentage:      a.Percentage,
		Passed:          a.Passed,
		TotalQuestions:  total,
		CorrectAnswers:  correct,
		PassingGrade:    policy.PassingGrade,
		DurationMinutes: a.DurationMinutes,
		TimedOut:        a.FinishReason != nil && *a.FinishReason == model.FinishReasonExpired,
	}
	if a.FinishedAt != nil {
		r.FinishedAt = *a.FinishedAt
	}
	return r
}

// finalizeErr maps a lost compare-and-swap to ErrAlreadySubmitted.
func finalizeErr(err error) error {
	if errors.Is(err, repository.ErrAlreadyFinished) {
		return ErrAlreadySubmitted
	}
	return storeErr("finalize attempt", err)
}
