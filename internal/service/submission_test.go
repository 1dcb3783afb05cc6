package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/deadline"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeQuestionQuiz is the reference scenario: keys a, b, c and answers a, b, d.
func threeQuestionQuiz(t *testing.T, passingGrade float64, kind model.AttemptKind) (*harness, *model.AttemptView, []model.SubmittedAnswer) {
	t.Helper()
	h := newHarness(60, passingGrade, 3)
	q1 := h.bank.add(h.assessmentID, "q1", model.OptionA)
	q2 := h.bank.add(h.assessmentID, "q2", model.OptionB)
	q3 := h.bank.add(h.assessmentID, "q3", model.OptionC)

	view, err := h.svc.Start(context.Background(), h.learner, h.assessmentID, kind)
	require.NoError(t, err)

	answers := []model.SubmittedAnswer{
		{QuestionID: q1, UserAnswer: "a"},
		{QuestionID: q2, UserAnswer: "b"},
		{QuestionID: q3, UserAnswer: "d"},
	}
	return h, view, answers
}

func TestSubmitGradesAndFails(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 70, model.AttemptKindPost)
	ctx := context.Background()
	h.clock.Advance(12*time.Minute + 30*time.Second)

	res, err := h.svc.Submit(ctx, h.learner, view.AttemptID, answers)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 66.67, res.Percentage)
	assert.False(t, res.Passed)
	assert.Equal(t, 3, res.TotalQuestions)
	assert.Equal(t, 2, res.CorrectAnswers)
	assert.Equal(t, 70.0, res.PassingGrade)
	assert.Equal(t, 13, res.DurationMinutes)
	assert.False(t, res.TimedOut)
	assert.Empty(t, h.db.outcomeCalls(), "failed post-test does not complete the module")

	stored := h.db.attempt(view.AttemptID)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, model.FinishReasonSubmitted, *stored.FinishReason)

	_, err = h.svc.Submit(ctx, h.learner, view.AttemptID, answers)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 2, h.db.attempt(view.AttemptID).Score)
}

func TestSubmitPassedPostTestCompletesModule(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPost)

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)
	assert.True(t, res.Passed)

	calls := h.db.outcomeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, h.learner.ID, calls[0].OwnerID)
	assert.Equal(t, h.moduleID, calls[0].ModuleID)
	assert.Equal(t, 66.67, calls[0].Percentage)
	assert.Equal(t, res.FinishedAt, calls[0].CompletedAt)
}

func TestSubmitPassedPreTestDoesNotCompleteModule(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPre)

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Empty(t, h.db.outcomeCalls())
}

func TestSubmitOutcomeFailureRollsBack(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPost)
	h.db.outcomeErr = errors.New("enrollment table locked")

	_, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	assert.ErrorIs(t, err, ErrPersistence)

	stored := h.db.attempt(view.AttemptID)
	assert.Nil(t, stored.FinishedAt, "attempt stays open when the outcome cannot be recorded")
	assert.Empty(t, h.db.outcomeCalls())
}

func TestSubmitIgnoresQuestionsOutsideSnapshot(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 70, model.AttemptKindPre)
	extra := h.bank.add(h.assessmentID, "not in snapshot", model.OptionA)
	answers = append(answers,
		model.SubmittedAnswer{QuestionID: extra, UserAnswer: "a"},
		model.SubmittedAnswer{QuestionID: uuid.New(), UserAnswer: "a"},
	)

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalQuestions)
	assert.Equal(t, 2, res.Score)
}

func TestSubmitMissingAndMalformedAnswersAreWrong(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 70, model.AttemptKindPre)
	answers = []model.SubmittedAnswer{
		{QuestionID: answers[0].QuestionID, UserAnswer: " A "},
		{QuestionID: answers[1].QuestionID, UserAnswer: "banana"},
	}

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 33.33, res.Percentage)
}

func TestSubmitUsesCurrentAnswerKey(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 70, model.AttemptKindPre)
	h.bank.setKey(answers[2].QuestionID, model.OptionD)

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Score)
	assert.Equal(t, 100.0, res.Percentage)
}

func TestSubmitUsesCurrentPassingGrade(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 70, model.AttemptKindPre)
	pol, err := h.policies.GetPolicy(context.Background(), h.assessmentID)
	require.NoError(t, err)
	pol.PassingGrade = 50
	h.policies.set(*pol)

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 50.0, res.PassingGrade)
}

func TestSubmitAfterDeadline(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPost)
	h.clock.Advance(60*time.Minute + deadline.Grace + time.Millisecond)

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	assert.ErrorIs(t, err, ErrTimeExceeded)
	require.NotNil(t, res)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Passed)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 3, res.TotalQuestions)

	stored := h.db.attempt(view.AttemptID)
	require.NotNil(t, stored.FinishedAt)
	assert.False(t, stored.Passed)
	assert.Equal(t, model.FinishReasonExpired, *stored.FinishReason)
	assert.Empty(t, h.db.outcomeCalls())

	_, err = h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Contains(t, h.audit.types(), model.AttemptEventRejectedLate)
}

func TestSubmitAtExactDeadlineIsAccepted(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPre)
	h.clock.Advance(60*time.Minute + deadline.Grace)

	res, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
}

func TestSubmitChecksOwnership(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPre)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, model.Actor{ID: 8}, view.AttemptID, answers)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.svc.Submit(ctx, h.learner, uuid.New(), answers)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	assert.Nil(t, h.db.attempt(view.AttemptID).FinishedAt)
}

func TestConcurrentSubmitGradesOnce(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPost)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, h.db.outcomeCalls(), 1)
}

func TestGetResult(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 70, model.AttemptKindPre)
	ctx := context.Background()

	_, err := h.svc.GetResult(ctx, h.learner, view.AttemptID)
	assert.ErrorIs(t, err, ErrStillInProgress)

	_, err = h.svc.Submit(ctx, h.learner, view.AttemptID, answers)
	require.NoError(t, err)

	_, err = h.svc.GetResult(ctx, model.Actor{ID: 8}, view.AttemptID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	res, err := h.svc.GetResult(ctx, h.learner, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CorrectAnswers)
	assert.Equal(t, 66.67, res.Percentage)
	require.Len(t, res.Items, 3)

	last := res.Items[2]
	assert.Equal(t, "q3", last.Prompt)
	require.NotNil(t, last.SubmittedAnswer)
	require.NotNil(t, last.CorrectAnswer)
	assert.Equal(t, model.OptionD, *last.SubmittedAnswer)
	assert.Equal(t, model.OptionC, *last.CorrectAnswer)
	assert.False(t, last.IsCorrect)
	assert.True(t, res.Items[0].IsCorrect)
}

func TestGetResultAfterTimeout(t *testing.T) {
	h, view, _ := threeQuestionQuiz(t, 60, model.AttemptKindPre)
	ctx := context.Background()
	h.clock.Advance(2 * time.Hour)

	_, err := h.svc.Submit(ctx, h.learner, view.AttemptID, nil)
	require.ErrorIs(t, err, ErrTimeExceeded)

	res, err := h.svc.GetResult(ctx, h.learner, view.AttemptID)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	for _, item := range res.Items {
		assert.Nil(t, item.SubmittedAnswer)
		assert.False(t, item.IsCorrect)
	}
}

func TestSubmitPublishesOutcomeEvent(t *testing.T) {
	h, view, answers := threeQuestionQuiz(t, 60, model.AttemptKindPost)

	_, err := h.svc.Submit(context.Background(), h.learner, view.AttemptID, answers)
	require.NoError(t, err)

	h.audit.mu.Lock()
	defer h.audit.mu.Unlock()
	last := h.audit.events[len(h.audit.events)-1]
	assert.Equal(t, model.AttemptEventSubmitted, last.Type)
	require.NotNil(t, last.Passed)
	assert.True(t, *last.Passed)
	assert.Equal(t, 66.67, *last.Percentage)
}
