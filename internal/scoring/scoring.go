// Package scoring grades a frozen snapshot against freshly resolved answer keys.
package scoring

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// Summary is the aggregate of a graded snapshot.
type Summary struct {
	Total      int
	Correct    int
	Percentage float64
	Passed     bool
}

// Grade fills the answer fields of every snapshot item in place.
//
// answers holds the client's raw answers by question id; ids that are not in
// the snapshot are ignored. keys holds the authoritative correct option per
// question; a question with no key can never be answered correctly.
func Grade(items []model.SnapshotItem, answers map[uuid.UUID]string, keys map[uuid.UUID]model.OptionKey, passingGrade float64) Summary {
	correct := 0
	for i := range items {
		item := &items[i]

		item.SubmittedAnswer = nil
		if raw, ok := answers[item.QuestionID]; ok {
			if k, ok := model.ParseOptionKey(raw); ok {
				item.SubmittedAnswer = &k
			}
		}

		item.CorrectAnswer = nil
		if k, ok := keys[item.QuestionID]; ok {
			k := k
			item.CorrectAnswer = &k
		}

		isCorrect := item.SubmittedAnswer != nil && item.CorrectAnswer != nil &&
			*item.SubmittedAnswer == *item.CorrectAnswer
		item.IsCorrect = &isCorrect
		if isCorrect {
			correct++
		}
	}

	pct := Percentage(correct, len(items))
	return Summary{
		Total:      len(items),
		Correct:    correct,
		Percentage: pct,
		Passed:     pct >= passingGrade,
	}
}

// Percentage is 100*correct/total rounded to two decimals; 0 when total is 0.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct)*10000/float64(total)) / 100
}

// DurationMinutes rounds elapsed time up to whole minutes.
func DurationMinutes(startedAt, finishedAt time.Time) int {
	secs := finishedAt.Sub(startedAt).Seconds()
	if secs <= 0 {
		return 0
	}
	return int(math.Ceil(secs / 60))
}
