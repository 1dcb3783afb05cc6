package model

import (
	"strings"

	"github.com/google/uuid"
)

// OptionKey identifies one answer option of a multiple-choice question.
type OptionKey string

const (
	OptionA OptionKey = "a"
	OptionB OptionKey = "b"
	OptionC OptionKey = "c"
	OptionD OptionKey = "d"
)

// ParseOptionKey normalises a client-supplied answer. Surrounding whitespace
// and letter case are ignored; anything else is rejected.
func ParseOptionKey(raw string) (OptionKey, bool) {
	switch k := OptionKey(strings.ToLower(strings.TrimSpace(raw))); k {
	case OptionA, OptionB, OptionC, OptionD:
		return k, true
	default:
		return "", false
	}
}

// Option is a single answer choice.
type Option struct {
	Key  OptionKey `json:"key"`
	Text string    `json:"text"`
}

// QuestionRef is a question as stored in the bank, including its answer key.
// It never leaves the repository/service boundary while an attempt is open.
type QuestionRef struct {
	ID         uuid.UUID `json:"id"`
	Prompt     string    `json:"prompt"`
	Options    []Option  `json:"options"`
	ImageRef   *string   `json:"image_ref,omitempty"`
	CorrectKey OptionKey `json:"-"`
}

// Public strips the answer key.
func (q QuestionRef) Public() PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Prompt:   q.Prompt,
		Options:  q.Options,
		ImageRef: q.ImageRef,
	}
}

// PublicQuestion is the student-facing projection of a question.
type PublicQuestion struct {
	ID       uuid.UUID `json:"id"`
	Prompt   string    `json:"prompt"`
	Options  []Option  `json:"options"`
	ImageRef *string   `json:"image_ref,omitempty"`
}
