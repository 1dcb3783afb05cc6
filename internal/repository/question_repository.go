package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// QuestionRepository is the PostgreSQL-backed question bank.
type QuestionRepository struct {
	db DBTX
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// SelectQuestions picks count distinct active questions of an assessment at random.
func (r *QuestionRepository) SelectQuestions(ctx context.Context, assessmentID uuid.UUID, count int) ([]model.QuestionRef, error) {
	if count <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, prompt, options, image_ref, correct_key
		 FROM questions
		 WHERE assessment_id = $1 AND is_active
		 ORDER BY random()
		 LIMIT $2`, assessmentID, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuestionRef
	for rows.Next() {
		var (
			q   model.QuestionRef
			raw json.RawMessage
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &raw, &q.ImageRef, &q.CorrectKey); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ResolveCorrectKeys reads the current answer key of each question.
// Questions that no longer exist are absent from the result.
func (r *QuestionRepository) ResolveCorrectKeys(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]model.OptionKey, error) {
	keys := make(map[uuid.UUID]model.OptionKey, len(questionIDs))
	if len(questionIDs) == 0 {
		return keys, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, correct_key FROM questions WHERE id = ANY($1::uuid[])`, questionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  uuid.UUID
			key model.OptionKey
		)
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		keys[id] = key
	}
	return keys, rows.Err()
}

// PublicQuestions loads the student-facing projection of the given questions.
func (r *QuestionRepository) PublicQuestions(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]model.PublicQuestion, error) {
	out := make(map[uuid.UUID]model.PublicQuestion, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, prompt, options, image_ref FROM questions WHERE id = ANY($1::uuid[])`, questionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q   model.PublicQuestion
			raw json.RawMessage
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &raw, &q.ImageRef); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}
