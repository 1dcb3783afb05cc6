package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// SnapshotRepository handles snapshot item data access.
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// InsertBatch freezes the question set of an attempt with a single COPY.
// Positions follow the order of questionIDs, starting at 1.
func (r *SnapshotRepository) InsertBatch(ctx context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID) error {
	n, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"snapshot_items"},
		[]string{"attempt_id", "question_id", "position"},
		pgx.CopyFromSlice(len(questionIDs), func(i int) ([]any, error) {
			return []any{attemptID, questionIDs[i], i + 1}, nil
		}),
	)
	if err != nil {
		return err
	}
	if int(n) != len(questionIDs) {
		return fmt.Errorf("snapshot insert: copied %d of %d rows", n, len(questionIDs))
	}
	return nil
}

// ListByAttempt retrieves the snapshot of an attempt in display order.
func (r *SnapshotRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.SnapshotItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, attempt_id, question_id, position, submitted_answer, correct_answer, is_correct
		 FROM snapshot_items
		 WHERE attempt_id = $1
		 ORDER BY position`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.SnapshotItem
	for rows.Next() {
		var it model.SnapshotItem
		if err := rows.Scan(&it.ID, &it.AttemptID, &it.QuestionID, &it.Position,
			&it.SubmittedAnswer, &it.CorrectAnswer, &it.IsCorrect); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SaveGrades updates every item of the attempt in one statement using UNNEST.
func (r *SnapshotRepository) SaveGrades(ctx context.Context, attemptID uuid.UUID, items []model.SnapshotItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, len(items))
	submitted := make([]*string, len(items))
	correct := make([]*string, len(items))
	isCorrect := make([]bool, len(items))
	for i, it := range items {
		ids[i] = it.ID
		submitted[i] = optionKeyPtr(it.SubmittedAnswer)
		correct[i] = optionKeyPtr(it.CorrectAnswer)
		isCorrect[i] = it.IsCorrect != nil && *it.IsCorrect
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE snapshot_items AS s
		 SET submitted_answer = u.submitted,
		     correct_answer = u.correct,
		     is_correct = u.is_correct
		 FROM UNNEST(
			$2::bigint[],
			$3::text[],
			$4::text[],
			$5::bool[]
		 ) AS u (id, submitted, correct, is_correct)
		 WHERE s.id = u.id AND s.attempt_id = $1`,
		attemptID, ids, submitted, correct, isCorrect)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(items) {
		return fmt.Errorf("snapshot grade: updated %d of %d rows", tag.RowsAffected(), len(items))
	}
	return nil
}

func optionKeyPtr(k *model.OptionKey) *string {
	if k == nil {
		return nil
	}
	s := string(*k)
	return &s
}
