package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-attempts/internal/model"
)

// EventRepository persists attempt audit events.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

var eventColumns = []string{
	"attempt_id", "owner_id", "assessment_id", "kind", "event_type", "percentage", "passed", "occurred_at",
}

func eventRow(ev model.AttemptEvent) []any {
	return []any{ev.AttemptID, ev.OwnerID, ev.AssessmentID, string(ev.Kind), string(ev.Type), ev.Percentage, ev.Passed, ev.At}
}

// CopyEvents bulk-inserts a batch with COPY. The batch is all-or-nothing.
func (r *EventRepository) CopyEvents(ctx context.Context, events []model.AttemptEvent) error {
	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"attempt_events"},
		eventColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			return eventRow(events[i]), nil
		}),
	)
	if err != nil {
		return err
	}
	if int(n) != len(events) {
		return fmt.Errorf("event copy: copied %d of %d rows", n, len(events))
	}
	return nil
}

// InsertEvent inserts a single event.
func (r *EventRepository) InsertEvent(ctx context.Context, ev model.AttemptEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO attempt_events (attempt_id, owner_id, assessment_id, kind, event_type, percentage, passed, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		eventRow(ev)...)
	return err
}
