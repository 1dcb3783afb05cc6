package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/repository"
)

// OutcomePropagator reflects a passed post-test on the module enrollment.
type OutcomePropagator struct {
	log zerolog.Logger
}

// NewOutcomePropagator creates a new OutcomePropagator.
func NewOutcomePropagator(log zerolog.Logger) *OutcomePropagator {
	return &OutcomePropagator{log: log.With().Str("component", "outcome_propagator").Logger()}
}

// Apply records the pass against sink when a is a finished, passed POST attempt.
// It must run in the same transaction that finalized a.
func (p *OutcomePropagator) Apply(ctx context.Context, sink repository.OutcomeStore, a *model.Attempt, policy *model.AssessmentPolicy) error {
	if a.Kind != model.AttemptKindPost || !a.Passed || a.FinishedAt == nil {
		return nil
	}
	if err := sink.ApplyPassOutcome(ctx, a.OwnerID, policy.ModuleID, a.Percentage, *a.FinishedAt); err != nil {
		return err
	}
	p.log.Debug().
		Int("owner_id", a.OwnerID).
		Str("module_id", policy.ModuleID.String()).
		Float64("percentage", a.Percentage).
		Msg("Pass outcome applied")
	return nil
}
