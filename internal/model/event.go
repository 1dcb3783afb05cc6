package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptEventType enumerates audit events emitted by the attempt engine.
type AttemptEventType string

const (
	AttemptEventStarted      AttemptEventType = "STARTED"
	AttemptEventResumed      AttemptEventType = "RESUMED"
	AttemptEventExpired      AttemptEventType = "EXPIRED"
	AttemptEventSubmitted    AttemptEventType = "SUBMITTED"
	AttemptEventRejectedLate AttemptEventType = "REJECTED_LATE"
)

// AttemptEvent is queued to Redis after a committed transition and persisted by the audit worker.
type AttemptEvent struct {
	AttemptID    uuid.UUID        `json:"attempt_id"`
	OwnerID      int              `json:"owner_id"`
	AssessmentID uuid.UUID        `json:"assessment_id"`
	Kind         AttemptKind      `json:"kind"`
	Type         AttemptEventType `json:"type"`
	Percentage   *float64         `json:"percentage,omitempty"`
	Passed       *bool            `json:"passed,omitempty"`
	At           time.Time        `json:"at"`
}
