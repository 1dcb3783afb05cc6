package websocket

import (
	"time"

	"github.com/stemsi/exstem-attempts/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload is every client message. Answers is only read for submit.
type RequestPayload struct {
	Action  Action                  `json:"action"`
	Answers []model.SubmittedAnswer `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

// PongResponse carries the server clock so the client countdown never trusts local time.
type PongResponse struct {
	Event            Event              `json:"event"`
	Status           model.AttemptState `json:"status"`
	ServerTime       time.Time          `json:"server_time"`
	ExpiresAt        time.Time          `json:"expires_at"`
	RemainingSeconds int                `json:"remaining_seconds"`
}

// GradedResponse is sent once the attempt is closed by a submit action.
type GradedResponse struct {
	Event  Event         `json:"event"`
	Result *model.Result `json:"result"`
}

// ErrorResponse reports a failed action. Result is set for late submissions.
type ErrorResponse struct {
	Event   Event         `json:"event"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Result  *model.Result `json:"result,omitempty"`
}
