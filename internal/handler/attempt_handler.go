package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/middleware"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/response"
	"github.com/stemsi/exstem-attempts/internal/service"
	"github.com/stemsi/exstem-attempts/internal/validator"
)

// AttemptEngine is the part of service.AttemptService the HTTP and WebSocket handlers use.
type AttemptEngine interface {
	Start(ctx context.Context, actor model.Actor, assessmentID uuid.UUID, kind model.AttemptKind) (*model.AttemptView, error)
	GetQuestions(ctx context.Context, actor model.Actor, assessmentID uuid.UUID, kind model.AttemptKind) (*model.QuestionsView, error)
	ListAttempts(ctx context.Context, actor model.Actor, assessmentID uuid.UUID, kind model.AttemptKind) ([]model.AttemptSummary, error)
	Submit(ctx context.Context, actor model.Actor, attemptID uuid.UUID, answers []model.SubmittedAnswer) (*model.Result, error)
	GetResult(ctx context.Context, actor model.Actor, attemptID uuid.UUID) (*model.DetailedResult, error)
	AttemptState(ctx context.Context, actor model.Actor, attemptID uuid.UUID) (*service.AttemptClock, error)
}

// AttemptHandler handles learner-facing attempt endpoints.
type AttemptHandler struct {
	engine AttemptEngine
	log    zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(engine AttemptEngine, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		engine: engine,
		log:    log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/assessments/:assessment_id/start
// Starts a new attempt or resumes the active one (idempotent).
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.engine.Start(c.Request.Context(), actor, assessmentID, req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// GetQuestions godoc
// GET /api/v1/assessments/:assessment_id/:kind/questions
// Returns the frozen questions of the active attempt. Never starts an attempt.
func (h *AttemptHandler) GetQuestions(c *gin.Context) {
	actor, assessmentID, kind, ok := h.slotParams(c)
	if !ok {
		return
	}

	view, err := h.engine.GetQuestions(c.Request.Context(), actor, assessmentID, kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// ListAttempts godoc
// GET /api/v1/assessments/:assessment_id/:kind/attempts
// Returns the caller's attempt history, newest first.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	actor, assessmentID, kind, ok := h.slotParams(c)
	if !ok {
		return
	}

	attempts, err := h.engine.ListAttempts(c.Request.Context(), actor, assessmentID, kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	if attempts == nil {
		attempts = []model.AttemptSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// SubmitAttempt godoc
// POST /api/v1/attempts/:attempt_id/submit
// Grades and closes the attempt. A late submission answers 408 with the closed result.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.engine.Submit(c.Request.Context(), actor, attemptID, req.Answers)
	if err != nil {
		if errors.Is(err, service.ErrTimeExceeded) && result != nil {
			response.FailWithData(c, http.StatusRequestTimeout, response.ErrTimeExceeded, gin.H{"result": result})
			return
		}
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetResult godoc
// GET /api/v1/attempts/:attempt_id/result
// Returns the per-question breakdown of a closed attempt.
func (h *AttemptHandler) GetResult(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.engine.GetResult(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// slotParams reads the caller and the (assessment, kind) path parameters.
// On failure the response is already written.
func (h *AttemptHandler) slotParams(c *gin.Context) (model.Actor, uuid.UUID, model.AttemptKind, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return model.Actor{}, uuid.Nil, "", false
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return model.Actor{}, uuid.Nil, "", false
	}

	kind := model.AttemptKind(strings.ToUpper(c.Param("kind")))
	if !kind.Valid() {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidKind)
		return model.Actor{}, uuid.Nil, "", false
	}

	return actor, assessmentID, kind, true
}

func (h *AttemptHandler) fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Msg("Attempt request failed")
	}
	response.Fail(c, status, code)
}

// errorStatus maps attempt engine errors to an HTTP status and error code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound):
		return http.StatusNotFound, response.ErrAssessmentNotFound
	case errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrNoActiveAttempt):
		return http.StatusNotFound, response.ErrNoActiveAttempt
	case errors.Is(err, service.ErrNotEnrolled):
		return http.StatusForbidden, response.ErrNotEnrolled
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, response.ErrUnauthorizedAttempt
	case errors.Is(err, service.ErrNoEligibleContent):
		return http.StatusUnprocessableEntity, response.ErrNoEligibleContent
	case errors.Is(err, service.ErrAttemptExpired):
		return http.StatusConflict, response.ErrAttemptExpired
	case errors.Is(err, service.ErrStillInProgress):
		return http.StatusConflict, response.ErrStillInProgress
	case errors.Is(err, service.ErrAlreadySubmitted):
		return http.StatusBadRequest, response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrTimeExceeded):
		return http.StatusRequestTimeout, response.ErrTimeExceeded
	case errors.Is(err, service.ErrInvalidKind):
		return http.StatusBadRequest, response.ErrInvalidKind
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, response.ErrTimeout
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
