package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/middleware"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/response"
	"github.com/stemsi/exstem-attempts/internal/service"
	ws "github.com/stemsi/exstem-attempts/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams deadline state of an attempt and accepts submissions over WebSocket.
type WSHandler struct {
	engine         AttemptEngine
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	requestTimeout time.Duration
}

// NewWSHandler creates a new WSHandler. requestTimeout bounds each action.
func NewWSHandler(engine AttemptEngine, log zerolog.Logger, allowedOrigins []string, requestTimeout time.Duration) *WSHandler {
	return &WSHandler{
		engine:         engine,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		requestTimeout: requestTimeout,
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream?token=...
// Answers ping with the server clock and grades the attempt on submit.
func (h *WSHandler) AttemptStream(c *gin.Context) {
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

	// Reject foreign or unknown attempts before upgrading.
	if _, err := h.engine.AttemptState(c.Request.Context(), actor, attemptID); err != nil {
		status, code := errorStatus(err)
		response.Fail(c, status, code)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("owner_id", actor.ID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Attempt stream connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			h.handlePing(conn, wsLog, actor, attemptID)
		case ws.ActionSubmit:
			if h.handleSubmit(conn, wsLog, actor, attemptID, msg.Answers) {
				return
			}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) actionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.requestTimeout)
}

func (h *WSHandler) handlePing(conn *websocket.Conn, wsLog zerolog.Logger, actor model.Actor, attemptID uuid.UUID) {
	ctx, cancel := h.actionContext()
	defer cancel()

	clock, err := h.engine.AttemptState(ctx, actor, attemptID)
	if err != nil {
		h.writeEngineError(conn, wsLog, err, nil)
		return
	}

	ws.WriteTyped(conn, ws.PongResponse{
		Event:            ws.EventPong,
		Status:           clock.State,
		ServerTime:       clock.ServerTime,
		ExpiresAt:        clock.ExpiresAt,
		RemainingSeconds: int(clock.Remaining / time.Second),
	})
}

// handleSubmit reports whether the attempt is closed and the stream should end.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, actor model.Actor, attemptID uuid.UUID, answers []model.SubmittedAnswer) bool {
	ctx, cancel := h.actionContext()
	defer cancel()

	result, err := h.engine.Submit(ctx, actor, attemptID, answers)
	if err != nil {
		h.writeEngineError(conn, wsLog, err, result)
		return errors.Is(err, service.ErrTimeExceeded) || errors.Is(err, service.ErrAlreadySubmitted)
	}

	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Result: result})
	return true
}

func (h *WSHandler) writeEngineError(conn *websocket.Conn, wsLog zerolog.Logger, err error, result *model.Result) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		wsLog.Error().Err(err).Msg("Attempt stream action failed")
	}
	ws.WriteTyped(conn, ws.ErrorResponse{
		Event:   ws.EventError,
		Code:    string(code),
		Message: response.GetMessage(code),
		Result:  result,
	})
}
