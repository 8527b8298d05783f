package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/hoa-backend/internal/attempt"
	"github.com/stemsi/hoa-backend/internal/middleware"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/response"
	"github.com/stemsi/hoa-backend/internal/service"
	ws "github.com/stemsi/hoa-backend/internal/websocket"
)

// actionTimeout bounds one client action, including the runner round trip.
const actionTimeout = 5 * time.Second

// WSHandler streams a running attempt to its owner over WebSocket.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       ws.NewUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream
// Upgrades to WebSocket. Client actions are applied to the attempt runner;
// countdown ticks and the submission are pushed as they happen.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}

	// Ownership is checked before the upgrade so refusals are plain HTTP.
	runner, err := h.attemptService.Runner(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// Subscribe before the first snapshot so no submission slips between them.
	events, cancel := runner.Subscribe()
	defer cancel()

	s := &streamSession{
		h:         h,
		conn:      conn,
		attemptID: attemptID,
		studentID: claims.UserID,
		log:       wsLog,
	}
	if !s.sendState() {
		return
	}
	if s.submitted {
		s.sendReview()
	}

	go s.pump(events)

	for {
		var msg ws.RequestPayload
		if err := conn.Read(&msg); err != nil {
			if errors.Is(err, ws.ErrBadPayload) {
				conn.SendError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if ws.IsUnexpectedClose(err) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		s.handle(msg)
	}
}

// streamSession is the per-connection state of AttemptStream.
type streamSession struct {
	h         *WSHandler
	conn      *ws.Conn
	attemptID uuid.UUID
	studentID int
	log       zerolog.Logger
	submitted bool
}

// pump forwards runner events until the runner closes, then closes the
// connection so the read loop exits.
func (s *streamSession) pump(events <-chan attempt.Event) {
	for ev := range events {
		var err error
		switch ev.Type {
		case attempt.EventTick:
			err = s.conn.Send(ws.EventTick, ws.TickData{Remaining: ev.Remaining})
		case attempt.EventSubmitted:
			err = s.conn.Send(ws.EventSubmitted, ev.Review)
		}
		if err != nil {
			s.log.Debug().Err(err).Msg("Event write failed")
			break
		}
	}
	s.conn.Close()
}

func (s *streamSession) handle(msg ws.RequestPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	var err error
	switch msg.Action {
	case ws.ActionPing:
		s.conn.Send(ws.EventPong, nil)
		return
	case ws.ActionAnswer:
		if msg.Q == nil {
			s.sendCode(response.ErrValidation)
			return
		}
		err = s.h.attemptService.Answer(ctx, s.attemptID, s.studentID, *msg.Q, msg.AnswerValue())
	case ws.ActionNavigate:
		if msg.Q == nil {
			s.sendCode(response.ErrValidation)
			return
		}
		err = s.h.attemptService.Navigate(ctx, s.attemptID, s.studentID, *msg.Q)
	case ws.ActionSubmit:
		_, err = s.h.attemptService.Submit(ctx, s.attemptID, s.studentID)
	case ws.ActionVisibility:
		_, err = s.h.attemptService.ReportVisibility(ctx, s.attemptID, s.studentID, msg.Signal())
	default:
		s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		s.sendCode(response.ErrInvalidPayload)
		return
	}

	if err != nil {
		_, code := classify(err)
		s.sendCode(code)
		return
	}
	s.sendState()
}

func (s *streamSession) sendCode(code response.ErrCode) {
	s.conn.SendError(string(code), response.GetMessage(code))
}

// sendState writes the current snapshot and reports whether the write succeeded.
func (s *streamSession) sendState() bool {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	snap, err := s.h.attemptService.Snapshot(ctx, s.attemptID, s.studentID)
	if err != nil {
		_, code := classify(err)
		s.sendCode(code)
		return false
	}
	s.submitted = snap.Phase == model.PhaseSubmitted
	return s.conn.Send(ws.EventState, snap) == nil
}

// sendReview covers clients that connect after the submission event fired.
func (s *streamSession) sendReview() {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	review, err := s.h.attemptService.Review(ctx, s.attemptID, s.studentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load review for submitted attempt")
		return
	}
	s.conn.Send(ws.EventSubmitted, review)
}
