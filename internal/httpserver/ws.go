package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/interview"
	"github.com/michalfoune/rizma-heygen/internal/protocol"
)

// Close code for connections against unknown sessions.
const closeSessionNotFound = 4004

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps one session connection. Gorilla conns allow a single
// concurrent writer, so all sends go through the mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) send(s *Server, m protocol.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(m); err != nil {
		s.log.Warn().Err(err).Str("type", string(m.Kind)).Msg("ws send failed")
		return
	}
	s.metrics.WSMessagesSent.WithLabelValues(string(m.Kind)).Inc()
}

// serveWS upgrades the connection, starts the interview, and translates
// protocol messages into orchestrator calls until the client goes away.
func (s *Server) serveWS(c echo.Context) error {
	sessionID := c.Param("session_id")
	status, statusErr := s.orchestrator.StatusOf(sessionID)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	if statusErr != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeSessionNotFound, "session not found"))
		return conn.Close()
	}

	w := &wsConn{conn: conn}
	s.metrics.WSConnectionsActive.Inc()
	defer s.metrics.WSConnectionsActive.Dec()
	defer conn.Close()

	log := s.log.With().Str("sessionId", sessionID).Logger()
	log.Info().Msg("websocket connected")

	// Kick the interview off. Reconnects hit the idempotent path, learn the
	// current phase, and get the persisted history replayed so they can
	// resynchronize across the gap.
	reconnect := status.Phase != interview.PhaseIdle
	reply, err := s.orchestrator.StartInterview(c.Request().Context(), sessionID)
	if err != nil {
		w.send(s, protocol.NewError("failed to start interview"))
		return nil
	}
	s.pushReply(w, reply, true)
	if reconnect {
		s.metrics.WSReconnects.Inc()
		history, err := s.orchestrator.ContextOf(c.Request().Context(), sessionID)
		if err != nil {
			log.Warn().Err(err).Msg("history replay failed")
		}
		for _, t := range history {
			w.send(s, protocol.NewTranscriptEntry(turnPayload(t)))
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Msg("websocket closed")
			return nil
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			w.send(s, protocol.NewError("Invalid JSON"))
			continue
		}
		s.metrics.WSMessagesReceived.WithLabelValues(string(msg.Kind)).Inc()
		s.handleClientMessage(c.Request().Context(), w, sessionID, msg, log)
	}
}

func (s *Server) handleClientMessage(ctx context.Context, w *wsConn, sessionID string, msg protocol.Message, log zerolog.Logger) {
	switch msg.Kind {
	case protocol.KindTranscriptEntry:
		p, err := msg.Transcript()
		if err != nil || p.Content == "" {
			return
		}
		log.Info().Str("preview", truncate(p.Content, 100)).Msg("processing candidate message")
		reply, err := s.orchestrator.ProcessCandidateMessage(ctx, sessionID, p.Content)
		if err != nil {
			s.sendOrchestratorError(w, err)
		}
		// Whatever was committed before the failure still goes out.
		s.pushReply(w, reply, true)

	case protocol.KindStateUpdate:
		p, err := msg.State()
		if err != nil {
			w.send(s, protocol.NewError("Invalid JSON"))
			return
		}
		switch p.Action {
		case protocol.ActionEndSession:
			reply, err := s.orchestrator.EndInterview(ctx, sessionID)
			if err != nil {
				s.sendOrchestratorError(w, err)
			}
			s.pushReply(w, reply, false)
		case protocol.ActionAdvancePhase:
			reply, err := s.orchestrator.AdvancePhase(ctx, sessionID, interview.Phase(p.Phase))
			if err != nil {
				s.sendOrchestratorError(w, err)
			}
			s.pushReply(w, reply, true)
		case protocol.ActionPTTStart:
			log.Debug().Msg("push to talk started")
		case protocol.ActionPTTStop:
			log.Debug().Msg("push to talk stopped")
		default:
			log.Debug().Str("action", p.Action).Msg("ignoring unknown control action")
		}

	default:
		// Unknown kinds are tolerated so newer clients keep working.
		log.Debug().Str("type", string(msg.Kind)).Msg("ignoring unknown message kind")
	}
}

// pushReply streams everything a reply contains in presentation order:
// candidate echo, state update, interviewer line plus avatar speech, and
// finally the evaluation. speak controls whether interviewer turns also
// produce avatar_speak commands.
func (s *Server) pushReply(w *wsConn, reply interview.Reply, speak bool) {
	if reply.CandidateTurn != nil {
		w.send(s, protocol.NewTranscriptEntry(turnPayload(*reply.CandidateTurn)))
	}
	if reply.Phase != "" {
		w.send(s, protocol.NewStateUpdate(string(reply.Phase)))
	}
	if reply.ResponseTurn != nil {
		w.send(s, protocol.NewTranscriptEntry(turnPayload(*reply.ResponseTurn)))
		if speak {
			w.send(s, protocol.NewAvatarSpeak(reply.ResponseTurn.Text))
		}
	}
	if reply.Evaluation != nil {
		s.recordEvaluation(reply)
		w.send(s, protocol.NewEvaluationResult(protocol.EvaluationPayload{
			Score:  reply.Evaluation.Score,
			Passed: reply.Evaluation.Passed,
			Feedback: protocol.FeedbackPayload{
				Persuasion:    reply.Evaluation.Feedback.Persuasion,
				TechnicalFit:  reply.Evaluation.Feedback.TechnicalFit,
				Communication: reply.Evaluation.Feedback.Communication,
			},
			Summary: reply.Evaluation.Summary,
		}))
	}
}

func (s *Server) sendOrchestratorError(w *wsConn, err error) {
	switch {
	case errors.Is(err, interview.ErrEvaluationPending):
		w.send(s, protocol.NewError("evaluation in progress, input not accepted"))
	case errors.Is(err, interview.ErrSessionCompleted):
		w.send(s, protocol.NewError("interview already completed"))
	case errors.Is(err, interview.ErrNotStarted):
		w.send(s, protocol.NewError("interview not started"))
	default:
		w.send(s, protocol.NewError("request failed"))
	}
}

func turnPayload(t interview.Turn) protocol.TranscriptPayload {
	return protocol.TranscriptPayload{
		ID:        t.ID,
		Role:      string(t.Speaker),
		Content:   t.Text,
		Timestamp: t.Timestamp,
		Phase:     string(t.Phase),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
