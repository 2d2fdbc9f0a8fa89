package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/michalfoune/rizma-heygen/internal/avatar"
	"github.com/michalfoune/rizma-heygen/internal/interview"
)

type startSessionRequest struct {
	CandidateName  string `json:"candidate_name"`
	TargetRole     string `json:"target_role"`
	CompanyContext string `json:"company_context,omitempty"`
	PersonalityID  string `json:"personality_id,omitempty"`
}

type startSessionResponse struct {
	SessionID   string `json:"session_id"`
	HeyGenToken string `json:"heygen_token"`
	AvatarID    string `json:"avatar_id"`
}

// startSession creates a session and hands the frontend its avatar
// credentials. The interview itself starts when the WebSocket connects.
func (s *Server) startSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CandidateName == "" || req.TargetRole == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "candidate_name and target_role are required")
	}

	session := s.orchestrator.CreateSession(req.CandidateName, req.TargetRole, req.CompanyContext, req.PersonalityID)
	s.metrics.SessionsCreated.Inc()
	s.metrics.SessionsActive.Inc()

	avatarID := avatar.ForPersonality(session.PersonalityID)
	token, err := s.avatars.CreateStreamingToken(c.Request().Context())
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", session.ID).Msg("avatar token unavailable")
		token = "development_placeholder"
	}

	return c.JSON(http.StatusOK, startSessionResponse{
		SessionID:   session.ID,
		HeyGenToken: token,
		AvatarID:    avatarID,
	})
}

func (s *Server) sessionStatus(c echo.Context) error {
	status, err := s.orchestrator.StatusOf(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, status)
}

// endSession force-completes the interview and returns the evaluation.
func (s *Server) endSession(c echo.Context) error {
	reply, err := s.orchestrator.EndInterview(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, interview.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "evaluation failed")
	}
	s.recordEvaluation(reply)
	return c.JSON(http.StatusOK, reply.Evaluation)
}

type transcriptResponse struct {
	SessionID  string           `json:"session_id"`
	Transcript []interview.Turn `json:"transcript"`
}

func (s *Server) sessionTranscript(c echo.Context) error {
	id := c.Param("id")
	transcript, err := s.orchestrator.TranscriptOf(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, transcriptResponse{SessionID: id, Transcript: transcript})
}

// recordEvaluation observes the score once, on the reply that actually
// completed the session. Replays of a stored result are not re-counted.
func (s *Server) recordEvaluation(reply interview.Reply) {
	if reply.Evaluation == nil {
		return
	}
	for _, ch := range reply.Transitions {
		if ch.To == interview.PhaseCompleted {
			s.metrics.RecordEvaluation(reply.Evaluation.Score, reply.Evaluation.Passed)
			return
		}
	}
}

func (s *Server) listAvatars(c echo.Context) error {
	return c.JSON(http.StatusOK, s.avatars.AvailableAvatars(c.Request().Context()))
}

func (s *Server) listPersonalities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.personas.All())
}
