package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/persona"
)

var (
	// ErrSessionNotFound reports an unknown session id.
	ErrSessionNotFound = errors.New("interview: session not found")
	// ErrNotStarted reports candidate input before the interview started.
	ErrNotStarted = errors.New("interview: session not started")
	// ErrSessionCompleted reports input against a terminal session.
	ErrSessionCompleted = errors.New("interview: session completed")
	// ErrEvaluationPending reports input while scoring has not produced a
	// result yet. Input is rejected, not queued.
	ErrEvaluationPending = errors.New("interview: evaluation pending")
)

// Config holds per-phase exchange quotas.
type Config struct {
	GreetingCap  int
	TechnicalCap int
}

// DefaultConfig returns the standard interview quotas.
func DefaultConfig() Config {
	return Config{GreetingCap: 3, TechnicalCap: 10}
}

// Orchestrator owns every session's phase state and progression. It is the
// single source of truth for what happens next: it consumes finalized
// candidate turns, enforces quotas, and delegates scoring, filtering and
// memory to its collaborators.
//
// Sessions are independent: the registry lock only guards the map, and each
// session carries its own mutex, so one slow session never stalls another.
type Orchestrator struct {
	cfg       Config
	scorer    Scorer
	filter    Filter
	memory    Memory
	responder Responder
	personas  *persona.Registry
	observers []Observer
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New wires an orchestrator with its collaborators. Observers receive turn
// and transition events after they are committed.
func New(cfg Config, scorer Scorer, filter Filter, memory Memory, responder Responder, personas *persona.Registry, log zerolog.Logger, observers ...Observer) *Orchestrator {
	if cfg.GreetingCap <= 0 {
		cfg.GreetingCap = DefaultConfig().GreetingCap
	}
	if cfg.TechnicalCap <= 0 {
		cfg.TechnicalCap = DefaultConfig().TechnicalCap
	}
	return &Orchestrator{
		cfg:       cfg,
		scorer:    scorer,
		filter:    filter,
		memory:    memory,
		responder: responder,
		personas:  personas,
		observers: observers,
		log:       log,
		sessions:  make(map[string]*Session),
	}
}

// CreateSession registers a new session in IDLE.
func (o *Orchestrator) CreateSession(candidateName, targetRole, companyContext, personalityID string) *Session {
	if personalityID == "" {
		personalityID = persona.DefaultID
	}
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		CandidateName:  candidateName,
		TargetRole:     targetRole,
		CompanyContext: companyContext,
		PersonalityID:  personalityID,
		Phase:          PhaseIdle,
		exchanges:      make(map[Phase]int),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	o.mu.Lock()
	o.sessions[s.ID] = s
	o.mu.Unlock()
	o.log.Info().Str("sessionId", s.ID).Str("candidate", candidateName).Str("role", targetRole).Msg("session created")
	return s
}

// Get returns the session for id, if registered.
func (o *Orchestrator) Get(id string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

// StartInterview moves a session from IDLE to GREETING and produces the
// interviewer's greeting. Calling it again on a started session is a no-op
// that reports the current phase.
func (o *Orchestrator) StartInterview(ctx context.Context, id string) (Reply, error) {
	s, ok := o.Get(id)
	if !ok {
		return Reply{}, ErrSessionNotFound
	}
	s.mu.Lock()
	if s.Phase != PhaseIdle {
		phase := s.Phase
		s.mu.Unlock()
		return Reply{Phase: phase}, nil
	}

	change := o.transitionLocked(s, PhaseGreeting, false)
	greeting := persona.Greeting(o.personas.Get(s.PersonalityID), s.CandidateName, s.TargetRole)
	turn := o.appendTurnLocked(s, SpeakerInterviewer, greeting)
	reply := Reply{Phase: s.Phase, ResponseTurn: &turn, Transitions: []PhaseChange{change}}
	s.mu.Unlock()

	o.remember(ctx, s.ID, turn)
	o.notify(s.ID, reply)
	return reply, nil
}

// ProcessCandidateMessage handles one finalized candidate utterance: filter,
// append, count the exchange, auto-advance at the quota, and respond. When
// the advance lands in EVALUATION the scorer runs synchronously, exactly
// once, and the session completes.
func (o *Orchestrator) ProcessCandidateMessage(ctx context.Context, id, content string) (Reply, error) {
	s, ok := o.Get(id)
	if !ok {
		return Reply{}, ErrSessionNotFound
	}
	s.mu.Lock()
	switch s.Phase {
	case PhaseIdle:
		s.mu.Unlock()
		return Reply{Phase: PhaseIdle}, ErrNotStarted
	case PhaseEvaluation:
		s.mu.Unlock()
		return Reply{Phase: PhaseEvaluation}, ErrEvaluationPending
	case PhaseCompleted:
		s.mu.Unlock()
		return Reply{Phase: PhaseCompleted}, ErrSessionCompleted
	}

	clean, modified := o.filter.Sanitize(content)
	if modified {
		o.log.Warn().Str("sessionId", s.ID).Msg("candidate input filtered")
	}

	turn := o.appendTurnLocked(s, SpeakerCandidate, clean)
	reply := Reply{CandidateTurn: &turn}

	s.exchanges[s.Phase]++
	if limit, capped := o.capFor(s.Phase); capped && s.exchanges[s.Phase] >= limit {
		change := o.advanceLocked(s, true)
		reply.Transitions = append(reply.Transitions, change)
	}

	if s.Phase == PhaseEvaluation {
		result, closing, changes, err := o.evaluateLocked(ctx, s)
		reply.Transitions = append(reply.Transitions, changes...)
		reply.Phase = s.Phase
		if err != nil {
			s.mu.Unlock()
			o.remember(ctx, s.ID, turn)
			o.notify(s.ID, reply)
			return reply, err
		}
		reply.Evaluation = result
		reply.ResponseTurn = closing
		s.mu.Unlock()
		o.remember(ctx, s.ID, turn)
		if closing != nil {
			o.remember(ctx, s.ID, *closing)
		}
		o.notify(s.ID, reply)
		return reply, nil
	}

	prompt := o.promptLocked(s, clean)
	response, err := o.responder.Respond(ctx, prompt)
	if err != nil {
		reply.Phase = s.Phase
		s.mu.Unlock()
		o.remember(ctx, s.ID, turn)
		o.notify(s.ID, reply)
		return reply, fmt.Errorf("interview: responder: %w", err)
	}
	var respTurn *Turn
	if response != "" {
		t := o.appendTurnLocked(s, SpeakerInterviewer, response)
		respTurn = &t
	}
	reply.Phase = s.Phase
	reply.ResponseTurn = respTurn
	s.mu.Unlock()

	o.remember(ctx, s.ID, turn)
	if respTurn != nil {
		o.remember(ctx, s.ID, *respTurn)
	}
	o.notify(s.ID, reply)
	return reply, nil
}

// AdvancePhase applies an explicit phase-advance control signal targeting
// the given phase. Redundant or out-of-order signals are no-ops, never
// failures: network retries can duplicate control messages.
func (o *Orchestrator) AdvancePhase(ctx context.Context, id string, target Phase) (Reply, error) {
	s, ok := o.Get(id)
	if !ok {
		return Reply{}, ErrSessionNotFound
	}
	s.mu.Lock()
	next, hasNext := s.Phase.Next()
	if !target.Valid() || !hasNext || target != next || s.Phase == PhaseIdle {
		// Already there, out of order, terminal, or a start signal in
		// disguise: nothing to do.
		phase := s.Phase
		ev := s.Evaluation
		s.mu.Unlock()
		return Reply{Phase: phase, Evaluation: ev}, nil
	}

	change := o.advanceLocked(s, false)
	reply := Reply{Transitions: []PhaseChange{change}}
	if s.Phase == PhaseEvaluation {
		result, closing, changes, err := o.evaluateLocked(ctx, s)
		reply.Transitions = append(reply.Transitions, changes...)
		reply.Phase = s.Phase
		if err != nil {
			s.mu.Unlock()
			o.notify(s.ID, reply)
			return reply, err
		}
		reply.Evaluation = result
		reply.ResponseTurn = closing
		s.mu.Unlock()
		if closing != nil {
			o.remember(ctx, s.ID, *closing)
		}
		o.notify(s.ID, reply)
		return reply, nil
	}
	reply.Phase = s.Phase
	s.mu.Unlock()
	o.notify(s.ID, reply)
	return reply, nil
}

// EndInterview force-completes a session: the phase machine walks forward to
// EVALUATION one step at a time (no skipping), scores, and completes. On an
// already-completed session it just returns the stored evaluation.
func (o *Orchestrator) EndInterview(ctx context.Context, id string) (Reply, error) {
	s, ok := o.Get(id)
	if !ok {
		return Reply{}, ErrSessionNotFound
	}
	s.mu.Lock()
	if s.Phase == PhaseCompleted {
		reply := Reply{Phase: PhaseCompleted, Evaluation: s.Evaluation}
		s.mu.Unlock()
		return reply, nil
	}

	var reply Reply
	for s.Phase != PhaseEvaluation {
		change := o.advanceLocked(s, false)
		reply.Transitions = append(reply.Transitions, change)
	}
	result, closing, changes, err := o.evaluateLocked(ctx, s)
	reply.Transitions = append(reply.Transitions, changes...)
	reply.Phase = s.Phase
	if err != nil {
		s.mu.Unlock()
		o.notify(s.ID, reply)
		return reply, err
	}
	reply.Evaluation = result
	reply.ResponseTurn = closing
	s.mu.Unlock()
	if closing != nil {
		o.remember(ctx, s.ID, *closing)
	}
	o.notify(s.ID, reply)
	return reply, nil
}

// TranscriptOf returns a copy of the session transcript.
func (o *Orchestrator) TranscriptOf(id string) ([]Turn, error) {
	s, ok := o.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.Transcript))
	copy(out, s.Transcript)
	return out, nil
}

// ContextOf returns the persisted conversation history for a session, read
// from the memory store. Reconnecting clients use it to resynchronize after
// a gap instead of trusting whatever they saw on the previous connection.
func (o *Orchestrator) ContextOf(ctx context.Context, id string) ([]Turn, error) {
	if _, ok := o.Get(id); !ok {
		return nil, ErrSessionNotFound
	}
	if o.memory == nil {
		return nil, nil
	}
	return o.memory.GetContext(ctx, id)
}

// Status is a read-only snapshot of session state.
type Status struct {
	SessionID       string    `json:"session_id"`
	Phase           Phase     `json:"phase"`
	CandidateName   string    `json:"candidate_name"`
	TargetRole      string    `json:"target_role"`
	TranscriptCount int       `json:"transcript_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusOf returns a snapshot of the session's current state.
func (o *Orchestrator) StatusOf(id string) (Status, error) {
	s, ok := o.Get(id)
	if !ok {
		return Status{}, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID:       s.ID,
		Phase:           s.Phase,
		CandidateName:   s.CandidateName,
		TargetRole:      s.TargetRole,
		TranscriptCount: len(s.Transcript),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}, nil
}

func (o *Orchestrator) capFor(p Phase) (int, bool) {
	switch p {
	case PhaseGreeting:
		return o.cfg.GreetingCap, true
	case PhaseTechnical:
		return o.cfg.TechnicalCap, true
	}
	return 0, false
}

// advanceLocked moves the session exactly one phase forward.
func (o *Orchestrator) advanceLocked(s *Session, auto bool) PhaseChange {
	next, _ := s.Phase.Next()
	return o.transitionLocked(s, next, auto)
}

func (o *Orchestrator) transitionLocked(s *Session, to Phase, auto bool) PhaseChange {
	change := PhaseChange{SessionID: s.ID, From: s.Phase, To: to, Auto: auto, At: time.Now().UTC()}
	o.log.Info().Str("sessionId", s.ID).Str("from", string(change.From)).Str("to", string(to)).Bool("auto", auto).Msg("phase transition")
	s.Phase = to
	s.UpdatedAt = change.At
	return change
}

// evaluateLocked runs the scorer exactly once for the session, records the
// result, appends the closing turn and completes. On scorer failure the
// session stays in EVALUATION so a later signal may retry; the machine never
// advances past EVALUATION without a result.
func (o *Orchestrator) evaluateLocked(ctx context.Context, s *Session) (*EvaluationResult, *Turn, []PhaseChange, error) {
	if s.evaluated {
		return s.Evaluation, nil, nil, nil
	}
	transcript := make([]Turn, len(s.Transcript))
	copy(transcript, s.Transcript)
	result, err := o.scorer.Evaluate(s.TargetRole, transcript)
	if err != nil {
		o.log.Error().Err(err).Str("sessionId", s.ID).Msg("scoring failed")
		return nil, nil, nil, fmt.Errorf("interview: scorer: %w", err)
	}
	s.evaluated = true
	s.Evaluation = &result

	closing := o.appendTurnLocked(s, SpeakerInterviewer, persona.Closing(s.CandidateName))
	change := o.transitionLocked(s, PhaseCompleted, true)
	return &result, &closing, []PhaseChange{change}, nil
}

func (o *Orchestrator) appendTurnLocked(s *Session, speaker Speaker, text string) Turn {
	t := Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Phase:     s.Phase,
		Timestamp: time.Now().UTC(),
	}
	s.Transcript = append(s.Transcript, t)
	s.UpdatedAt = t.Timestamp
	return t
}

// promptLocked builds the responder's view of the session.
func (o *Orchestrator) promptLocked(s *Session, lastMessage string) Prompt {
	transcript := make([]Turn, len(s.Transcript))
	copy(transcript, s.Transcript)
	return Prompt{
		SessionID:      s.ID,
		Phase:          s.Phase,
		CandidateName:  s.CandidateName,
		TargetRole:     s.TargetRole,
		CompanyContext: s.CompanyContext,
		PersonalityID:  s.PersonalityID,
		Transcript:     transcript,
		LastMessage:    lastMessage,
	}
}

func (o *Orchestrator) remember(ctx context.Context, sessionID string, t Turn) {
	if o.memory == nil {
		return
	}
	if err := o.memory.Append(ctx, sessionID, t); err != nil {
		o.log.Warn().Err(err).Str("sessionId", sessionID).Msg("memory append failed")
	}
}

func (o *Orchestrator) notify(sessionID string, reply Reply) {
	for _, obs := range o.observers {
		if reply.CandidateTurn != nil {
			obs.OnTurn(sessionID, *reply.CandidateTurn)
		}
		if reply.ResponseTurn != nil {
			obs.OnTurn(sessionID, *reply.ResponseTurn)
		}
		for _, ch := range reply.Transitions {
			obs.OnPhaseChange(ch)
		}
	}
}
