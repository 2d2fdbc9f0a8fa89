package interview

import (
	"context"
	"sync"
	"time"
)

// Speaker attributes a turn to one side of the conversation.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// Turn is one finalized, attributed utterance in the transcript. Turns are
// immutable once appended; the append order defines the transcript.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"role"`
	Text      string    `json:"content"`
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

// Feedback holds the per-criterion score breakdown, each 0-100.
type Feedback struct {
	Persuasion    int `json:"persuasion"`
	TechnicalFit  int `json:"technicalFit"`
	Communication int `json:"communication"`
}

// EvaluationResult is the final interview outcome.
type EvaluationResult struct {
	Score    int      `json:"score"`
	Passed   bool     `json:"passed"`
	Feedback Feedback `json:"feedback"`
	Summary  string   `json:"summary"`
}

// Session is the complete state of one interview. It is owned by the
// orchestrator; all mutation happens under its lock so each session is
// effectively single-writer.
type Session struct {
	mu sync.Mutex

	ID             string
	CandidateName  string
	TargetRole     string
	CompanyContext string
	PersonalityID  string

	Phase      Phase
	Transcript []Turn
	Evaluation *EvaluationResult

	exchanges map[Phase]int
	evaluated bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PhaseChange records one transition, kept distinct from turn events so
// transitions are auditable on their own.
type PhaseChange struct {
	SessionID string
	From      Phase
	To        Phase
	Auto      bool
	At        time.Time
}

// Reply is everything an inbound operation produced: the resulting phase,
// the turns appended, transitions taken, and the evaluation if the session
// completed.
type Reply struct {
	Phase         Phase
	CandidateTurn *Turn
	ResponseTurn  *Turn
	Evaluation    *EvaluationResult
	Transitions   []PhaseChange
}

// Prompt is the view of a session a Responder needs to produce the next
// interviewer utterance.
type Prompt struct {
	SessionID      string
	Phase          Phase
	CandidateName  string
	TargetRole     string
	CompanyContext string
	PersonalityID  string
	Transcript     []Turn
	LastMessage    string
}

// Scorer evaluates a finished transcript. Implementations must be
// deterministic for identical input and free of session-state side effects.
type Scorer interface {
	Evaluate(targetRole string, transcript []Turn) (EvaluationResult, error)
}

// Filter sanitizes candidate input before it becomes a Turn.
type Filter interface {
	Sanitize(text string) (clean string, modified bool)
}

// Memory persists turns and reconstructs conversation history, e.g. after a
// reconnection gap.
type Memory interface {
	Append(ctx context.Context, sessionID string, t Turn) error
	GetContext(ctx context.Context, sessionID string) ([]Turn, error)
}

// Responder produces the interviewer's next utterance.
type Responder interface {
	Respond(ctx context.Context, p Prompt) (string, error)
}

// Observer receives turn and transition events as they are committed. The
// rendering and audit layers subscribe here instead of being reached into.
type Observer interface {
	OnTurn(sessionID string, t Turn)
	OnPhaseChange(ch PhaseChange)
}
