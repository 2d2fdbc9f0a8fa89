package interview

// Phase is one stage of the interview state machine. Phases are strictly
// ordered; a session only ever moves forward, one phase at a time.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseGreeting   Phase = "GREETING"
	PhaseTechnical  Phase = "TECHNICAL"
	PhaseEvaluation Phase = "EVALUATION"
	PhaseCompleted  Phase = "COMPLETED"
)

var phaseOrder = []Phase{PhaseIdle, PhaseGreeting, PhaseTechnical, PhaseEvaluation, PhaseCompleted}

func (p Phase) rank() int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p, if any.
func (p Phase) Next() (Phase, bool) {
	r := p.rank()
	if r < 0 || r+1 >= len(phaseOrder) {
		return "", false
	}
	return phaseOrder[r+1], true
}

// Terminal reports whether p accepts no further transitions.
func (p Phase) Terminal() bool { return p == PhaseCompleted }

// Valid reports whether p names a known phase.
func (p Phase) Valid() bool { return p.rank() >= 0 }
