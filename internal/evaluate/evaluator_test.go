package evaluate

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/interview"
)

func candidateTurn(phase interview.Phase, text string) interview.Turn {
	return interview.Turn{Speaker: interview.SpeakerCandidate, Phase: phase, Text: text}
}

func interviewerTurn(text string) interview.Turn {
	return interview.Turn{Speaker: interview.SpeakerInterviewer, Phase: interview.PhaseGreeting, Text: text}
}

func TestEvaluate_EmptyTranscriptFails(t *testing.T) {
	e := New(0, zerolog.Nop())
	result, err := e.Evaluate("Software Engineer", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score != 0 || result.Passed {
		t.Fatalf("expected zero failing score, got %+v", result)
	}
	if result.Summary == "" {
		t.Fatalf("expected a summary for the empty transcript")
	}
}

func TestEvaluate_InterviewerOnlyTranscriptFails(t *testing.T) {
	e := New(0, zerolog.Nop())
	result, err := e.Evaluate("Software Engineer", []interview.Turn{
		interviewerTurn("Hello, welcome to the interview."),
		interviewerTurn("Are you still there?"),
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score != 0 || result.Passed {
		t.Fatalf("candidate turns are required, got %+v", result)
	}
}

func TestEvaluate_StrongTranscriptScoresHigh(t *testing.T) {
	e := New(0, zerolog.Nop())
	strong := []interview.Turn{
		interviewerTurn("Tell me about yourself."),
		candidateTurn(interview.PhaseGreeting,
			"I believe my background fits well. In my experience I led a platform team "+
				"where we achieved a major migration. I delivered the project ahead of "+
				"schedule and it resulted in measurable wins for the business. "+
				"Specifically, the rollout reduced incident volume for every downstream "+
				"consumer, and as a result the on-call load dropped across the org."),
		candidateTurn(interview.PhaseTechnical,
			"First, I designed and implemented the new api layer and optimized the "+
				"database access path. Second, I architected the caching tier and scaled "+
				"it for peak traffic. Finally, I tested and deployed the system, monitored "+
				"its performance in production, and debugged the remaining regressions. "+
				"The code and development practices I introduced used a better algorithm "+
				"and a tighter data structure for the hot path, and I refactored the "+
				"legacy programming interfaces along the way because the old design "+
				"could not keep up. Therefore the service now sustains far higher load."),
	}
	result, err := e.Evaluate("Software Engineer", strong)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score < 70 {
		t.Fatalf("expected a high score, got %d (%+v)", result.Score, result.Feedback)
	}
	if result.Feedback.TechnicalFit < 70 {
		t.Fatalf("expected strong technical fit, got %d", result.Feedback.TechnicalFit)
	}
}

func TestEvaluate_WeakTranscriptFails(t *testing.T) {
	e := New(0, zerolog.Nop())
	weak := []interview.Turn{
		candidateTurn(interview.PhaseGreeting, "um i guess im ok"),
		candidateTurn(interview.PhaseTechnical, "not sure, maybe. i don't know really"),
		candidateTurn(interview.PhaseTechnical, "uh kind of, sort of did some stuff"),
	}
	result, err := e.Evaluate("Software Engineer", weak)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Passed {
		t.Fatalf("weak transcript must not pass, got %+v", result)
	}
	if result.Feedback.Persuasion >= 50 {
		t.Fatalf("hedging must drag persuasion below base, got %d", result.Feedback.Persuasion)
	}
}

func TestEvaluate_ScoresStayInRange(t *testing.T) {
	e := New(0, zerolog.Nop())
	turns := []interview.Turn{
		candidateTurn(interview.PhaseTechnical, strings.Repeat("i don't know um uh maybe ", 40)),
	}
	result, err := e.Evaluate("Engineering Manager", turns)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for name, v := range map[string]int{
		"score":         result.Score,
		"persuasion":    result.Feedback.Persuasion,
		"technical":     result.Feedback.TechnicalFit,
		"communication": result.Feedback.Communication,
	} {
		if v < 0 || v > 100 {
			t.Errorf("%s out of range: %d", name, v)
		}
	}
}

func TestEvaluate_SummaryNamesStrongestArea(t *testing.T) {
	e := New(0, zerolog.Nop())
	turns := []interview.Turn{
		candidateTurn(interview.PhaseTechnical,
			"I implemented and deployed the api, optimized the database and monitored performance. "+
				"I designed the algorithm and tested every data structure in the code path."),
	}
	result, err := e.Evaluate("Software Engineer", turns)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(result.Summary, "strongest area") {
		t.Fatalf("summary should name the strongest area, got %q", result.Summary)
	}
	if !result.Passed && !strings.Contains(result.Summary, "80") {
		t.Fatalf("failing summary should state the threshold, got %q", result.Summary)
	}
}

func TestEvaluate_CustomThreshold(t *testing.T) {
	strict := New(99, zerolog.Nop())
	turns := []interview.Turn{
		candidateTurn(interview.PhaseTechnical,
			"I implemented, designed, architected, optimized and scaled the platform. "+
				"I tested, deployed, monitored, debugged and refactored the api and database "+
				"for performance, because the algorithm and data structure mattered. "+
				"For example, we achieved a rewrite of the code and development pipeline."),
	}
	result, err := strict.Evaluate("Software Engineer", turns)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Passed {
		t.Fatalf("threshold 99 should be out of reach for heuristics, got %+v", result)
	}
}
