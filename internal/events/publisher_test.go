package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/interview"
)

func TestNew_NilConfigIsLogOnly(t *testing.T) {
	p := New(nil, zerolog.Nop())
	if p.enabled {
		t.Fatalf("nil config must disable kafka")
	}
	// Log-only publishing must not panic or block.
	p.OnTurn("s1", interview.Turn{ID: "t1", Speaker: interview.SpeakerCandidate, Text: "hi"})
	p.OnPhaseChange(interview.PhaseChange{SessionID: "s1", From: interview.PhaseIdle, To: interview.PhaseGreeting})
	time.Sleep(20 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNew_DisabledConfigKeepsTopics(t *testing.T) {
	p := New(&Config{
		TopicTurns:       "interview.turns",
		TopicTransitions: "interview.transitions",
		Enabled:          false,
	}, zerolog.Nop())
	if p.enabled {
		t.Fatalf("disabled config must not enable kafka")
	}
	if p.topicTurns != "interview.turns" || p.topicTransitions != "interview.transitions" {
		t.Fatalf("topics not retained: %q %q", p.topicTurns, p.topicTransitions)
	}
}

func TestNew_NoBrokersIsLogOnly(t *testing.T) {
	p := New(&Config{Enabled: true}, zerolog.Nop())
	if p.enabled {
		t.Fatalf("no brokers must disable kafka")
	}
}

func TestNew_EnabledBuildsWriters(t *testing.T) {
	p := New(&Config{
		Brokers:          []string{"localhost:9092"},
		TopicTurns:       "interview.turns",
		TopicTransitions: "interview.transitions",
		Enabled:          true,
	}, zerolog.Nop())
	if !p.enabled || p.writerTurns == nil || p.writerTransitions == nil {
		t.Fatalf("expected writers for enabled config")
	}
	// Writers are lazy; closing without publishing must be clean.
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
