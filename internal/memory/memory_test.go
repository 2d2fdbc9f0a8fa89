package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/interview"
)

func turn(speaker interview.Speaker, text string) interview.Turn {
	return interview.Turn{
		ID:        text,
		Speaker:   speaker,
		Text:      text,
		Phase:     interview.PhaseGreeting,
		Timestamp: time.Now().UTC(),
	}
}

func TestInMemory_AppendAndGet(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()

	if err := m.Append(ctx, "s1", turn(interview.SpeakerInterviewer, "hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.Append(ctx, "s1", turn(interview.SpeakerCandidate, "hi there")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.Append(ctx, "s2", turn(interview.SpeakerCandidate, "other session")); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := m.GetContext(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(turns) != 2 || turns[0].Text != "hello" || turns[1].Text != "hi there" {
		t.Fatalf("unexpected transcript %+v", turns)
	}
}

func TestInMemory_SessionsAreIsolated(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()
	_ = m.Append(ctx, "a", turn(interview.SpeakerCandidate, "only in a"))

	turns, err := m.GetContext(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty transcript, got %+v", turns)
	}
}

func TestInMemory_GetReturnsCopy(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()
	_ = m.Append(ctx, "s", turn(interview.SpeakerCandidate, "original"))

	turns, _ := m.GetContext(ctx, "s")
	turns[0].Text = "mutated"

	again, _ := m.GetContext(ctx, "s")
	if again[0].Text != "original" {
		t.Fatalf("stored transcript was mutated through the returned slice")
	}
}

func TestInMemory_Clear(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()
	_ = m.Append(ctx, "s", turn(interview.SpeakerCandidate, "bye"))

	if err := m.Clear(ctx, "s"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	turns, _ := m.GetContext(ctx, "s")
	if len(turns) != 0 {
		t.Fatalf("expected cleared transcript, got %+v", turns)
	}
}

func TestInMemory_ConcurrentAppends(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Append(ctx, "s", turn(interview.SpeakerCandidate, "x"))
		}()
	}
	wg.Wait()

	turns, _ := m.GetContext(ctx, "s")
	if len(turns) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(turns))
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not a url", zerolog.Nop()); err == nil {
		t.Fatalf("expected parse error for malformed url")
	}
}
