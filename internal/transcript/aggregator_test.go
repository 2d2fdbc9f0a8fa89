package transcript

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testConfig(mode Mode) Config {
	return Config{
		Mode:         mode,
		SpeechGrace:  40 * time.Millisecond,
		MinLength:    2,
		PrefixWindow: 20,
		ManualSettle: 60 * time.Millisecond,
		AutoSettle:   60 * time.Millisecond,
		AutoGap:      120 * time.Millisecond,
	}
}

func waitFinal(t *testing.T, a *Aggregator, within time.Duration) string {
	t.Helper()
	select {
	case s := <-a.Finals():
		return s
	case <-time.After(within):
		t.Fatalf("no finalized utterance within %v", within)
		return ""
	}
}

func expectNoFinal(t *testing.T, a *Aggregator, within time.Duration) {
	t.Helper()
	select {
	case s := <-a.Finals():
		t.Fatalf("unexpected finalized utterance %q", s)
	case <-time.After(within):
	}
}

func TestManual_GateReleaseFinalizesOnce(t *testing.T) {
	a := New(testConfig(ModeManual), zerolog.Nop())
	defer a.Close()

	a.GateDown()
	a.HandleEvent("I have five years")
	a.GateUp()

	got := waitFinal(t, a, 500*time.Millisecond)
	if got != "I have five years" {
		t.Fatalf("got %q", got)
	}
	expectNoFinal(t, a, 150*time.Millisecond)
}

func TestManual_LateFragmentRearmsAndWins(t *testing.T) {
	// The release scenario: the recognizer keeps delivering after the gate
	// lets go; the refined, longer text must be the single finalized turn.
	a := New(testConfig(ModeManual), zerolog.Nop())
	defer a.Close()

	a.GateDown()
	a.HandleEvent("I have five years")
	a.GateUp()
	time.Sleep(25 * time.Millisecond) // inside the settle window
	a.HandleEvent("I have five years of experience")

	got := waitFinal(t, a, 500*time.Millisecond)
	if got != "I have five years of experience" {
		t.Fatalf("got %q", got)
	}
	expectNoFinal(t, a, 150*time.Millisecond)
}

func TestManual_ShorterRefinementNeverRegresses(t *testing.T) {
	a := New(testConfig(ModeManual), zerolog.Nop())
	defer a.Close()

	a.GateDown()
	a.HandleEvent("I worked on distributed systems")
	a.HandleEvent("I worked on dist") // stale shorter partial
	a.GateUp()

	if got := waitFinal(t, a, 500*time.Millisecond); got != "I worked on distributed systems" {
		t.Fatalf("got %q", got)
	}
}

func TestManual_ResegmentedFragmentAppends(t *testing.T) {
	a := New(testConfig(ModeManual), zerolog.Nop())
	defer a.Close()

	a.GateDown()
	a.HandleEvent("I led the migration")
	a.HandleEvent("and owned the rollout") // no prefix overlap: new segment
	a.GateUp()

	if got := waitFinal(t, a, 500*time.Millisecond); got != "I led the migration and owned the rollout" {
		t.Fatalf("got %q", got)
	}
}

func TestManual_GateDownResetsEpisode(t *testing.T) {
	a := New(testConfig(ModeManual), zerolog.Nop())
	defer a.Close()

	a.GateDown()
	a.HandleEvent("first answer")
	a.GateUp()
	if got := waitFinal(t, a, 500*time.Millisecond); got != "first answer" {
		t.Fatalf("got %q", got)
	}

	// Same text in a fresh episode must not be suppressed: the marker
	// resets on gate acquisition.
	a.GateDown()
	a.HandleEvent("first answer")
	a.GateUp()
	if got := waitFinal(t, a, 500*time.Millisecond); got != "first answer" {
		t.Fatalf("got %q", got)
	}
}

func TestManual_EventsOutsideEpisodeDropped(t *testing.T) {
	a := New(testConfig(ModeManual), zerolog.Nop())
	defer a.Close()

	a.HandleEvent("stray recognizer chatter")
	expectNoFinal(t, a, 150*time.Millisecond)
}

func TestSuppression_WhileSystemSpeaking(t *testing.T) {
	a := New(testConfig(ModeAuto), zerolog.Nop())
	defer a.Close()

	a.SetSystemSpeaking(true)
	a.HandleEvent("echo of the interviewer question")
	a.HandleEvent("more echo")
	expectNoFinal(t, a, 150*time.Millisecond)
}

func TestSuppression_GracePeriodAfterSpeech(t *testing.T) {
	a := New(testConfig(ModeAuto), zerolog.Nop())
	defer a.Close()

	a.SetSystemSpeaking(true)
	a.SetSystemSpeaking(false)
	a.HandleEvent("tail of synthesized audio") // inside the grace window
	expectNoFinal(t, a, 150*time.Millisecond)

	time.Sleep(50 * time.Millisecond) // grace elapsed
	a.HandleEvent("a real answer")
	if got := waitFinal(t, a, 500*time.Millisecond); got != "a real answer" {
		t.Fatalf("got %q", got)
	}
}

func TestFinalize_DeferredWhileSystemSpeaking(t *testing.T) {
	a := New(testConfig(ModeAuto), zerolog.Nop())
	defer a.Close()

	a.HandleEvent("finished answer")
	a.SetSystemSpeaking(true)
	time.Sleep(100 * time.Millisecond) // countdown fires, must reschedule
	select {
	case s := <-a.Finals():
		t.Fatalf("finalized %q while system speaking", s)
	default:
	}
	a.SetSystemSpeaking(false)
	if got := waitFinal(t, a, 500*time.Millisecond); got != "finished answer" {
		t.Fatalf("got %q", got)
	}
}

func TestAuto_CumulativeEventsReplaceBuffer(t *testing.T) {
	a := New(testConfig(ModeAuto), zerolog.Nop())
	defer a.Close()

	a.HandleEvent("tell")
	a.HandleEvent("tell me about")
	a.HandleEvent("tell me about your project")
	if got := waitFinal(t, a, 500*time.Millisecond); got != "tell me about your project" {
		t.Fatalf("got %q", got)
	}
}

func TestAuto_DuplicateSuppressedUntilGap(t *testing.T) {
	a := New(testConfig(ModeAuto), zerolog.Nop())
	defer a.Close()

	a.HandleEvent("same words")
	if got := waitFinal(t, a, 500*time.Millisecond); got != "same words" {
		t.Fatalf("got %q", got)
	}

	// Cumulative recognizer repeats the full text right away: duplicate.
	a.HandleEvent("same words")
	expectNoFinal(t, a, 150*time.Millisecond)

	// After the silence gap a repeat is a genuinely new utterance.
	time.Sleep(140 * time.Millisecond)
	a.HandleEvent("same words")
	if got := waitFinal(t, a, 500*time.Millisecond); got != "same words" {
		t.Fatalf("got %q", got)
	}
}

func TestNoiseEventsDiscarded(t *testing.T) {
	a := New(testConfig(ModeAuto), zerolog.Nop())
	defer a.Close()

	a.HandleEvent(" a ")
	a.HandleEvent("")
	expectNoFinal(t, a, 150*time.Millisecond)
}

// outcomeRecorder collects the aggregation outcome callbacks, which fire
// from both the caller and the timer goroutine.
type outcomeRecorder struct {
	mu        sync.Mutex
	finalized int
	reasons   map[string]int
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{reasons: make(map[string]int)}
}

func (r *outcomeRecorder) onFinalized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized++
}

func (r *outcomeRecorder) onDiscarded(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons[reason]++
}

func (r *outcomeRecorder) snapshot() (int, map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.reasons))
	for k, v := range r.reasons {
		out[k] = v
	}
	return r.finalized, out
}

func TestManual_OutcomeCallbacks(t *testing.T) {
	rec := newOutcomeRecorder()
	cfg := testConfig(ModeManual)
	cfg.OnFinalized = rec.onFinalized
	cfg.OnDiscarded = rec.onDiscarded
	a := New(cfg, zerolog.Nop())
	defer a.Close()

	a.SetSystemSpeaking(true)
	a.HandleEvent("echo of the system voice")
	a.SetSystemSpeaking(false)
	a.HandleEvent("tail inside the grace window")
	time.Sleep(cfg.SpeechGrace + 20*time.Millisecond)

	a.GateDown()
	a.HandleEvent("a")
	a.HandleEvent("a real answer")
	a.GateUp()
	if got := waitFinal(t, a, 500*time.Millisecond); got != "a real answer" {
		t.Fatalf("got %q", got)
	}

	finalized, reasons := rec.snapshot()
	if finalized != 1 {
		t.Fatalf("finalized = %d, want 1", finalized)
	}
	if reasons["suppressed"] != 2 {
		t.Fatalf("suppressed = %d, want 2", reasons["suppressed"])
	}
	if reasons["noise"] != 1 {
		t.Fatalf("noise = %d, want 1", reasons["noise"])
	}
}

func TestAuto_DuplicateFinalizeReportedOnce(t *testing.T) {
	rec := newOutcomeRecorder()
	cfg := testConfig(ModeAuto)
	cfg.OnFinalized = rec.onFinalized
	cfg.OnDiscarded = rec.onDiscarded
	a := New(cfg, zerolog.Nop())
	defer a.Close()

	a.HandleEvent("same words")
	if got := waitFinal(t, a, 500*time.Millisecond); got != "same words" {
		t.Fatalf("got %q", got)
	}

	// A repeat within the silence gap is the recognizer delivering the
	// same utterance again, not a new one.
	a.HandleEvent("same words")
	expectNoFinal(t, a, 150*time.Millisecond)

	finalized, reasons := rec.snapshot()
	if finalized != 1 {
		t.Fatalf("finalized = %d, want 1", finalized)
	}
	if reasons["duplicate"] != 1 {
		t.Fatalf("duplicate = %d, want 1", reasons["duplicate"])
	}
}

func TestClose_CancelsPendingCountdown(t *testing.T) {
	a := New(testConfig(ModeAuto), zerolog.Nop())
	a.HandleEvent("about to be torn down")
	a.Close()
	expectNoFinal(t, a, 150*time.Millisecond)

	// Events after close are ignored.
	a.HandleEvent("too late")
	expectNoFinal(t, a, 100*time.Millisecond)
}
