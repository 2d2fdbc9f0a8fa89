// Package transcript turns a noisy stream of partial speech-recognition
// events into one clean finalized utterance per human turn.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Capture mode selects how an utterance is bounded.
type Mode int

const (
	// ModeManual gates capture on a push-to-talk control; finalize arms when
	// the gate releases.
	ModeManual Mode = iota
	// ModeAuto captures continuously; finalize arms after every accepted
	// event and fires on silence.
	ModeAuto
)

// Config holds the aggregator thresholds. All values are tunable; the
// defaults were chosen against real recognizer behavior, not derived from a
// model of its segmentation.
type Config struct {
	Mode Mode
	// SpeechGrace discards events for this long after system speech ends,
	// so the tail of synthesized audio is never captured.
	SpeechGrace time.Duration
	// MinLength discards trimmed events and finalize candidates shorter
	// than this many bytes as recognizer noise.
	MinLength int
	// PrefixWindow is how many leading characters of the buffer an event
	// must match (case-insensitively) to count as a correction of the same
	// segment rather than a new one. Manual mode only.
	PrefixWindow int
	// ManualSettle is the countdown armed on gate release; late fragments
	// rearm it.
	ManualSettle time.Duration
	// AutoSettle is the silence countdown armed after every accepted event
	// in automatic mode.
	AutoSettle time.Duration
	// AutoGap is the silence gap after which automatic mode treats the next
	// event as the start of a new utterance, clearing the duplicate marker.
	AutoGap time.Duration
	// OnFinalized and OnDiscarded, when set, observe aggregation outcomes.
	// Discard reasons are "suppressed", "noise", "empty" and "duplicate".
	OnFinalized func()
	OnDiscarded func(reason string)
}

// DefaultConfig returns the tuned defaults for the given mode.
func DefaultConfig(mode Mode) Config {
	return Config{
		Mode:         mode,
		SpeechGrace:  500 * time.Millisecond,
		MinLength:    2,
		PrefixWindow: 20,
		ManualSettle: 2 * time.Second,
		AutoSettle:   3 * time.Second,
		AutoGap:      5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig(c.Mode)
	if c.SpeechGrace <= 0 {
		c.SpeechGrace = def.SpeechGrace
	}
	if c.MinLength <= 0 {
		c.MinLength = def.MinLength
	}
	if c.PrefixWindow <= 0 {
		c.PrefixWindow = def.PrefixWindow
	}
	if c.ManualSettle <= 0 {
		c.ManualSettle = def.ManualSettle
	}
	if c.AutoSettle <= 0 {
		c.AutoSettle = def.AutoSettle
	}
	if c.AutoGap <= 0 {
		c.AutoGap = def.AutoGap
	}
	return c
}

// Aggregator accumulates partial recognition events for one capture surface
// and emits exactly one finalized utterance per completed episode. All waits
// are rearmable timers; no method blocks the caller.
type Aggregator struct {
	cfg Config
	log zerolog.Logger

	mu             sync.Mutex
	buffer         string
	lastFinal      string
	lastEventAt    time.Time
	systemSpeaking bool
	speechEndedAt  time.Time
	gateDown       bool
	settleTimer    *time.Timer
	closed         bool

	finals chan string
	done   chan struct{}
}

// New creates an aggregator. Zero-valued config fields fall back to the
// defaults for the configured mode.
func New(cfg Config, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg.withDefaults(),
		log:    log,
		finals: make(chan string, 16),
		done:   make(chan struct{}),
	}
}

// Finals returns the channel delivering finalized utterances.
func (a *Aggregator) Finals() <-chan string { return a.finals }

// Done is closed when the aggregator shuts down.
func (a *Aggregator) Done() <-chan struct{} { return a.done }

// SetSystemSpeaking toggles feedback suppression. While on, every incoming
// event is discarded; after it turns off, events are still discarded for the
// configured grace window.
func (a *Aggregator) SetSystemSpeaking(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.systemSpeaking && !on {
		a.speechEndedAt = time.Now()
	}
	a.systemSpeaking = on
}

// GateDown starts a manual capture episode from a clean slate: the buffer,
// the duplicate marker and any pending countdown from the prior episode are
// all reset.
func (a *Aggregator) GateDown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.Mode != ModeManual || a.closed {
		return
	}
	a.stopTimerLocked()
	a.buffer = ""
	a.lastFinal = ""
	a.gateDown = true
}

// GateUp releases the capture gate. Finalize does not happen immediately:
// a countdown is armed so fragments the recognizer is still delivering can
// join the utterance.
func (a *Aggregator) GateUp() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.Mode != ModeManual || a.closed || !a.gateDown {
		return
	}
	a.gateDown = false
	a.armTimerLocked(a.cfg.ManualSettle)
}

// HandleEvent feeds one partial recognition event into the aggregator.
func (a *Aggregator) HandleEvent(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.systemSpeaking {
		a.discarded("suppressed")
		return
	}
	if !a.speechEndedAt.IsZero() && time.Since(a.speechEndedAt) < a.cfg.SpeechGrace {
		a.discarded("suppressed")
		return
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < a.cfg.MinLength {
		a.discarded("noise")
		return
	}

	switch a.cfg.Mode {
	case ModeManual:
		a.handleManualLocked(trimmed)
	case ModeAuto:
		a.handleAutoLocked(trimmed)
	}
	a.lastEventAt = time.Now()
}

// handleManualLocked accepts events only while the gate is held or the
// post-release countdown is still pending.
func (a *Aggregator) handleManualLocked(text string) {
	pending := a.settleTimer != nil
	if !a.gateDown && !pending {
		return
	}

	if a.buffer == "" {
		a.buffer = text
	} else if !sharesPrefix(a.buffer, text, a.cfg.PrefixWindow) {
		// The recognizer re-segmented: keep what we have and append.
		a.buffer = a.buffer + " " + text
	} else if len(text) > len(a.buffer) {
		// Correction of the same segment; refinements only ever grow it.
		a.buffer = text
	}

	if pending {
		a.armTimerLocked(a.cfg.ManualSettle)
	}
}

// handleAutoLocked assumes a cumulative recognizer: each event replaces the
// buffer outright, and a long gap marks the start of a new utterance.
func (a *Aggregator) handleAutoLocked(text string) {
	if !a.lastEventAt.IsZero() && time.Since(a.lastEventAt) > a.cfg.AutoGap {
		a.lastFinal = ""
	}
	a.buffer = text
	a.armTimerLocked(a.cfg.AutoSettle)
}

// sharesPrefix reports whether candidate begins with the first window
// characters of base, compared case-insensitively.
func sharesPrefix(base, candidate string, window int) bool {
	prefix := base
	if len(prefix) > window {
		prefix = prefix[:window]
	}
	return strings.HasPrefix(strings.ToLower(candidate), strings.ToLower(prefix))
}

func (a *Aggregator) armTimerLocked(d time.Duration) {
	if a.settleTimer == nil {
		a.settleTimer = time.AfterFunc(d, a.finalize)
		return
	}
	a.settleTimer.Stop()
	a.settleTimer.Reset(d)
}

func (a *Aggregator) discarded(reason string) {
	if a.cfg.OnDiscarded != nil {
		a.cfg.OnDiscarded(reason)
	}
}

func (a *Aggregator) stopTimerLocked() {
	if a.settleTimer != nil {
		a.settleTimer.Stop()
		a.settleTimer = nil
	}
}

func (a *Aggregator) settle() time.Duration {
	if a.cfg.Mode == ModeManual {
		return a.cfg.ManualSettle
	}
	return a.cfg.AutoSettle
}

// finalize runs when the settle countdown elapses. It commits the buffer as
// one utterance, unless the episode turned out empty, duplicated, or the
// system started speaking (in which case it reschedules itself).
func (a *Aggregator) finalize() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.systemSpeaking {
		a.armTimerLocked(a.settle())
		a.mu.Unlock()
		return
	}
	a.settleTimer = nil

	text := strings.TrimSpace(a.buffer)
	a.buffer = ""
	if len(text) < a.cfg.MinLength {
		a.discarded("empty")
		a.mu.Unlock()
		return
	}
	if text == a.lastFinal {
		a.log.Debug().Str("text", text).Msg("duplicate finalize suppressed")
		a.discarded("duplicate")
		a.mu.Unlock()
		return
	}
	a.lastFinal = text
	if a.cfg.OnFinalized != nil {
		a.cfg.OnFinalized()
	}
	a.mu.Unlock()

	select {
	case a.finals <- text:
	case <-a.done:
	}
}

// Close tears the aggregator down and cancels any pending countdown.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.stopTimerLocked()
	a.mu.Unlock()
	close(a.done)
}
