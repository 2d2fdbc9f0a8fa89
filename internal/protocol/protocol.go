// Package protocol defines the wire contract for interview session channels.
//
// Every frame is a flat envelope of a kind tag plus a kind-specific payload.
// Consumers must ignore kinds they do not understand so new kinds can be
// introduced without breaking older clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the payload type of a message.
type Kind string

const (
	// KindStateUpdate carries phase changes (server to client) and control
	// actions (client to server).
	KindStateUpdate Kind = "state_update"
	// KindTranscriptEntry carries one finalized turn, either direction.
	KindTranscriptEntry Kind = "transcript_entry"
	// KindEvaluationResult carries the final score breakdown, server to client.
	KindEvaluationResult Kind = "evaluation_result"
	// KindAvatarSpeak asks the client to render text as system speech.
	KindAvatarSpeak Kind = "avatar_speak"
	// KindError notifies the client of a failure.
	KindError Kind = "error"
)

// Control actions carried in a state_update payload.
const (
	ActionEndSession   = "end_session"
	ActionAdvancePhase = "advance_phase"
	ActionPTTStart     = "ptt_start"
	ActionPTTStop      = "ptt_stop"
)

// Message is the wire envelope. Payload stays opaque until the consumer
// decodes it for a kind it cares about.
type Message struct {
	Kind    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StatePayload is the payload of a state_update message. Servers set Phase;
// clients set Action.
type StatePayload struct {
	Phase  string `json:"phase,omitempty"`
	Action string `json:"action,omitempty"`
}

// TranscriptPayload is the payload of a transcript_entry message.
type TranscriptPayload struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Phase     string    `json:"phase,omitempty"`
}

// SpeakPayload is the payload of an avatar_speak message.
type SpeakPayload struct {
	Text string `json:"text"`
}

// FeedbackPayload holds the per-criterion score breakdown.
type FeedbackPayload struct {
	Persuasion    int `json:"persuasion"`
	TechnicalFit  int `json:"technicalFit"`
	Communication int `json:"communication"`
}

// EvaluationPayload is the payload of an evaluation_result message.
type EvaluationPayload struct {
	Score    int             `json:"score"`
	Passed   bool            `json:"passed"`
	Feedback FeedbackPayload `json:"feedback"`
	Summary  string          `json:"summary"`
}

// ErrorPayload is the payload of an error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

func mustEnvelope(kind Kind, payload any) Message {
	raw, err := json.Marshal(payload)
	if err != nil {
		// All payload types above marshal unconditionally.
		panic(fmt.Sprintf("protocol: marshal %s payload: %v", kind, err))
	}
	return Message{Kind: kind, Payload: raw}
}

// NewStateUpdate builds a server-side phase notification.
func NewStateUpdate(phase string) Message {
	return mustEnvelope(KindStateUpdate, StatePayload{Phase: phase})
}

// NewControl builds a client-side control signal. Phase is only set for
// advance_phase, naming the phase the client wants to enter.
func NewControl(action, phase string) Message {
	return mustEnvelope(KindStateUpdate, StatePayload{Action: action, Phase: phase})
}

// NewTranscriptEntry builds a transcript_entry message.
func NewTranscriptEntry(p TranscriptPayload) Message {
	return mustEnvelope(KindTranscriptEntry, p)
}

// NewAvatarSpeak builds an avatar_speak message.
func NewAvatarSpeak(text string) Message {
	return mustEnvelope(KindAvatarSpeak, SpeakPayload{Text: text})
}

// NewEvaluationResult builds an evaluation_result message.
func NewEvaluationResult(p EvaluationPayload) Message {
	return mustEnvelope(KindEvaluationResult, p)
}

// NewError builds an error message.
func NewError(msg string) Message {
	return mustEnvelope(KindError, ErrorPayload{Message: msg})
}

// Decode parses a wire frame into a Message. Unknown kinds are returned as-is;
// only frames without a kind tag are rejected.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if m.Kind == "" {
		return Message{}, fmt.Errorf("protocol: frame missing type field")
	}
	return m, nil
}

// State decodes the payload as a StatePayload.
func (m Message) State() (StatePayload, error) {
	var p StatePayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return StatePayload{}, fmt.Errorf("protocol: decode state payload: %w", err)
	}
	return p, nil
}

// Transcript decodes the payload as a TranscriptPayload.
func (m Message) Transcript() (TranscriptPayload, error) {
	var p TranscriptPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return TranscriptPayload{}, fmt.Errorf("protocol: decode transcript payload: %w", err)
	}
	return p, nil
}

// Speak decodes the payload as a SpeakPayload.
func (m Message) Speak() (SpeakPayload, error) {
	var p SpeakPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return SpeakPayload{}, fmt.Errorf("protocol: decode speak payload: %w", err)
	}
	return p, nil
}

// Evaluation decodes the payload as an EvaluationPayload.
func (m Message) Evaluation() (EvaluationPayload, error) {
	var p EvaluationPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return EvaluationPayload{}, fmt.Errorf("protocol: decode evaluation payload: %w", err)
	}
	return p, nil
}

// Error decodes the payload as an ErrorPayload.
func (m Message) Error() (ErrorPayload, error) {
	var p ErrorPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return ErrorPayload{}, fmt.Errorf("protocol: decode error payload: %w", err)
	}
	return p, nil
}
