// Package llm generates interviewer responses through a chat-completions
// API. When no key is configured, or a call fails, it degrades to canned
// phase-appropriate lines so the interview keeps moving.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/interview"
	"github.com/michalfoune/rizma-heygen/internal/persona"
)

const defaultEndpoint = "https://api.cerebras.ai/v1/chat/completions"

// historyWindow caps how much transcript is sent with each request.
const historyWindow = 10

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// Client implements the interviewer responder against a chat-completions
// endpoint.
type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Model      string

	personas *persona.Registry
	log      zerolog.Logger
}

// NewClient builds a responder. An empty apiKey is allowed: every call
// then returns the fallback line for the current phase.
func NewClient(apiKey, model string, personas *persona.Registry, log zerolog.Logger) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Endpoint:   defaultEndpoint,
		APIKey:     apiKey,
		Model:      model,
		personas:   personas,
		log:        log,
	}
}

// Respond produces the interviewer's next line. API failures are logged
// and answered with a canned fallback rather than an error; the interview
// must not stall because the model is down.
func (c *Client) Respond(ctx context.Context, p interview.Prompt) (string, error) {
	if c.APIKey == "" {
		c.log.Warn().Str("sessionId", p.SessionID).Msg("llm api key not configured, using fallback")
		return fallbackLine(p.Phase), nil
	}

	text, err := c.generate(ctx, p)
	if err != nil {
		c.log.Error().Err(err).Str("sessionId", p.SessionID).Msg("llm generation failed, using fallback")
		return fallbackLine(p.Phase), nil
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, p interview.Prompt) (string, error) {
	messages := append([]chatMessage{{Role: "system", Content: c.systemPrompt(p)}}, history(p)...)

	reqBody, err := json.Marshal(chatCompletionsRequest{Model: c.Model, Messages: messages, MaxTokens: 300})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("llm: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// systemPrompt scopes the model to the persona, the phase and the role.
func (c *Client) systemPrompt(p interview.Prompt) string {
	pers := c.personas.Get(p.PersonalityID)

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a professional job interviewer.\n\n", pers.Name)
	fmt.Fprintf(&b, "PERSONALITY:\n%s\n\n", pers.Background)
	fmt.Fprintf(&b, "INTERVIEWING STYLE:\n%s\n\n", pers.Style)
	fmt.Fprintf(&b, "CURRENT PHASE: %s\n%s\n\n", p.Phase, phaseInstructions(p.Phase))
	fmt.Fprintf(&b, "ROLE BEING INTERVIEWED FOR: %s\n", p.TargetRole)
	fmt.Fprintf(&b, "CANDIDATE NAME: %s\n", p.CandidateName)
	if p.CompanyContext != "" {
		fmt.Fprintf(&b, "COMPANY CONTEXT: %s\n", p.CompanyContext)
	}
	b.WriteString(`
IMPORTANT RULES:
- Keep responses SHORT (2-3 sentences max) since they will be spoken aloud
- Acknowledge what the candidate said before asking the next question
- Never repeat the exact same question
- Be conversational and natural
- Don't use bullet points or lists - speak naturally
- Don't be overly formal or robotic`)
	return b.String()
}

func phaseInstructions(phase interview.Phase) string {
	switch phase {
	case interview.PhaseGreeting:
		return `You are in the GREETING phase.
- Warmly acknowledge the candidate's introduction
- Show genuine interest in their background
- After 1-2 exchanges, naturally transition to technical questions
- Keep responses concise (2-3 sentences max)`
	case interview.PhaseTechnical:
		return `You are in the TECHNICAL phase.
- Ask relevant technical questions for the role
- Listen carefully and acknowledge the candidate's answers
- Ask follow-up questions based on their responses
- Probe deeper if answers are vague
- Keep responses conversational and concise (2-3 sentences max)
- Don't repeat the same question`
	case interview.PhaseEvaluation:
		return `You are wrapping up the interview.
- Thank the candidate for their time
- Keep it brief and professional`
	}
	return ""
}

// history maps the recent transcript into chat roles. The candidate's
// latest message is appended when the transcript does not already end
// with it.
func history(p interview.Prompt) []chatMessage {
	transcript := p.Transcript
	if len(transcript) > historyWindow {
		transcript = transcript[len(transcript)-historyWindow:]
	}
	messages := make([]chatMessage, 0, len(transcript)+1)
	for _, t := range transcript {
		role := "user"
		if t.Speaker == interview.SpeakerInterviewer {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: t.Text})
	}
	if len(messages) == 0 || messages[len(messages)-1].Content != p.LastMessage {
		messages = append(messages, chatMessage{Role: "user", Content: p.LastMessage})
	}
	return messages
}

func fallbackLine(phase interview.Phase) string {
	switch phase {
	case interview.PhaseGreeting:
		return "Thank you for that introduction. Let's move on to some technical questions."
	case interview.PhaseTechnical:
		return "That's an interesting perspective. Can you tell me more about your approach?"
	}
	return "Thank you for your time today."
}
