// Package persona holds the interviewer personalities and the scripted
// lines tied to them.
package persona

import "fmt"

// Personality configures one interviewer persona. Prompt content lives
// here; behavior does not.
type Personality struct {
	ID          string
	Name        string
	Description string
	AvatarID    string
	VoiceID     string
	Background  string
	Style       string
	Values      []string
}

// Registry resolves personality ids, falling back to the default persona
// for unknown ids.
type Registry struct {
	personas map[string]Personality
}

// DefaultID is the personality used when none is requested.
const DefaultID = "default"

// NewRegistry returns a registry preloaded with the built-in personas.
func NewRegistry() *Registry {
	r := &Registry{personas: make(map[string]Personality)}
	for _, p := range builtins {
		r.personas[p.ID] = p
	}
	return r
}

// Get resolves id, returning the default persona when id is unknown.
func (r *Registry) Get(id string) Personality {
	if p, ok := r.personas[id]; ok {
		return p
	}
	return r.personas[DefaultID]
}

// All returns every registered persona.
func (r *Registry) All() []Personality {
	out := make([]Personality, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	return out
}

// Greeting builds the opening line an interviewer speaks when the session
// starts.
func Greeting(p Personality, candidateName, targetRole string) string {
	return fmt.Sprintf(
		"Hello %s! I'm %s, and I'll be your interviewer today for the %s position. "+
			"Before we begin, could you briefly introduce yourself and tell me what "+
			"interests you about this role?",
		candidateName, p.Name, targetRole,
	)
}

// Closing builds the line spoken once the interview wraps up.
func Closing(candidateName string) string {
	return fmt.Sprintf(
		"Thank you for your time today, %s. We've completed the interview. "+
			"You'll receive your results shortly.",
		candidateName,
	)
}

var builtins = []Personality{
	{
		ID:          DefaultID,
		Name:        "Sarah",
		Description: "A friendly and professional technical interviewer",
		AvatarID:    "default_interviewer",
		VoiceID:     "en-US-JennyNeural",
		Background: "You are Sarah, a Senior Engineering Manager with 12 years of experience " +
			"in tech. You've conducted hundreds of interviews and are known for putting " +
			"candidates at ease while still maintaining high standards.",
		Style: "You ask clear, direct questions and give candidates time to think. " +
			"You're encouraging but honest, and you probe deeper when answers are vague.",
		Values: []string{"innovation", "collaboration", "excellence", "integrity"},
	},
	{
		ID:          "strict",
		Name:        "Michael",
		Description: "A demanding and thorough technical interviewer",
		AvatarID:    "strict_interviewer",
		VoiceID:     "en-US-GuyNeural",
		Background: "You are Michael, a Principal Engineer with 15 years of experience. " +
			"You're known for your rigorous technical assessments and high expectations.",
		Style: "You ask challenging technical questions and expect precise answers. " +
			"You don't accept vague responses and will push for specifics.",
		Values: []string{"technical excellence", "precision", "accountability"},
	},
	{
		ID:          "friendly",
		Name:        "Emma",
		Description: "A warm and encouraging interviewer focused on culture fit",
		AvatarID:    "friendly_interviewer",
		VoiceID:     "en-US-AriaNeural",
		Background: "You are Emma, a People Operations Lead with a background in psychology. " +
			"You specialize in assessing culture fit and soft skills.",
		Style: "You create a comfortable atmosphere and focus on understanding " +
			"the whole person. You use behavioral questions and listen actively.",
		Values: []string{"empathy", "growth mindset", "teamwork", "authenticity"},
	},
}
