// Package evaluate scores interview transcripts on persuasion, technical
// fit and communication. The scoring is heuristic keyword analysis; an LLM
// backed scorer can replace it behind the same interface.
package evaluate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/interview"
)

// DefaultPassingScore is the threshold an overall score must reach.
const DefaultPassingScore = 80

var positiveTechnicalIndicators = []string{
	"implemented", "designed", "architected", "optimized", "scaled",
	"tested", "deployed", "monitored", "debugged", "refactored",
	"algorithm", "data structure", "api", "database", "performance",
}

var positiveCommunicationIndicators = []string{
	"for example", "specifically", "in particular", "as a result",
	"because", "therefore", "first", "second", "finally",
	"i believe", "in my experience", "we achieved",
}

var weakIndicators = []string{
	"i don't know", "not sure", "maybe", "i guess", "um", "uh",
	"kind of", "sort of", "i think so",
}

var confidentPhrases = []string{
	"i achieved", "i led", "i delivered", "we succeeded", "resulted in",
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Evaluator scores a finished interview. Weights: persuasion 30%,
// technical fit 40%, communication 30%.
type Evaluator struct {
	passingScore int
	log          zerolog.Logger
}

// New returns an evaluator with the given passing threshold. A threshold
// of zero or less falls back to DefaultPassingScore.
func New(passingScore int, log zerolog.Logger) *Evaluator {
	if passingScore <= 0 {
		passingScore = DefaultPassingScore
	}
	return &Evaluator{passingScore: passingScore, log: log}
}

// Evaluate scores the candidate's side of the transcript and reports
// whether the overall score clears the passing threshold.
func (e *Evaluator) Evaluate(targetRole string, transcript []interview.Turn) (interview.EvaluationResult, error) {
	var responses []interview.Turn
	for _, t := range transcript {
		if t.Speaker == interview.SpeakerCandidate {
			responses = append(responses, t)
		}
	}
	if len(responses) == 0 {
		return interview.EvaluationResult{
			Score:   0,
			Passed:  false,
			Summary: "No candidate responses to evaluate.",
		}, nil
	}

	persuasion := scorePersuasion(responses)
	technical := scoreTechnicalFit(responses, targetRole)
	communication := scoreCommunication(responses)

	score := int(float64(persuasion)*0.3 + float64(technical)*0.4 + float64(communication)*0.3)
	passed := score >= e.passingScore

	result := interview.EvaluationResult{
		Score:  score,
		Passed: passed,
		Feedback: interview.Feedback{
			Persuasion:    persuasion,
			TechnicalFit:  technical,
			Communication: communication,
		},
		Summary: e.summary(persuasion, technical, communication, passed),
	}
	e.log.Info().
		Int("score", score).
		Bool("passed", passed).
		Int("persuasion", persuasion).
		Int("technical", technical).
		Int("communication", communication).
		Msg("interview evaluated")
	return result, nil
}

// scorePersuasion rewards confident, detailed answers and penalizes
// hedging language.
func scorePersuasion(responses []interview.Turn) int {
	text := joinLower(responses)
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	score := 50
	for _, phrase := range confidentPhrases {
		if strings.Contains(text, phrase) {
			score += 5
		}
	}
	for _, indicator := range weakIndicators {
		score -= strings.Count(text, indicator) * 3
	}

	avg := float64(words) / float64(len(responses))
	switch {
	case avg > 50:
		score += 10
	case avg > 30:
		score += 5
	}
	return clamp(score)
}

// scoreTechnicalFit rewards technical vocabulary and role-relevant terms,
// and penalizes thin answers given during the technical phase.
func scoreTechnicalFit(responses []interview.Turn, targetRole string) int {
	text := joinLower(responses)

	score := 50
	for _, keyword := range positiveTechnicalIndicators {
		if strings.Contains(text, keyword) {
			score += 4
		}
	}

	role := strings.ToLower(targetRole)
	if strings.Contains(role, "engineer") && containsAny(text, "code", "programming", "development") {
		score += 10
	}
	if strings.Contains(role, "manager") && containsAny(text, "team", "leadership", "project") {
		score += 10
	}

	var techWords, techTurns int
	for _, r := range responses {
		if r.Phase == interview.PhaseTechnical {
			techWords += len(strings.Fields(r.Text))
			techTurns++
		}
	}
	if techTurns > 0 && float64(techWords)/float64(techTurns) < 20 {
		score -= 15
	}
	return clamp(score)
}

// scoreCommunication rewards structured language and sentence variety.
func scoreCommunication(responses []interview.Turn) int {
	text := joinLower(responses)

	score := 50
	for _, indicator := range positiveCommunicationIndicators {
		if strings.Contains(text, indicator) {
			score += 4
		}
	}

	var lengths []int
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) == "" {
			continue
		}
		lengths = append(lengths, len(strings.Fields(s)))
	}
	if len(lengths) > 0 {
		var sum int
		for _, l := range lengths {
			sum += l
		}
		mean := float64(sum) / float64(len(lengths))
		var variance float64
		for _, l := range lengths {
			d := float64(l) - mean
			variance += d * d
		}
		variance /= float64(len(lengths))
		if variance > 50 {
			score += 10
		}
	}

	for _, indicator := range weakIndicators {
		if strings.Contains(text, indicator) {
			score -= 2
		}
	}
	return clamp(score)
}

func (e *Evaluator) summary(persuasion, technical, communication int, passed bool) string {
	var b strings.Builder
	if passed {
		b.WriteString("Congratulations! You've passed the interview.")
	} else {
		b.WriteString("Unfortunately, you did not meet the passing threshold of ")
		b.WriteString(strconv.Itoa(e.passingScore))
		b.WriteString(".")
	}

	areas := []struct {
		name  string
		score int
	}{
		{"persuasion", persuasion},
		{"technical knowledge", technical},
		{"communication", communication},
	}
	strongest, weakest := areas[0], areas[0]
	for _, a := range areas[1:] {
		if a.score > strongest.score {
			strongest = a
		}
		if a.score < weakest.score {
			weakest = a
		}
	}
	b.WriteString(" Your strongest area was ")
	b.WriteString(strongest.name)
	b.WriteString(" (")
	b.WriteString(strconv.Itoa(strongest.score))
	b.WriteString("/100).")
	if weakest.score < 70 {
		b.WriteString(" Consider improving your ")
		b.WriteString(weakest.name)
		b.WriteString(" skills (")
		b.WriteString(strconv.Itoa(weakest.score))
		b.WriteString("/100).")
	}
	return b.String()
}

func joinLower(responses []interview.Turn) string {
	parts := make([]string, len(responses))
	for i, r := range responses {
		parts[i] = strings.ToLower(r.Text)
	}
	return strings.Join(parts, " ")
}

func containsAny(text string, candidates ...string) bool {
	for _, c := range candidates {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

