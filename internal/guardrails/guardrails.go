// Package guardrails filters interview content: toxic language is masked,
// PII is redacted and off-topic drift is flagged. Patterns are simple
// regexes; good enough for keeping a transcript professional.
package guardrails

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var toxicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(hate|kill|die|attack|violent)\b`),
	regexp.MustCompile(`(?i)\b(stupid|idiot|dumb|loser)\b`),
	regexp.MustCompile(`(?i)\bfuck\b|\bshit\b|\bdamn\b|\bass\b`),
}

var offTopicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(politics|religion|dating|gossip)\b`),
	regexp.MustCompile(`(?i)\b(what time is it|weather today|sports score)\b`),
}

type piiPattern struct {
	name string
	re   *regexp.Regexp
}

var piiPatterns = []piiPattern{
	{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"CREDIT_CARD", regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
	{"PHONE", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
}

var allowedTopics = map[string]struct{}{
	"experience": {}, "skills": {}, "project": {}, "team": {}, "challenge": {},
	"problem": {}, "solution": {}, "technology": {}, "code": {}, "design": {},
	"leadership": {}, "communication": {}, "goal": {}, "achievement": {},
	"company": {}, "role": {}, "career": {}, "learning": {}, "growth": {},
}

var (
	repeatedBang     = regexp.MustCompile(`!{2,}`)
	repeatedQuestion = regexp.MustCompile(`\?{2,}`)
	emoji            = regexp.MustCompile(`[\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]+`)
)

// Filter screens candidate input and interviewer output. StrictMode adds
// topic-relevance checks on longer answers.
type Filter struct {
	strictMode bool
	log        zerolog.Logger
}

// New returns a filter. strictMode enables topic-relevance checks.
func New(strictMode bool, log zerolog.Logger) *Filter {
	return &Filter{strictMode: strictMode, log: log}
}

// Sanitize filters candidate input: toxic terms are masked, PII is
// redacted, and off-topic content is logged but not blocked. It reports
// whether anything changed.
func (f *Filter) Sanitize(content string) (string, bool) {
	filtered := redactPII(maskToxic(content))

	if f.isOffTopic(filtered) {
		f.log.Warn().Str("preview", preview(filtered)).Msg("off-topic content detected")
	}

	modified := filtered != content
	if modified {
		f.log.Info().Msg("candidate input filtered")
	}
	return strings.TrimSpace(filtered), modified
}

// SanitizeOutput filters interviewer output: toxic terms are masked and
// the tone is normalized (no repeated punctuation, no emoji).
func (f *Filter) SanitizeOutput(content string) (string, bool) {
	filtered := ensureProfessional(maskToxic(content))
	return strings.TrimSpace(filtered), filtered != content
}

// ValidateLength checks that a response is neither a fragment nor a wall
// of text. It returns a user-facing message when the check fails.
func (f *Filter) ValidateLength(content string, minWords, maxWords int) (bool, string) {
	n := len(strings.Fields(content))
	if n < minWords {
		return false, fmt.Sprintf("Response too short. Please provide more detail (minimum %d words).", minWords)
	}
	if n > maxWords {
		return false, fmt.Sprintf("Response too long. Please be more concise (maximum %d words).", maxWords)
	}
	return true, ""
}

// Warnings lists content concerns without filtering anything.
func (f *Filter) Warnings(content string) []string {
	var warnings []string
	for _, p := range toxicPatterns {
		if p.MatchString(content) {
			warnings = append(warnings, "Contains potentially inappropriate language")
			break
		}
	}
	if f.isOffTopic(content) {
		warnings = append(warnings, "May be off-topic for an interview context")
	}
	for _, p := range piiPatterns {
		if p.re.MatchString(content) {
			warnings = append(warnings, fmt.Sprintf("Contains %s", strings.ToLower(strings.ReplaceAll(p.name, "_", " "))))
		}
	}
	return warnings
}

func maskToxic(content string) string {
	for _, p := range toxicPatterns {
		content = p.ReplaceAllString(content, "[filtered]")
	}
	return content
}

func redactPII(content string) string {
	for _, p := range piiPatterns {
		content = p.re.ReplaceAllString(content, "[REDACTED_"+p.name+"]")
	}
	return content
}

func (f *Filter) isOffTopic(content string) bool {
	lower := strings.ToLower(content)
	for _, p := range offTopicPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	if f.strictMode {
		words := strings.Fields(lower)
		if len(words) > 10 {
			for _, w := range words {
				if _, ok := allowedTopics[w]; ok {
					return false
				}
			}
			return true
		}
	}
	return false
}

func ensureProfessional(content string) string {
	content = repeatedBang.ReplaceAllString(content, "!")
	content = repeatedQuestion.ReplaceAllString(content, "?")
	return emoji.ReplaceAllString(content, "")
}

func preview(s string) string {
	if len(s) > 50 {
		return s[:50]
	}
	return s
}
