// Package intent scores user queries for clarity before they reach a model.
// Ambiguous queries get a clarifying question instead of a model call.
package intent

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultThreshold is the confidence below which a query counts as ambiguous.
const DefaultThreshold = 0.7

// intentExemplars maps each known intent to example phrasings. The embedding
// path averages exemplar vectors per intent; the keyword path matches them as
// substrings.
var intentExemplars = map[string][]string{
	"greeting": {
		"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
		"what's up", "how are you", "greetings",
	},
	"time_query": {
		"what time is it", "current time", "what's the time", "time now",
		"tell me the time", "clock",
	},
	"date_query": {
		"what date is it", "what's today's date", "current date", "today's date",
		"what day is it", "date today",
	},
	"search": {
		"search for", "look up", "find information about", "google",
		"search the web", "look for",
	},
	"calculation": {
		"calculate", "compute", "what is", "plus", "minus", "times", "divided by",
		"math problem", "solve",
	},
	"weather": {
		"weather", "temperature", "forecast", "rain", "sunny", "cloudy",
		"hot", "cold", "climate",
	},
	"reminder": {
		"remind me", "set reminder", "don't forget", "remember to",
		"create reminder", "schedule reminder",
	},
	"note": {
		"take note", "write down", "remember this", "save this",
		"create note", "add note",
	},
	"help": {
		"help", "how do i", "how to", "can you help", "assist me",
		"what can you do", "capabilities", "features",
	},
}

// Analysis is the result of scoring one query.
type Analysis struct {
	Query              string   `json:"query"`
	Intent             string   `json:"intent"`
	Confidence         float64  `json:"confidence"`
	Ambiguous          bool     `json:"is_ambiguous"`
	NeedsClarification bool     `json:"needs_clarification"`
	Reasons            []string `json:"ambiguity_reasons,omitempty"`
	Threshold          float64  `json:"threshold"`
}

// EmbedFunc produces an embedding vector for a piece of text. The scorer
// works without one, falling back to keyword matching.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Scorer detects query intent and flags ambiguous queries.
type Scorer struct {
	threshold float64
	embed     EmbedFunc
	// Averaged exemplar embedding per intent, computed lazily on first use.
	exemplars map[string][]float32
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithThreshold overrides the ambiguity threshold.
func WithThreshold(t float64) Option {
	return func(s *Scorer) { s.threshold = t }
}

// WithEmbedder enables the embedding similarity path.
func WithEmbedder(embed EmbedFunc) Option {
	return func(s *Scorer) { s.embed = embed }
}

// NewScorer creates a Scorer with the default threshold.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze scores a query. It never returns an error: embedding failures fall
// back to keyword matching.
func (s *Scorer) Analyze(ctx context.Context, query string) Analysis {
	a := Analysis{
		Query:     query,
		Intent:    "unknown",
		Threshold: s.threshold,
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		a.Reasons = append(a.Reasons, "empty_query")
		a.Ambiguous = true
		a.NeedsClarification = true
		return a
	}

	a.Intent, a.Confidence = s.detectIntent(ctx, query)
	a.Ambiguous = a.Confidence < s.threshold

	words := strings.Fields(query)
	lower := strings.ToLower(trimmed)
	switch {
	case len(words) < 3:
		a.Reasons = append(a.Reasons, "too_short")
	case strings.Contains(lower, "what") && !strings.Contains(query, "?"):
		a.Reasons = append(a.Reasons, "incomplete_question")
	case lower == "it" || lower == "that" || lower == "this" || lower == "thing" || lower == "something":
		a.Reasons = append(a.Reasons, "vague_reference")
	case strings.Count(query, "?") > 2:
		a.Reasons = append(a.Reasons, "multiple_questions")
	}

	a.NeedsClarification = a.Ambiguous
	return a
}

func (s *Scorer) detectIntent(ctx context.Context, query string) (string, float64) {
	if s.embed != nil {
		if intent, conf, ok := s.embeddingIntent(ctx, query); ok {
			return intent, conf
		}
	}
	return s.keywordIntent(query)
}

// embeddingIntent compares the query vector to averaged exemplar vectors by
// cosine similarity. Returns ok=false on any embedding failure.
func (s *Scorer) embeddingIntent(ctx context.Context, query string) (string, float64, bool) {
	if s.exemplars == nil {
		if err := s.precomputeExemplars(ctx); err != nil {
			return "", 0, false
		}
	}

	qv, err := s.embed(ctx, query)
	if err != nil {
		return "", 0, false
	}

	bestIntent := "unknown"
	bestSim := 0.0
	labels := sortedIntents()
	for _, intent := range labels {
		sim := cosineSimilarity(qv, s.exemplars[intent])
		if sim > bestSim {
			bestSim = sim
			bestIntent = intent
		}
	}
	return bestIntent, bestSim, true
}

func (s *Scorer) precomputeExemplars(ctx context.Context) error {
	exemplars := make(map[string][]float32, len(intentExemplars))
	for intent, patterns := range intentExemplars {
		var mean []float32
		for _, p := range patterns {
			v, err := s.embed(ctx, p)
			if err != nil {
				return fmt.Errorf("embed exemplar %q: %w", p, err)
			}
			if mean == nil {
				mean = make([]float32, len(v))
			}
			for i := range v {
				mean[i] += v[i]
			}
		}
		n := float32(len(patterns))
		for i := range mean {
			mean[i] /= n
		}
		exemplars[intent] = mean
	}
	s.exemplars = exemplars
	return nil
}

// keywordIntent counts exemplar substrings per intent. Queries under two
// words have their score halved.
func (s *Scorer) keywordIntent(query string) (string, float64) {
	lower := strings.ToLower(query)

	bestIntent := "unknown"
	bestScore := 0.0
	for _, intent := range sortedIntents() {
		patterns := intentExemplars[intent]
		matches := 0
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				matches++
			}
		}
		score := float64(matches) / float64(len(patterns))
		if score > bestScore {
			bestScore = score
			bestIntent = intent
		}
	}

	if len(strings.Fields(query)) < 2 {
		bestScore *= 0.5
	}
	return bestIntent, bestScore
}

// ClarifyingQuestion generates a question to resolve an ambiguous query.
// Reason-specific questions take priority over intent-specific ones.
func ClarifyingQuestion(a Analysis) string {
	for _, reason := range a.Reasons {
		switch reason {
		case "empty_query":
			return "I didn't catch that. Could you please tell me what you'd like to know?"
		case "too_short":
			return fmt.Sprintf("I see you mentioned %q. Can you provide more details about what you'd like to know?", a.Query)
		case "vague_reference":
			return "I'm not sure what you're referring to. Could you be more specific?"
		case "multiple_questions":
			return "I noticed you have several questions. Which one would you like me to address first?"
		case "incomplete_question":
			return "I think you're asking about something, but I'm not quite sure. Could you rephrase your question?"
		}
	}

	switch a.Intent {
	case "search":
		return "I can help you search! What specifically would you like me to look for?"
	case "reminder":
		return "I can set a reminder for you. What should I remind you about, and when?"
	case "calculation":
		return "I can help with calculations. What would you like me to compute?"
	case "weather":
		return "I can check the weather. For which location and what timeframe?"
	}

	return "I want to help, but I need a bit more information. Can you clarify what you mean?"
}

func sortedIntents() []string {
	out := make([]string, 0, len(intentExemplars))
	for intent := range intentExemplars {
		out = append(out, intent)
	}
	sort.Strings(out)
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
