package topics

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// EmbedFunc produces an embedding vector for a piece of text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Classifier assigns a topic label to a user message, scoring it against the
// given candidate labels. A nil or empty candidate set means the default
// topic catalogue.
type Classifier interface {
	Classify(ctx context.Context, message string, candidates []string) (label string, keywords []string, confidence float64, err error)
}

// topicCatalogue maps topic labels to keyword sets for the default classifier.
var topicCatalogue = map[string][]string{
	"weather":       {"weather", "temperature", "rain", "sunny", "forecast", "cold", "hot", "snow"},
	"time_and_date": {"time", "date", "today", "tomorrow", "clock", "day", "month", "year"},
	"technology":    {"computer", "software", "code", "programming", "app", "internet", "phone", "ai"},
	"food":          {"food", "eat", "recipe", "cook", "restaurant", "dinner", "lunch", "breakfast"},
	"health":        {"health", "doctor", "exercise", "sleep", "medicine", "sick", "pain", "diet"},
	"work":          {"work", "job", "meeting", "project", "deadline", "office", "boss", "career"},
	"entertainment": {"movie", "music", "game", "book", "show", "play", "watch", "listen"},
	"travel":        {"travel", "trip", "flight", "hotel", "vacation", "visit", "city", "country"},
	"personal":      {"feel", "think", "remember", "family", "friend", "life", "home", "love"},
}

// candidateLabels resolves the working label set: the caller's candidates, or
// the full catalogue when none are given.
func candidateLabels(candidates []string) []string {
	if len(candidates) > 0 {
		return candidates
	}
	labels := make([]string, 0, len(topicCatalogue))
	for label := range topicCatalogue {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// KeywordClassifier scores messages against the keyword catalogue. Candidate
// labels without a catalogue entry cannot match. It never returns an error.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, message string, candidates []string) (string, []string, float64, error) {
	words := tokenize(message)
	if len(words) == 0 {
		return "general_conversation", nil, 0.5, nil
	}

	bestLabel := "general_conversation"
	bestScore := 0.0
	var bestHits []string

	for _, label := range candidateLabels(candidates) {
		keywords, ok := topicCatalogue[label]
		if !ok {
			continue
		}
		var hits []string
		for _, kw := range keywords {
			if _, ok := words[kw]; ok {
				hits = append(hits, kw)
			}
		}
		if len(hits) == 0 {
			continue
		}
		score := float64(len(hits)) / float64(len(keywords))
		if score > bestScore {
			bestScore = score
			bestLabel = label
			bestHits = hits
		}
	}

	if bestScore == 0 {
		return "general_conversation", nil, 0.5, nil
	}

	// A single keyword hit is weak evidence, several is strong
	confidence := 0.55 + bestScore
	if confidence > 0.95 {
		confidence = 0.95
	}
	return bestLabel, bestHits, confidence, nil
}

// EmbeddingClassifier scores messages against candidate labels by cosine
// similarity of embeddings. Label embeddings are computed once and cached.
// Any embedder failure falls back to keyword matching.
type EmbeddingClassifier struct {
	embed    EmbedFunc
	fallback KeywordClassifier

	mu    sync.Mutex
	cache map[string][]float32
}

// NewEmbeddingClassifier creates a classifier backed by embed. A nil embed
// behaves like the keyword classifier.
func NewEmbeddingClassifier(embed EmbedFunc) *EmbeddingClassifier {
	return &EmbeddingClassifier{embed: embed, cache: make(map[string][]float32)}
}

func (c *EmbeddingClassifier) Classify(ctx context.Context, message string, candidates []string) (string, []string, float64, error) {
	if c.embed == nil {
		return c.fallback.Classify(ctx, message, candidates)
	}

	msgVec, err := c.embed(ctx, message)
	if err != nil {
		return c.fallback.Classify(ctx, message, candidates)
	}

	bestLabel := ""
	bestSim := -1.0
	for _, label := range candidateLabels(candidates) {
		vec, err := c.labelEmbedding(ctx, label)
		if err != nil {
			return c.fallback.Classify(ctx, message, candidates)
		}
		if sim := cosineSim(msgVec, vec); sim > bestSim {
			bestSim = sim
			bestLabel = label
		}
	}
	if bestLabel == "" {
		return "general_conversation", extractKeywords(message), 0.5, nil
	}

	confidence := bestSim
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return bestLabel, extractKeywords(message), confidence, nil
}

// labelEmbedding embeds a candidate label, enriched with its catalogue
// keywords when it has any.
func (c *EmbeddingClassifier) labelEmbedding(ctx context.Context, label string) ([]float32, error) {
	c.mu.Lock()
	vec, ok := c.cache[label]
	c.mu.Unlock()
	if ok {
		return vec, nil
	}

	text := label
	if keywords, ok := topicCatalogue[label]; ok {
		text = label + " " + strings.Join(keywords, " ")
	}
	vec, err := c.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[label] = vec
	c.mu.Unlock()
	return vec, nil
}

func cosineSim(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// topicStopWords are filler words excluded from extracted keywords.
var topicStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "is": {}, "are": {}, "was": {}, "what": {}, "this": {}, "that": {},
}

// extractKeywords pulls up to five content words out of a message.
func extractKeywords(message string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(strings.ToLower(message)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if len(w) <= 3 {
			continue
		}
		if _, ok := topicStopWords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}
