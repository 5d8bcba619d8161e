// Package emotion infers the user's emotional state from message text and
// optional voice features, and turns it into guidance for the model.
package emotion

import "strings"

// DefaultVoiceThreshold is the voice intensity above which voice-derived
// emotion overrides text-derived emotion when fusing.
const DefaultVoiceThreshold = 0.6

// Analysis is a detected emotional state.
type Analysis struct {
	Emotion     string  `json:"emotion"`
	Sentiment   string  `json:"sentiment"` // positive, negative or neutral
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	Source      string  `json:"source"` // text, voice or voice+text
	Intensity   float64 `json:"intensity,omitempty"`
}

var descriptions = map[string]string{
	"happy":      "cheerful and positive",
	"sad":        "down or melancholic",
	"angry":      "frustrated or upset",
	"worried":    "anxious or concerned",
	"excited":    "enthusiastic and energetic",
	"grateful":   "thankful and appreciative",
	"confident":  "assured and positive",
	"frustrated": "annoyed or irritated",
	"neutral":    "calm and balanced",
}

var positiveWords = []string{
	"thanks", "thank you", "great", "good", "love", "awesome", "amazing",
	"excellent", "wonderful", "happy", "glad", "nice", "perfect", "appreciate",
}

var negativeWords = []string{
	"hate", "bad", "terrible", "awful", "angry", "mad", "sad", "worried",
	"anxious", "frustrated", "annoyed", "upset", "horrible", "scared", "afraid",
}

// AnalyzeText derives an emotion from message text using lexicon sentiment
// plus keyword cues. It always succeeds, defaulting to neutral.
func AnalyzeText(text string) Analysis {
	lower := strings.ToLower(text)

	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}

	if pos == 0 && neg == 0 {
		return neutral("text")
	}

	var sentiment string
	var confidence float64
	if pos >= neg {
		sentiment = "positive"
		confidence = 0.6 + 0.1*float64(pos)
	} else {
		sentiment = "negative"
		confidence = 0.6 + 0.1*float64(neg)
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	emotion := mapSentiment(sentiment, confidence, lower)
	return Analysis{
		Emotion:     emotion,
		Sentiment:   sentiment,
		Confidence:  confidence,
		Description: descriptions[emotion],
		Source:      "text",
	}
}

// mapSentiment refines a coarse sentiment into a specific emotion using
// keyword cues, falling back to broader labels at lower confidence.
func mapSentiment(sentiment string, confidence float64, lower string) string {
	if sentiment == "positive" {
		if confidence > 0.85 {
			if containsAny(lower, "thanks", "thank you", "grateful", "appreciate") {
				return "grateful"
			}
			if containsAny(lower, "!", "amazing", "awesome", "great", "excellent") {
				return "excited"
			}
			return "happy"
		}
		if confidence > 0.65 {
			return "confident"
		}
		return "neutral"
	}

	if confidence > 0.85 {
		if containsAny(lower, "angry", "mad", "furious", "hate") {
			return "angry"
		}
		if containsAny(lower, "worried", "anxious", "scared", "afraid", "nervous") {
			return "worried"
		}
		if containsAny(lower, "frustrated", "annoyed", "irritated") {
			return "frustrated"
		}
		return "sad"
	}
	if confidence > 0.65 {
		return "worried"
	}
	return "neutral"
}

// Fuse combines text and voice analyses. Voice wins when its intensity
// exceeds threshold, otherwise the text result stands. A zero-value voice
// analysis leaves the text result unchanged.
func Fuse(text, voice Analysis, threshold float64) Analysis {
	if voice.Emotion == "" {
		return text
	}
	if voice.Intensity > threshold {
		voice.Source = "voice+text"
		return voice
	}
	text.Source = "voice+text"
	return text
}

var prompts = map[string]string{
	"happy":      "The user seems happy and cheerful. Match their positive energy and be encouraging.",
	"sad":        "The user seems down or sad. Be empathetic, supportive, and gentle in your response.",
	"angry":      "The user seems frustrated or upset. Be calm, understanding, and help them find solutions.",
	"worried":    "The user seems anxious or concerned. Be reassuring, patient, and provide clear guidance.",
	"excited":    "The user seems excited and enthusiastic. Share their energy and be encouraging.",
	"grateful":   "The user seems grateful and appreciative. Acknowledge their thanks warmly.",
	"confident":  "The user seems confident and assured. Match their positive tone and be supportive.",
	"frustrated": "The user seems frustrated. Be patient, understanding, and solution-oriented.",
}

// PromptFragment turns an analysis into system prompt guidance. Neutral
// states produce nothing.
func (a Analysis) PromptFragment() string {
	if a.Emotion == "" || a.Emotion == "neutral" {
		return ""
	}
	base, ok := prompts[a.Emotion]
	if !ok {
		return ""
	}

	switch a.Source {
	case "voice":
		return base + " (Detected from voice tone)"
	case "text":
		return base + " (Detected from message)"
	case "voice+text":
		return base + " (Detected from voice and text)"
	}
	return base
}

func neutral(source string) Analysis {
	return Analysis{
		Emotion:     "neutral",
		Sentiment:   "neutral",
		Confidence:  0.5,
		Description: descriptions["neutral"],
		Source:      source,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
