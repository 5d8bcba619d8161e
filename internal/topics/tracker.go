package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	maxRecent     = 3
	maxExcerptLen = 120 // runes kept per topic excerpt
)

// resetPhrases are user phrasings that signal an explicit topic change.
var resetPhrases = []string{
	"new topic",
	"change topic",
	"different topic",
	"talk about something else",
	"let's talk about",
	"anyway",
	"by the way",
	"speaking of which",
	"on a different note",
}

// Tracker follows the current conversation topic across turns and keeps a
// short history of recently closed topics. Safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	classifier Classifier
	current    *Topic
	recent     []*Topic // oldest first, at most maxRecent
	now        func() time.Time
}

// NewTracker creates a Tracker using the given classifier.
func NewTracker(classifier Classifier) *Tracker {
	return &Tracker{
		classifier: classifier,
		now:        time.Now,
	}
}

// Observe classifies one user message and updates topic state. It returns the
// current topic after the update and whether the topic changed on this turn.
func (t *Tracker) Observe(ctx context.Context, message string) (Topic, bool, error) {
	label, keywords, confidence, err := t.classifier.Classify(ctx, message, nil)
	if err != nil {
		// Classification failure degrades to a generic continuation
		label, keywords, confidence = "general_conversation", nil, 0.5
	}

	excerpt := message
	if runes := []rune(excerpt); len(runes) > maxExcerptLen {
		excerpt = string(runes[:maxExcerptLen])
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	if t.current == nil {
		t.current = newTopic(label, keywords, excerpt, confidence, now)
		return *t.current, true, nil
	}

	if t.current.Label == label {
		t.current.absorb(excerpt, confidence, now)
		return *t.current, false, nil
	}

	t.archiveLocked()
	t.current = newTopic(label, keywords, excerpt, confidence, now)
	return *t.current, true, nil
}

// CheckReset reports whether the message contains an explicit topic-change
// phrase. It does not change tracker state.
func (t *Tracker) CheckReset(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range resetPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Reset closes the current topic, archiving it into the recent history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.archiveLocked()
	t.current = nil
}

// archiveLocked pushes the current topic onto the recent ring. Caller holds mu.
func (t *Tracker) archiveLocked() {
	if t.current == nil {
		return
	}
	t.recent = append(t.recent, t.current)
	if len(t.recent) > maxRecent {
		t.recent = t.recent[len(t.recent)-maxRecent:]
	}
}

// Current returns the active topic, or false if none is being tracked.
func (t *Tracker) Current() (Topic, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Topic{}, false
	}
	return *t.current, true
}

// Recent returns recently closed topics, oldest first.
func (t *Tracker) Recent() []Topic {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Topic, 0, len(t.recent))
	for _, topic := range t.recent {
		out = append(out, *topic)
	}
	return out
}

// Summary renders a one-line description of the conversation topics for
// prompt assembly: recently closed topic labels plus the current topic with
// its leading keywords and message count. Empty when nothing is tracked.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil && len(t.recent) == 0 {
		return ""
	}

	var parts []string
	if len(t.recent) > 0 {
		labels := make([]string, 0, len(t.recent))
		for _, topic := range t.recent {
			labels = append(labels, topic.Label)
		}
		parts = append(parts, "Recent topics: "+strings.Join(labels, ", "))
	}
	if t.current != nil {
		keywords := t.current.Keywords
		if len(keywords) > 3 {
			keywords = keywords[:3]
		}
		if len(keywords) > 0 {
			parts = append(parts, fmt.Sprintf("Current topic: %s (keywords: %s, %d messages)",
				t.current.Label, strings.Join(keywords, ", "), t.current.Turns))
		} else {
			parts = append(parts, fmt.Sprintf("Current topic: %s (%d messages)",
				t.current.Label, t.current.Turns))
		}
	}
	return strings.Join(parts, " | ")
}

// TransitionHint describes a topic switch so the assistant can acknowledge
// it. It returns an empty string until at least two topics have been closed
// and the second most recent of them differs from the current topic.
func (t *Tracker) TransitionHint() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil || len(t.recent) < 2 {
		return ""
	}
	previous := t.recent[len(t.recent)-2]
	if previous.Label == t.current.Label {
		return ""
	}
	return fmt.Sprintf("The conversation moved from %q to %q.", previous.Label, t.current.Label)
}

// snapshot is the persisted form of tracker state.
type snapshot struct {
	Current *Topic   `json:"current,omitempty"`
	Recent  []*Topic `json:"recent,omitempty"`
}

// Snapshot serializes tracker state for storage.
func (t *Tracker) Snapshot() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.Marshal(snapshot{Current: t.current, Recent: t.recent})
}

// Restore replaces tracker state from a previous Snapshot. Nil or empty data
// leaves the tracker blank.
func (t *Tracker) Restore(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("restore topic state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = s.Current
	t.recent = s.Recent
	if len(t.recent) > maxRecent {
		t.recent = t.recent[len(t.recent)-maxRecent:]
	}
	return nil
}
