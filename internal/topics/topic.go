package topics

import "time"

const maxExcerpts = 5

// Topic is a labelled span of conversation with supporting evidence.
type Topic struct {
	Label      string    `json:"label"`
	Keywords   []string  `json:"keywords,omitempty"`
	Excerpts   []string  `json:"excerpts,omitempty"`
	Confidence float64   `json:"confidence"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Turns      int       `json:"turns"`
}

// absorb folds one more observation of the same topic into the running state.
// Confidence is a running average over all turns attributed to the topic.
func (t *Topic) absorb(excerpt string, confidence float64, now time.Time) {
	t.Turns++
	t.Confidence += (confidence - t.Confidence) / float64(t.Turns)
	t.UpdatedAt = now

	t.Excerpts = append(t.Excerpts, excerpt)
	if len(t.Excerpts) > maxExcerpts {
		t.Excerpts = t.Excerpts[len(t.Excerpts)-maxExcerpts:]
	}
}

func newTopic(label string, keywords []string, excerpt string, confidence float64, now time.Time) *Topic {
	return &Topic{
		Label:      label,
		Keywords:   keywords,
		Excerpts:   []string{excerpt},
		Confidence: confidence,
		StartedAt:  now,
		UpdatedAt:  now,
		Turns:      1,
	}
}
