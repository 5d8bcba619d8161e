package chat

import (
	"encoding/json"
	"strings"
)

// Parsed is the assistant's reply after interpreting the model output.
// Structured is true when the model followed the JSON response contract;
// otherwise the raw text is carried through as the message.
type Parsed struct {
	Message    string
	Action     string
	Data       map[string]any
	Structured bool
}

// ParseReply interprets raw model output. It tolerates code-fenced JSON and
// never fails: output that isn't valid structured JSON becomes a plain-text
// reply.
func ParseReply(raw string) Parsed {
	candidate := strings.TrimSpace(raw)
	candidate = stripFence(candidate)

	var payload struct {
		Message string          `json:"message"`
		Action  string          `json:"action"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil || payload.Message == "" {
		return Parsed{Message: raw}
	}

	p := Parsed{
		Message:    payload.Message,
		Action:     payload.Action,
		Structured: true,
	}
	if len(payload.Data) > 0 {
		// Data may be an object, a bare string or null
		var obj map[string]any
		if err := json.Unmarshal(payload.Data, &obj); err == nil {
			p.Data = obj
		} else {
			var s string
			if err := json.Unmarshal(payload.Data, &s); err == nil && s != "" {
				p.Data = map[string]any{"value": s}
			}
		}
	}
	return p
}

// stripFence removes a surrounding markdown code fence if present.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
