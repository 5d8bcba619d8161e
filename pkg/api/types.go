package api

import "time"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID       string        `json:"user_id,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
	Message      string        `json:"message"`
	Provider     string        `json:"provider,omitempty"` // "auto" (default), or a backend name
	VoiceEmotion *VoiceEmotion `json:"voice_emotion,omitempty"`
}

// VoiceEmotion is an emotion reading from client-side voice analysis,
// fused with text analysis when its intensity is high enough.
type VoiceEmotion struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
}

// ChatResponse is the success payload of POST /chat.
type ChatResponse struct {
	Message   string       `json:"message"`
	UserID    string       `json:"user_id"`
	SessionID string       `json:"session_id"`
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	Topic     *TopicInfo   `json:"conversation,omitempty"`
	Ambiguity *Ambiguity   `json:"confidence,omitempty"`
	Actions   []ActionInfo `json:"actions"`
}

// TopicInfo describes the conversation topic state after a turn.
type TopicInfo struct {
	CurrentTopic string   `json:"current_topic"`
	TopicChanged bool     `json:"topic_changed"`
	TopicHistory []string `json:"topic_history"`
	MessageCount int      `json:"message_count"`
}

// Ambiguity reports the gate's analysis of the user message.
type Ambiguity struct {
	Intent             string   `json:"intent"`
	Score              float64  `json:"score"`
	IsAmbiguous        bool     `json:"is_ambiguous"`
	NeedsClarification bool     `json:"needs_clarification"`
	Reasons            []string `json:"reasons,omitempty"`
}

// ActionInfo describes an action the assistant requested and its outcome.
type ActionInfo struct {
	Type   string `json:"type"`
	Data   any    `json:"data,omitempty"`
	Result string `json:"result,omitempty"`
}

// NewChatRequest is the body of POST /new_chat.
type NewChatRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// NewChatResponse is the success payload of POST /new_chat.
type NewChatResponse struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	Message       string `json:"message"`
	MemorySummary string `json:"memory_summary"`
	FactsCount    int    `json:"facts_count"`
}

// SessionInfo is a single session in GET /sessions/{user_id}.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
}

// MessageInfo is a single message in GET /session/{session_id}/messages.
type MessageInfo struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// KnowledgeAddRequest is the body of POST /knowledge/add.
type KnowledgeAddRequest struct {
	Content  string            `json:"content"`
	Title    string            `json:"title,omitempty"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// KnowledgeQueryRequest is the body of POST /knowledge/query.
type KnowledgeQueryRequest struct {
	Query         string  `json:"query"`
	TopK          int     `json:"top_k,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

// KnowledgeEntry is a knowledge base entry on the wire.
type KnowledgeEntry struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Source     string            `json:"source"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float64           `json:"similarity,omitempty"`
	Rank       int               `json:"rank,omitempty"`
}

// MemoryResponse is the payload of GET /memory/{user_id}.
type MemoryResponse struct {
	Summary   string     `json:"memory_summary"`
	Facts     []string   `json:"facts"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// MemoryUpdateRequest is the body of PUT /memory/{user_id}.
type MemoryUpdateRequest struct {
	Summary string   `json:"memory_summary"`
	Facts   []string `json:"facts"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	UserID            string `json:"user_id"`
	MessageID         string `json:"message_id"`
	Type              string `json:"feedback_type"` // "rating" | "correction"
	Rating            int    `json:"rating,omitempty"`
	Correction        string `json:"correction,omitempty"`
	UserMessage       string `json:"user_message,omitempty"`
	AssistantResponse string `json:"assistant_response,omitempty"`
}

// BackendStatus reports one generation backend's availability.
type BackendStatus struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
