// Package chat runs the turn pipeline: load state, understand the message,
// retrieve context, call a model backend and persist the exchange.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SevenCandid/Seven-Assistant/internal/emotion"
	"github.com/SevenCandid/Seven-Assistant/internal/insights"
	"github.com/SevenCandid/Seven-Assistant/internal/intent"
	"github.com/SevenCandid/Seven-Assistant/internal/knowledge"
	"github.com/SevenCandid/Seven-Assistant/internal/llm"
	"github.com/SevenCandid/Seven-Assistant/internal/persona"
	"github.com/SevenCandid/Seven-Assistant/internal/store"
	"github.com/SevenCandid/Seven-Assistant/internal/topics"
)

// KnowledgeBase is the retrieval surface the orchestrator needs.
type KnowledgeBase interface {
	Available() bool
	Query(ctx context.Context, query string, topK int, minSimilarity float64) ([]knowledge.Result, error)
}

// CorrectionLedger is the feedback surface the orchestrator needs.
type CorrectionLedger interface {
	Context(ctx context.Context, userID string) (string, error)
	Promote(ctx context.Context, userID string, minFrequency int, mem insights.MemoryWriter) (int, error)
}

// Scorer flags ambiguous queries.
type Scorer interface {
	Analyze(ctx context.Context, query string) intent.Analysis
}

// ModelDispatcher routes generation requests to backends.
type ModelDispatcher interface {
	Dispatch(ctx context.Context, hint string, messages []llm.Message, opts llm.Options) (llm.Reply, error)
}

// ActionRunner executes model-requested actions.
type ActionRunner interface {
	Execute(ctx context.Context, action string, data map[string]any, userID string) (string, bool, error)
}

// Config tunes the turn pipeline.
type Config struct {
	HistoryWindow  int // messages of history sent to the model
	KnowledgeTopK  int
	MinSimilarity  float64
	PromoteFloor   int // correction frequency needed for memory promotion
	Temperature    float32
	MaxTokens      int
	VoiceThreshold float64 // voice emotion overrides text above this intensity
	DefaultUserID  string
}

// DefaultConfig returns the production pipeline settings.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:  5,
		KnowledgeTopK:  3,
		MinSimilarity:  0.6,
		PromoteFloor:   2,
		Temperature:    0.7,
		MaxTokens:      150,
		VoiceThreshold: emotion.DefaultVoiceThreshold,
		DefaultUserID:  "seven_user",
	}
}

// TurnRequest is one user message entering the pipeline.
type TurnRequest struct {
	UserID    string
	SessionID string
	Message   string
	Provider  string           // backend hint, empty or "auto" for automatic routing
	Voice     emotion.Analysis // optional voice-derived emotion, zero value when absent
}

// ActionResult records one executed action.
type ActionResult struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

// TurnResult is the completed turn.
type TurnResult struct {
	Reply        string
	UserID       string
	SessionID    string
	Backend      string
	Model        string
	Topic        topics.Topic
	TopicNew     bool
	TopicHistory []string
	Ambiguity    intent.Analysis
	Emotion      emotion.Analysis
	Actions      []ActionResult
}

// Orchestrator wires the turn pipeline together.
type Orchestrator struct {
	store      store.Store
	knowledge  KnowledgeBase
	ledger     CorrectionLedger
	classifier topics.Classifier
	scorer     Scorer
	dispatcher ModelDispatcher
	actions    ActionRunner
	logger     *zap.Logger
	cfg        Config
}

// New creates an Orchestrator. knowledge, ledger and actions may be nil; the
// corresponding pipeline stages are then skipped.
func New(s store.Store, kb KnowledgeBase, ledger CorrectionLedger, classifier topics.Classifier,
	scorer Scorer, dispatcher ModelDispatcher, actions ActionRunner, logger *zap.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if classifier == nil {
		classifier = topics.KeywordClassifier{}
	}
	return &Orchestrator{
		store:      s,
		knowledge:  kb,
		ledger:     ledger,
		classifier: classifier,
		scorer:     scorer,
		dispatcher: dispatcher,
		actions:    actions,
		logger:     logger,
		cfg:        cfg,
	}
}

// ProcessTurn runs one message through the full pipeline. Concurrent turns on
// different sessions are safe; turns on the same session must be serialized
// by the caller.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	// Load. Store failures abort the turn.
	userID := req.UserID
	if userID == "" {
		userID = o.cfg.DefaultUserID
	}
	userID, err := o.store.CreateUser(ctx, userID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load user: %w", err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID, err = o.store.CreateSession(ctx, userID)
		if err != nil {
			return TurnResult{}, fmt.Errorf("create session: %w", err)
		}
	}

	mem, err := o.store.Memory(ctx, userID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load memory: %w", err)
	}
	personaName := persona.DefaultName
	for _, fact := range mem.Facts {
		if rest, ok := strings.CutPrefix(fact, "preferred_personality:"); ok {
			personaName = strings.TrimSpace(rest)
		}
	}

	history, err := o.store.Messages(ctx, sessionID, o.cfg.HistoryWindow)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load history: %w", err)
	}

	tracker := topics.NewTracker(o.classifier)
	if blob, err := o.store.TopicContext(ctx, sessionID); err != nil {
		return TurnResult{}, fmt.Errorf("load topic context: %w", err)
	} else if err := tracker.Restore(blob); err != nil {
		// A corrupt snapshot degrades to a fresh tracker
		o.logger.Warn("topic context corrupt, starting fresh",
			zap.String("session_id", sessionID), zap.Error(err))
		tracker = topics.NewTracker(o.classifier)
	}

	// Classify. Failures here degrade, never abort.
	if tracker.CheckReset(req.Message) {
		tracker.Reset()
		if err := o.store.ClearTopicContext(ctx, sessionID); err != nil {
			o.logger.Warn("clear topic context failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	var analysis intent.Analysis
	if o.scorer != nil {
		analysis = o.scorer.Analyze(ctx, req.Message)
	}

	feeling := emotion.Fuse(emotion.AnalyzeText(req.Message), req.Voice, o.cfg.VoiceThreshold)

	topic, topicNew, err := tracker.Observe(ctx, req.Message)
	if err != nil {
		o.logger.Warn("topic observation failed", zap.Error(err))
	}
	var topicHistory []string
	for _, past := range tracker.Recent() {
		topicHistory = append(topicHistory, past.Label)
	}

	// Retrieve. Failures degrade to empty context.
	var knowledgeContext string
	if o.knowledge != nil && o.knowledge.Available() {
		results, err := o.knowledge.Query(ctx, req.Message, o.cfg.KnowledgeTopK, o.cfg.MinSimilarity)
		if err != nil {
			o.logger.Warn("knowledge retrieval failed", zap.Error(err))
		} else {
			knowledgeContext = knowledge.FormatContext(results)
		}
	}

	var correctionContext string
	if o.ledger != nil {
		correctionContext, err = o.ledger.Context(ctx, userID)
		if err != nil {
			o.logger.Warn("correction context failed", zap.Error(err))
			correctionContext = ""
		}
	}

	// Compose.
	conversationContext := tracker.Summary()
	if hint := tracker.TransitionHint(); hint != "" {
		conversationContext += "\n" + hint
	}
	if analysis.NeedsClarification {
		conversationContext += fmt.Sprintf(
			"\n\nCLARIFICATION NEEDED: The user's query is unclear (confidence: %.2f). Consider asking: %q",
			analysis.Confidence, intent.ClarifyingQuestion(analysis))
	}
	if knowledgeContext != "" {
		conversationContext += "\n\n" + knowledgeContext
	}
	if correctionContext != "" {
		conversationContext += "\n\n" + correctionContext
	}

	system := buildSystemPrompt(
		persona.Get(personaName).PromptFragment(),
		feeling.PromptFragment(),
		strings.TrimSpace(conversationContext),
		mem.Summary,
	)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	// Dispatch. Backend failure aborts the turn.
	reply, err := o.dispatcher.Dispatch(ctx, req.Provider, messages, llm.Options{
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("dispatch: %w", err)
	}

	// Parse. Malformed structured output falls back to plain text.
	parsed := ParseReply(reply.Message)
	assistantMessage := parsed.Message

	// Act. Unknown actions are silent; handler errors degrade.
	var actions []ActionResult
	if parsed.Action != "" && parsed.Action != "null" && o.actions != nil {
		msg, handled, err := o.actions.Execute(ctx, parsed.Action, parsed.Data, userID)
		switch {
		case err != nil:
			o.logger.Warn("action failed", zap.String("action", parsed.Action), zap.Error(err))
		case handled:
			actions = append(actions, ActionResult{Action: parsed.Action, Message: msg})
			if msg != "" {
				assistantMessage += "\n\n" + msg
			}
		}
	}

	// Persist. The reply is already in hand, so failures are logged only.
	if err := o.store.AppendMessage(ctx, sessionID, userID, "user", req.Message); err != nil {
		o.logger.Error("persist user message failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := o.store.AppendMessage(ctx, sessionID, userID, "assistant", assistantMessage); err != nil {
		o.logger.Error("persist assistant message failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	if blob, err := tracker.Snapshot(); err == nil {
		if err := o.store.SaveTopicContext(ctx, sessionID, userID, blob); err != nil {
			o.logger.Error("persist topic context failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if o.ledger != nil {
		if n, err := o.ledger.Promote(ctx, userID, o.cfg.PromoteFloor, memoryFacts{o.store}); err != nil {
			o.logger.Warn("insight promotion failed", zap.Error(err))
		} else if n > 0 {
			o.logger.Info("promoted corrections to memory",
				zap.String("user_id", userID), zap.Int("count", n))
		}
	}

	return TurnResult{
		Reply:        assistantMessage,
		UserID:       userID,
		SessionID:    sessionID,
		Backend:      reply.Backend,
		Model:        reply.Model,
		Topic:        topic,
		TopicNew:     topicNew,
		TopicHistory: topicHistory,
		Ambiguity:    analysis,
		Emotion:      feeling,
		Actions:      actions,
	}, nil
}

// memoryFacts adapts the session store to the ledger's fact sink.
type memoryFacts struct {
	store store.Store
}

func (m memoryFacts) AddFact(ctx context.Context, userID, fact string) error {
	mem, err := m.store.Memory(ctx, userID)
	if err != nil {
		return err
	}
	for _, f := range mem.Facts {
		if f == fact {
			return nil
		}
	}
	mem.Facts = append(mem.Facts, fact)
	return m.store.ReplaceMemory(ctx, userID, mem)
}
