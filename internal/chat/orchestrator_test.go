package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SevenCandid/Seven-Assistant/internal/emotion"
	"github.com/SevenCandid/Seven-Assistant/internal/insights"
	"github.com/SevenCandid/Seven-Assistant/internal/intent"
	"github.com/SevenCandid/Seven-Assistant/internal/knowledge"
	"github.com/SevenCandid/Seven-Assistant/internal/llm"
	"github.com/SevenCandid/Seven-Assistant/internal/store"
)

// scriptedDispatcher returns canned replies and records the messages it saw.
type scriptedDispatcher struct {
	reply    string
	err      error
	messages []llm.Message
	hint     string
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, hint string, messages []llm.Message, _ llm.Options) (llm.Reply, error) {
	d.hint = hint
	d.messages = messages
	if d.err != nil {
		return llm.Reply{}, d.err
	}
	return llm.Reply{Message: d.reply, Backend: "fake", Model: "fake-model"}, nil
}

// fixedKnowledge serves a fixed result set.
type fixedKnowledge struct {
	results []knowledge.Result
	err     error
}

func (k *fixedKnowledge) Available() bool { return true }

func (k *fixedKnowledge) Query(context.Context, string, int, float64) ([]knowledge.Result, error) {
	return k.results, k.err
}

func newTestOrchestrator(t *testing.T, d ModelDispatcher, kb KnowledgeBase) (*Orchestrator, *store.SQLite, *insights.Ledger) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	ledger, err := insights.NewLedger(s.DB())
	if err != nil {
		t.Fatal(err)
	}

	o := New(s, kb, ledger, nil, intent.NewScorer(), d, newStubActions(), nil, DefaultConfig())
	return o, s, ledger
}

// stubActions handles get_time only.
type stubActions struct{}

func newStubActions() *stubActions { return &stubActions{} }

func (*stubActions) Execute(_ context.Context, action string, _ map[string]any, _ string) (string, bool, error) {
	if action == "get_time" {
		return "The current time is 3:04 PM.", true, nil
	}
	return "", false, nil
}

func TestProcessTurnEndToEnd(t *testing.T) {
	kb := &fixedKnowledge{results: []knowledge.Result{
		{Entry: knowledge.Entry{Content: "Berlin has a temperate climate"}, Similarity: 0.8, Rank: 1},
	}}
	d := &scriptedDispatcher{reply: `{"message": "It should be mild with some rain.", "action": null, "data": null}`}
	o, s, _ := newTestOrchestrator(t, d, kb)
	ctx := context.Background()

	res, err := o.ProcessTurn(ctx, TurnRequest{
		UserID:  "alice",
		Message: "what is the weather forecast for Berlin today?",
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Reply != "It should be mild with some rain." {
		t.Errorf("Reply = %q", res.Reply)
	}
	if res.Backend != "fake" || res.SessionID == "" {
		t.Errorf("result = %+v", res)
	}
	if res.Topic.Label != "weather" {
		t.Errorf("Topic = %+v, want weather", res.Topic)
	}

	// Retrieved knowledge must reach the system prompt
	system := d.messages[0]
	if system.Role != "system" {
		t.Fatalf("first message role = %q", system.Role)
	}
	if !strings.Contains(system.Content, "Berlin has a temperate climate") {
		t.Error("knowledge context missing from system prompt")
	}

	// Both sides of the exchange persisted in order
	msgs, err := s.Messages(ctx, res.SessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("persisted messages = %+v", msgs)
	}
	if msgs[1].Content != res.Reply {
		t.Errorf("persisted assistant message = %q", msgs[1].Content)
	}

	// Topic state persisted for the next turn
	blob, err := s.TopicContext(ctx, res.SessionID)
	if err != nil || blob == nil {
		t.Errorf("topic context not persisted: blob=%v err=%v", blob, err)
	}
}

func TestProcessTurnActionAppended(t *testing.T) {
	d := &scriptedDispatcher{reply: `{"message": "The current time is:", "action": "get_time", "data": null}`}
	o, _, _ := newTestOrchestrator(t, d, nil)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{UserID: "u", Message: "what time is it right now?"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "3:04 PM") {
		t.Errorf("Reply = %q, want action result appended", res.Reply)
	}
	if len(res.Actions) != 1 || res.Actions[0].Action != "get_time" {
		t.Errorf("Actions = %+v", res.Actions)
	}
}

func TestProcessTurnUnknownActionSilent(t *testing.T) {
	d := &scriptedDispatcher{reply: `{"message": "Posting now", "action": "post_tweet", "data": null}`}
	o, _, _ := newTestOrchestrator(t, d, nil)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{UserID: "u", Message: "please tweet something for me"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != "Posting now" {
		t.Errorf("Reply = %q, unknown action must not alter the reply", res.Reply)
	}
	if len(res.Actions) != 0 {
		t.Errorf("Actions = %+v, want none", res.Actions)
	}
}

func TestProcessTurnPlainTextReply(t *testing.T) {
	d := &scriptedDispatcher{reply: "Just plain prose, no JSON here."}
	o, _, _ := newTestOrchestrator(t, d, nil)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{UserID: "u", Message: "tell me something interesting"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != "Just plain prose, no JSON here." {
		t.Errorf("Reply = %q", res.Reply)
	}
}

func TestProcessTurnDispatchFailureIsFatal(t *testing.T) {
	d := &scriptedDispatcher{err: &llm.NoBackendError{Reasons: map[string]string{"groq": "no API key configured"}}}
	o, s, _ := newTestOrchestrator(t, d, nil)
	ctx := context.Background()

	_, err := o.ProcessTurn(ctx, TurnRequest{UserID: "u", SessionID: "", Message: "hello there friend"})
	if err == nil {
		t.Fatal("expected dispatch failure to abort the turn")
	}

	// Nothing persisted for the failed turn
	sessions, _ := s.Sessions(ctx, "u", 10)
	for _, sess := range sessions {
		msgs, _ := s.Messages(ctx, sess.ID, 10)
		if len(msgs) != 0 {
			t.Errorf("messages persisted despite failed turn: %+v", msgs)
		}
	}
}

func TestProcessTurnKnowledgeFailureDegrades(t *testing.T) {
	kb := &fixedKnowledge{err: fmt.Errorf("index corrupted")}
	d := &scriptedDispatcher{reply: "fine without knowledge"}
	o, _, _ := newTestOrchestrator(t, d, kb)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{UserID: "u", Message: "what is the weather forecast today?"})
	if err != nil {
		t.Fatalf("retrieval failure must not abort the turn: %v", err)
	}
	if res.Reply != "fine without knowledge" {
		t.Errorf("Reply = %q", res.Reply)
	}
}

func TestProcessTurnAmbiguousQueryAddsClarification(t *testing.T) {
	d := &scriptedDispatcher{reply: "Could you tell me more?"}
	o, _, _ := newTestOrchestrator(t, d, nil)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{UserID: "u", Message: "hm ok"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ambiguity.NeedsClarification {
		t.Error("short vague query should need clarification")
	}
	if !strings.Contains(d.messages[0].Content, "CLARIFICATION NEEDED") {
		t.Error("clarification hint missing from system prompt")
	}
}

func TestProcessTurnDefaultUser(t *testing.T) {
	d := &scriptedDispatcher{reply: "hi"}
	o, _, _ := newTestOrchestrator(t, d, nil)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{Message: "hello how are you"})
	if err != nil {
		t.Fatal(err)
	}
	if res.UserID != "seven_user" {
		t.Errorf("UserID = %q, want default", res.UserID)
	}
}

func TestProcessTurnHonorsProviderHint(t *testing.T) {
	d := &scriptedDispatcher{reply: "hi"}
	o, _, _ := newTestOrchestrator(t, d, nil)

	_, err := o.ProcessTurn(context.Background(), TurnRequest{UserID: "u", Message: "hello there", Provider: "ollama"})
	if err != nil {
		t.Fatal(err)
	}
	if d.hint != "ollama" {
		t.Errorf("hint = %q, want pass-through", d.hint)
	}
}

func TestProcessTurnPersonaFromMemory(t *testing.T) {
	d := &scriptedDispatcher{reply: "indeed"}
	o, s, _ := newTestOrchestrator(t, d, nil)
	ctx := context.Background()

	s.CreateUser(ctx, "pro")
	s.ReplaceMemory(ctx, "pro", store.Memory{Facts: []string{"preferred_personality: professional"}})

	if _, err := o.ProcessTurn(ctx, TurnRequest{UserID: "pro", Message: "summarize the quarterly report"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.messages[0].Content, "professional, formal") {
		t.Error("professional persona fragment missing from system prompt")
	}
}

func TestProcessTurnPromotesCorrections(t *testing.T) {
	d := &scriptedDispatcher{reply: "noted"}
	o, s, ledger := newTestOrchestrator(t, d, nil)
	ctx := context.Background()

	s.CreateUser(ctx, "u")
	fb := insights.Feedback{
		UserID: "u", MessageID: "m1", Type: "correction",
		UserMessage: "my name is Jon", Correction: "spelled without an h",
	}
	ledger.AddFeedback(ctx, fb)
	fb.MessageID = "m2"
	ledger.AddFeedback(ctx, fb)

	if _, err := o.ProcessTurn(ctx, TurnRequest{UserID: "u", Message: "hello again my friend"}); err != nil {
		t.Fatal(err)
	}

	mem, err := s.Memory(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range mem.Facts {
		if strings.HasPrefix(f, "correction_learned: ") {
			found = true
		}
	}
	if !found {
		t.Errorf("promoted fact missing from memory: %v", mem.Facts)
	}

	// Correction context reaches the next turn's prompt
	if _, err := o.ProcessTurn(ctx, TurnRequest{UserID: "u", Message: "one more question for you"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.messages[0].Content, "USER FEEDBACK & CORRECTIONS") {
		t.Error("correction context missing from system prompt")
	}
}

func TestProcessTurnVoiceEmotionOverridesText(t *testing.T) {
	d := &scriptedDispatcher{reply: "let me help"}
	o, _, _ := newTestOrchestrator(t, d, nil)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{
		UserID:  "u",
		Message: "can you check my calendar for tomorrow",
		Voice:   emotion.Analysis{Emotion: "frustrated", Intensity: 0.9, Source: "voice"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Emotion.Emotion != "frustrated" {
		t.Errorf("Emotion = %+v, want the voice reading to win", res.Emotion)
	}
	if res.Emotion.Source != "voice+text" {
		t.Errorf("Source = %q, want voice+text", res.Emotion.Source)
	}
	if !strings.Contains(d.messages[0].Content, "Detected from voice and text") {
		t.Error("fused emotion guidance missing from system prompt")
	}
}

func TestProcessTurnQuietVoiceDefersToText(t *testing.T) {
	d := &scriptedDispatcher{reply: "sure"}
	o, _, _ := newTestOrchestrator(t, d, nil)

	res, err := o.ProcessTurn(context.Background(), TurnRequest{
		UserID:  "u",
		Message: "can you check my calendar for tomorrow",
		Voice:   emotion.Analysis{Emotion: "angry", Intensity: 0.2, Source: "voice"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Emotion.Emotion != "neutral" {
		t.Errorf("Emotion = %+v, want the text reading to stand", res.Emotion)
	}
	if strings.Contains(d.messages[0].Content, "frustrated or upset") {
		t.Error("low-intensity voice emotion must not steer the prompt")
	}
}

func TestProcessTurnTopicHistoryAfterSwitch(t *testing.T) {
	d := &scriptedDispatcher{reply: "ok"}
	o, _, _ := newTestOrchestrator(t, d, nil)
	ctx := context.Background()

	res, err := o.ProcessTurn(ctx, TurnRequest{UserID: "u", Message: "will it rain or snow this weekend?"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.TopicHistory) != 0 {
		t.Errorf("TopicHistory = %v, want empty on the first topic", res.TopicHistory)
	}

	res2, err := o.ProcessTurn(ctx, TurnRequest{UserID: "u", SessionID: res.SessionID,
		Message: "what should I cook for dinner tonight?"})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Topic.Label != "food" {
		t.Fatalf("Topic = %+v, want food", res2.Topic)
	}
	if len(res2.TopicHistory) != 1 || res2.TopicHistory[0] != "weather" {
		t.Errorf("TopicHistory = %v, want the closed weather topic", res2.TopicHistory)
	}
}

func TestProcessTurnTopicResetPhrase(t *testing.T) {
	d := &scriptedDispatcher{reply: "ok"}
	o, s, _ := newTestOrchestrator(t, d, nil)
	ctx := context.Background()

	res, err := o.ProcessTurn(ctx, TurnRequest{UserID: "u", Message: "will it rain or snow this weekend?"})
	if err != nil {
		t.Fatal(err)
	}
	sessionID := res.SessionID

	res2, err := o.ProcessTurn(ctx, TurnRequest{UserID: "u", SessionID: sessionID,
		Message: "by the way, what movie should I watch tonight?"})
	if err != nil {
		t.Fatal(err)
	}
	if !res2.TopicNew {
		t.Error("reset phrase should start a fresh topic")
	}
	if res2.Topic.Label == "weather" {
		t.Errorf("Topic = %+v, want the old topic gone", res2.Topic)
	}
	_ = s
}
