package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SevenCandid/Seven-Assistant/internal/chat"
	"github.com/SevenCandid/Seven-Assistant/internal/config"
	"github.com/SevenCandid/Seven-Assistant/internal/insights"
	"github.com/SevenCandid/Seven-Assistant/internal/intent"
	"github.com/SevenCandid/Seven-Assistant/internal/llm"
	"github.com/SevenCandid/Seven-Assistant/internal/store"
	"github.com/SevenCandid/Seven-Assistant/pkg/api"
)

// echoDispatcher replies with a fixed structured message.
type echoDispatcher struct{}

func (echoDispatcher) Dispatch(context.Context, string, []llm.Message, llm.Options) (llm.Reply, error) {
	return llm.Reply{
		Message: `{"message": "hello from the assistant", "action": null, "data": null}`,
		Backend: "fake",
		Model:   "fake-model",
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ledger, err := insights.NewLedger(s.DB())
	require.NoError(t, err)

	orch := chat.New(s, nil, ledger, nil, intent.NewScorer(), echoDispatcher{}, nil, nil, chat.DefaultConfig())
	dispatcher := llm.NewDispatcher(nil, llm.DefaultFailoverPolicy())

	cfg := config.DefaultConfig()
	srv := New(cfg, nil, Deps{
		Orchestrator: orch,
		Store:        s,
		Ledger:       ledger,
		Dispatcher:   dispatcher,
		PromoteFloor: 2,
	})

	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) api.Envelope {
	t.Helper()
	defer resp.Body.Close()
	var env api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotEmpty(t, env.Timestamp)
	return env
}

func TestHealthRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)
}

func TestChatRoute(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/chat", api.ChatRequest{
		UserID:  "alice",
		Message: "hello there, how are you today?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var chatResp api.ChatResponse
	require.NoError(t, json.Unmarshal(data, &chatResp))
	require.Equal(t, "hello from the assistant", chatResp.Message)
	require.Equal(t, "alice", chatResp.UserID)
	require.NotEmpty(t, chatResp.SessionID)
}

func TestChatRouteReportsTopicHistory(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/chat", api.ChatRequest{
		UserID:  "alice",
		Message: "will it rain or snow this weekend?",
	})
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var first api.ChatResponse
	require.NoError(t, json.Unmarshal(data, &first))
	require.NotNil(t, first.Topic)
	require.Equal(t, "weather", first.Topic.CurrentTopic)
	require.Empty(t, first.Topic.TopicHistory)

	resp2 := postJSON(t, ts.URL+"/chat", api.ChatRequest{
		UserID:    "alice",
		SessionID: first.SessionID,
		Message:   "what should I cook for dinner tonight?",
	})
	env2 := decodeEnvelope(t, resp2)
	require.True(t, env2.Success)

	data2, _ := json.Marshal(env2.Data)
	var second api.ChatResponse
	require.NoError(t, json.Unmarshal(data2, &second))
	require.NotNil(t, second.Topic)
	require.Equal(t, "food", second.Topic.CurrentTopic)
	require.Equal(t, []string{"weather"}, second.Topic.TopicHistory)
}

func TestChatRouteAcceptsVoiceEmotion(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/chat", api.ChatRequest{
		UserID:       "alice",
		Message:      "can you check my calendar for tomorrow",
		VoiceEmotion: &api.VoiceEmotion{Emotion: "frustrated", Intensity: 0.9},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decodeEnvelope(t, resp).Success)
}

func TestChatRouteRejectsEmptyMessage(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/chat", api.ChatRequest{UserID: "alice", Message: "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	require.False(t, env.Success)
	require.NotEmpty(t, env.Error)
}

func TestNewChatAndSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/new_chat", api.NewChatRequest{UserID: "bob"})
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var nc api.NewChatResponse
	require.NoError(t, json.Unmarshal(data, &nc))
	require.NotEmpty(t, nc.SessionID)

	// Session shows up in the listing
	resp2, err := http.Get(ts.URL + "/sessions/bob")
	require.NoError(t, err)
	env2 := decodeEnvelope(t, resp2)
	require.True(t, env2.Success)

	data2, _ := json.Marshal(env2.Data)
	var sessions []api.SessionInfo
	require.NoError(t, json.Unmarshal(data2, &sessions))
	require.Len(t, sessions, 1)
	require.Equal(t, nc.SessionID, sessions[0].SessionID)

	// And can be deleted
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/session/"+nc.SessionID, nil)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	env3 := decodeEnvelope(t, resp3)
	require.True(t, env3.Success)
}

func TestMemoryRoutes(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/memory/carol",
		bytes.NewReader([]byte(`{"memory_summary": "likes tea", "facts": ["name is Carol"]}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.True(t, decodeEnvelope(t, resp).Success)

	resp2, err := http.Get(ts.URL + "/memory/carol")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp2)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var mem api.MemoryResponse
	require.NoError(t, json.Unmarshal(data, &mem))
	require.Equal(t, "likes tea", mem.Summary)
	require.Equal(t, []string{"name is Carol"}, mem.Facts)
}

func TestFeedbackRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/feedback", api.FeedbackRequest{
		UserID:    "dave",
		MessageID: "m1",
		Type:      "rating",
		Rating:    1,
	})
	require.True(t, decodeEnvelope(t, resp).Success)

	resp2, err := http.Get(ts.URL + "/feedback/summary/dave")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp2)
	require.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var sum insights.Summary
	require.NoError(t, json.Unmarshal(data, &sum))
	require.Equal(t, 1, sum.TotalFeedback)
	require.Equal(t, 1, sum.PositiveRatings)
}

func TestPersonalitiesRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/personalities")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)
}

func TestKnowledgeRoutesAbsentWithoutEmbedder(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/knowledge/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/chat", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
