package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUserIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if id != "alice" {
		t.Errorf("CreateUser returned %q, want %q", id, "alice")
	}

	// Creating again must not error
	id2, err := s.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("second CreateUser failed: %v", err)
	}
	if id2 != "alice" {
		t.Errorf("second CreateUser returned %q, want %q", id2, "alice")
	}
}

func TestCreateUserGeneratesID(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("expected generated user id, got empty string")
	}
}

func TestMessagesChronologicalWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, _ := s.CreateUser(ctx, "bob")
	sessionID, err := s.CreateSession(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}

	contents := []string{"first", "second", "third", "fourth"}
	for _, c := range contents {
		if err := s.AppendMessage(ctx, sessionID, userID, "user", c); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	msgs, err := s.Messages(ctx, sessionID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Messages returned %d, want 3", len(msgs))
	}
	// Last 3, oldest first
	want := []string{"second", "third", "fourth"}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("msgs[%d].Content = %q, want %q", i, m.Content, want[i])
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Error("messages not in chronological order")
		}
	}
}

func TestMemoryAbsentIsEmpty(t *testing.T) {
	s := newTestStore(t)

	m, err := s.Memory(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Memory failed: %v", err)
	}
	if m.Summary != "" || len(m.Facts) != 0 || m.UpdatedAt != nil {
		t.Errorf("expected empty memory, got %+v", m)
	}
}

func TestReplaceMemoryOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateUser(ctx, "carol")

	first := Memory{Summary: "likes tea", Facts: []string{"name is Carol", "preferred_language: en"}}
	if err := s.ReplaceMemory(ctx, "carol", first); err != nil {
		t.Fatal(err)
	}

	second := Memory{Summary: "likes coffee", Facts: []string{"name is Carol"}}
	if err := s.ReplaceMemory(ctx, "carol", second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Memory(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "likes coffee" {
		t.Errorf("Summary = %q, want %q", got.Summary, "likes coffee")
	}
	if len(got.Facts) != 1 {
		t.Errorf("Facts = %v, want exactly the replacement facts", got.Facts)
	}
	if got.UpdatedAt == nil {
		t.Error("expected UpdatedAt to be set")
	}

	// Exactly one authoritative row: clearing once removes everything
	if err := s.ClearMemory(ctx, "carol"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Memory(ctx, "carol")
	if got.Summary != "" {
		t.Error("memory not cleared")
	}
}

func TestTopicContextUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, _ := s.CreateUser(ctx, "dan")
	sessionID, _ := s.CreateSession(ctx, userID)

	if data, err := s.TopicContext(ctx, sessionID); err != nil || data != nil {
		t.Fatalf("TopicContext on fresh session: data=%v err=%v, want nil, nil", data, err)
	}

	if err := s.SaveTopicContext(ctx, sessionID, userID, []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTopicContext(ctx, sessionID, userID, []byte(`{"v":2}`)); err != nil {
		t.Fatal(err)
	}

	data, err := s.TopicContext(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"v":2}` {
		t.Errorf("TopicContext = %s, want latest upsert", data)
	}

	if err := s.ClearTopicContext(ctx, sessionID); err != nil {
		t.Fatal(err)
	}
	data, _ = s.TopicContext(ctx, sessionID)
	if data != nil {
		t.Error("topic context not cleared")
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, _ := s.CreateUser(ctx, "erin")
	sessionID, _ := s.CreateSession(ctx, userID)

	s.AppendMessage(ctx, sessionID, userID, "user", "hello")
	s.AppendMessage(ctx, sessionID, userID, "assistant", "hi")
	s.SaveTopicContext(ctx, sessionID, userID, []byte(`{}`))

	if err := s.DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	msgs, err := s.Messages(ctx, sessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages after delete, got %d", len(msgs))
	}
	data, _ := s.TopicContext(ctx, sessionID)
	if data != nil {
		t.Error("expected topic context removed after session delete")
	}

	sessions, _ := s.Sessions(ctx, userID, 10)
	if len(sessions) != 0 {
		t.Errorf("expected no sessions after delete, got %d", len(sessions))
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID, _ := s.CreateUser(ctx, "frank")
	first, _ := s.CreateSession(ctx, userID)
	time.Sleep(2 * time.Millisecond)
	second, _ := s.CreateSession(ctx, userID)

	sessions, err := s.Sessions(ctx, userID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions returned %d, want 2", len(sessions))
	}
	if sessions[0].ID != second || sessions[1].ID != first {
		t.Error("sessions not ordered newest first")
	}
	if sessions[0].Title != "Untitled Chat" {
		t.Errorf("default title = %q, want %q", sessions[0].Title, "Untitled Chat")
	}
}
