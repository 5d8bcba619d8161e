package chat

import "testing"

func TestParseReplyStructured(t *testing.T) {
	p := ParseReply(`{"message": "Let me check...", "action": "get_time", "data": null}`)
	if !p.Structured {
		t.Fatal("expected structured reply")
	}
	if p.Message != "Let me check..." || p.Action != "get_time" {
		t.Errorf("parsed = %+v", p)
	}
	if p.Data != nil {
		t.Errorf("Data = %v, want nil for null", p.Data)
	}
}

func TestParseReplyObjectData(t *testing.T) {
	p := ParseReply(`{"message": "Sending", "action": "send_email", "data": {"to": "a@b.c", "subject": "hi"}}`)
	if !p.Structured || p.Data["to"] != "a@b.c" {
		t.Errorf("parsed = %+v", p)
	}
}

func TestParseReplyStringData(t *testing.T) {
	p := ParseReply(`{"message": "Searching", "action": "search", "data": "Go tutorials"}`)
	if !p.Structured {
		t.Fatal("expected structured reply")
	}
	if p.Data["value"] != "Go tutorials" {
		t.Errorf("Data = %v", p.Data)
	}
}

func TestParseReplyFencedJSON(t *testing.T) {
	raw := "```json\n{\"message\": \"hi there\", \"action\": null, \"data\": null}\n```"
	p := ParseReply(raw)
	if !p.Structured || p.Message != "hi there" {
		t.Errorf("parsed = %+v", p)
	}
}

func TestParseReplyPlainText(t *testing.T) {
	raw := "Sure! The capital of France is Paris."
	p := ParseReply(raw)
	if p.Structured {
		t.Error("plain text should not be structured")
	}
	if p.Message != raw {
		t.Errorf("Message = %q, want raw text preserved", p.Message)
	}
}

func TestParseReplyMalformedJSON(t *testing.T) {
	raw := `{"message": "truncated`
	p := ParseReply(raw)
	if p.Structured {
		t.Error("malformed JSON should fall back to plain text")
	}
	if p.Message != raw {
		t.Errorf("Message = %q, want raw text preserved", p.Message)
	}
}

func TestParseReplyJSONWithoutMessage(t *testing.T) {
	raw := `{"action": "get_time"}`
	p := ParseReply(raw)
	if p.Structured {
		t.Error("JSON without a message field should fall back to plain text")
	}
	if p.Message != raw {
		t.Errorf("Message = %q", p.Message)
	}
}
