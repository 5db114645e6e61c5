package llmclient

import (
	"context"
	"testing"

	"vicw/internal/message"
)

func stubMessages() []message.Message {
	return []message.Message{
		{Role: message.RoleSystem, Content: "you are a test harness"},
		{Role: message.RoleUser, Content: "first question"},
		{Role: message.RoleAssistant, Content: "first answer"},
		{Role: message.RoleUser, Content: "second question"},
	}
}

func TestBackoffDoubles(t *testing.T) {
	got := []int64{backoff(0).Milliseconds(), backoff(1).Milliseconds(), backoff(2).Milliseconds()}
	want := []int64{500, 1000, 2000}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("backoff(%d) = %dms, want %dms", i, got[i], want[i])
		}
	}
}

func TestStubEchoesLastUserMessage(t *testing.T) {
	s := &Stub{Prefix: "echo"}
	resp, err := s.Chat(context.Background(), stubMessages(), "any-model", 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "echo: second question" {
		t.Fatalf("got %q", resp.Text)
	}
}
