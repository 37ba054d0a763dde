package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeGenerator struct {
	reply   string
	err     error
	block   bool
	lastReq *Request
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	f.lastReq = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func TestConversationsTrim(t *testing.T) {
	t.Parallel()

	c := NewConversations(4)
	c.Append(1, "q1", "a1")
	c.Append(1, "q2", "a2")
	c.Append(1, "q3", "a3")
	c.Append(2, "other", "reply")

	got := c.Get(1)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0] != (Turn{Role: RoleUser, Text: "q2"}) || got[3] != (Turn{Role: RoleAssistant, Text: "a3"}) {
		t.Fatalf("turns = %+v", got)
	}

	got[0].Text = "mutated"
	if c.Get(1)[0].Text != "q2" {
		t.Fatal("Get returned shared storage")
	}

	c.Clear(1)
	if len(c.Get(1)) != 0 || c.Len() != 1 {
		t.Fatalf("after Clear: turns=%v users=%d", c.Get(1), c.Len())
	}
}

func TestConversationsDisabled(t *testing.T) {
	t.Parallel()

	c := NewConversations(0)
	c.Append(1, "q", "a")
	if c.Len() != 0 {
		t.Fatal("zero-capacity conversations stored turns")
	}
}

func TestAssistantAsk(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "  hello  "}
	a := NewAssistant(gen, NewConversations(10), time.Second, nil)

	reply, err := a.Ask(context.Background(), 7, "bob", " hi ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply != "hello" {
		t.Fatalf("reply = %q, want hello", reply)
	}
	if gen.lastReq.Prompt != "hi" || gen.lastReq.UserID != 7 || len(gen.lastReq.History) != 0 {
		t.Fatalf("request = %+v", gen.lastReq)
	}

	if _, err := a.Ask(context.Background(), 7, "bob", "again"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(gen.lastReq.History) != 2 {
		t.Fatalf("history len = %d, want 2", len(gen.lastReq.History))
	}
}

func TestAssistantErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		gen     *fakeGenerator
		prompt  string
		wantErr error
	}{
		{name: "blank prompt", gen: &fakeGenerator{reply: "x"}, prompt: "   ", wantErr: ErrEmptyPrompt},
		{name: "empty reply", gen: &fakeGenerator{reply: " "}, prompt: "q", wantErr: ErrEmptyResponse},
		{name: "backend error", gen: &fakeGenerator{err: errors.New("boom")}, prompt: "q"},
		{name: "timeout", gen: &fakeGenerator{block: true}, prompt: "q", wantErr: ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewConversations(10)
			a := NewAssistant(tt.gen, h, 20*time.Millisecond, nil)

			_, err := a.Ask(context.Background(), 1, "", tt.prompt)
			if err == nil {
				t.Fatal("Ask() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ask() error = %v, want %v", err, tt.wantErr)
			}
			if h.Len() != 0 {
				t.Fatal("failed exchange was remembered")
			}
		})
	}
}
