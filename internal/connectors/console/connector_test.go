package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dwizi/chat-skills/internal/handlers"
)

type upperDispatcher struct {
	messages []handlers.Message
}

func (d *upperDispatcher) Dispatch(ctx context.Context, message handlers.Message, replier handlers.Replier) bool {
	d.messages = append(d.messages, message)
	_ = replier.Reply(ctx, message.ChatID, strings.ToUpper(message.Body))
	return true
}

func TestBlankLineSeparatesMessages(t *testing.T) {
	input := strings.NewReader("#!py\nprint 1\n\n\nhttps://example.com/\n")
	var out bytes.Buffer
	dispatcher := &upperDispatcher{}

	connector := New(input, &out, "room", dispatcher, nil)
	if err := connector.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(dispatcher.messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(dispatcher.messages))
	}
	if dispatcher.messages[0].Body != "#!py\nprint 1" {
		t.Fatalf("unexpected first body %q", dispatcher.messages[0].Body)
	}
	if dispatcher.messages[1].Body != "https://example.com/" || dispatcher.messages[1].Connector != "console" {
		t.Fatalf("unexpected second message %+v", dispatcher.messages[1])
	}
	want := "[room] #!PY\nPRINT 1\n[room] HTTPS://EXAMPLE.COM/\n"
	if out.String() != want {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestDefaultChatID(t *testing.T) {
	dispatcher := &upperDispatcher{}
	connector := New(strings.NewReader("hi"), &bytes.Buffer{}, "", dispatcher, nil)
	if err := connector.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(dispatcher.messages) != 1 || dispatcher.messages[0].ChatID != "console" {
		t.Fatalf("unexpected messages %+v", dispatcher.messages)
	}
}
