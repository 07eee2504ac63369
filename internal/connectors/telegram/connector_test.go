package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/heartbeat"
)

type echoDispatcher struct {
	mu       sync.Mutex
	messages []handlers.Message
}

func (d *echoDispatcher) Dispatch(ctx context.Context, message handlers.Message, replier handlers.Replier) bool {
	d.mu.Lock()
	d.messages = append(d.messages, message)
	d.mu.Unlock()
	if message.IsSent() {
		return true
	}
	_ = replier.Reply(ctx, message.ChatID, "echo: "+message.Body)
	return true
}

type fakeBotAPI struct {
	mu      sync.Mutex
	updates []map[string]any
	sent    []map[string]any
	polls   int
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/botTEST/getMe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":999,"is_bot":true,"username":"skills_bot"}}`))
	})
	mux.HandleFunc("/botTEST/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		updates := f.updates
		f.updates = nil
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": updates})
	})
	mux.HandleFunc("/botTEST/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode sendMessage: %v", err)
		}
		f.mu.Lock()
		f.sent = append(f.sent, payload)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})
	return mux
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollDispatchesMessagesAndReplies(t *testing.T) {
	api := &fakeBotAPI{updates: []map[string]any{
		{
			"update_id": 10,
			"message": map[string]any{
				"message_id": 1,
				"date":       1700000000,
				"from":       map[string]any{"id": 42, "first_name": "Ann"},
				"chat":       map[string]any{"id": -100, "type": "group", "title": "links"},
				"text":       "https://example.com/",
			},
		},
		{
			"update_id": 11,
			"message": map[string]any{
				"message_id": 2,
				"from":       map[string]any{"id": 999, "is_bot": true},
				"chat":       map[string]any{"id": -100, "type": "group", "title": "links"},
				"text":       "echo: earlier",
			},
		},
		{"update_id": 12},
	}}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	dispatcher := &echoDispatcher{}
	connector := New("TEST", server.URL, 1, dispatcher, quietLogger())
	me, err := connector.fetchMe(context.Background())
	if err != nil {
		t.Fatalf("fetch me: %v", err)
	}
	connector.botID = me.ID

	if err := connector.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll once: %v", err)
	}
	if connector.offset != 13 {
		t.Fatalf("expected offset 13, got %d", connector.offset)
	}
	if len(dispatcher.messages) != 2 {
		t.Fatalf("expected two dispatched messages, got %d", len(dispatcher.messages))
	}
	first := dispatcher.messages[0]
	if first.Connector != "telegram" || first.ChatID != "-100" || first.ChatTitle != "links" || first.SenderID != "42" {
		t.Fatalf("unexpected message: %+v", first)
	}
	if !first.Timestamp.Equal(time.Unix(1700000000, 0)) || first.Status != handlers.StatusReceived {
		t.Fatalf("unexpected timestamp or status: %+v", first)
	}
	if dispatcher.messages[1].Status != handlers.StatusSent {
		t.Fatalf("expected own message to be sent status, got %s", dispatcher.messages[1].Status)
	}
	if len(api.sent) != 1 || api.sent[0]["text"] != "echo: https://example.com/" {
		t.Fatalf("unexpected sent messages: %+v", api.sent)
	}
	if api.sent[0]["chat_id"] != float64(-100) {
		t.Fatalf("unexpected chat id: %v", api.sent[0]["chat_id"])
	}
}

func TestReplySplitsLongText(t *testing.T) {
	api := &fakeBotAPI{}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	connector := New("TEST", server.URL, 1, &echoDispatcher{}, quietLogger())
	if err := connector.Reply(context.Background(), "7", strings.Repeat("x", maxTextRunes+10)); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if len(api.sent) != 2 {
		t.Fatalf("expected two chunks, got %d", len(api.sent))
	}
	if err := connector.Reply(context.Background(), "not-a-number", "hi"); err == nil {
		t.Fatal("expected chat id parse error")
	}
}

func TestCallSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was kicked"}`))
	}))
	defer server.Close()

	connector := New("TEST", server.URL, 1, &echoDispatcher{}, quietLogger())
	err := connector.Reply(context.Background(), "7", "hello")
	if err == nil || !strings.Contains(err.Error(), "bot was kicked") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestStartDisabledWithoutToken(t *testing.T) {
	registry := heartbeat.NewRegistry()
	connector := New("", "", 0, &echoDispatcher{}, quietLogger())
	connector.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := connector.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	snapshot := registry.Snapshot(0)
	if snapshot.Components[0].State != heartbeat.StateDisabled {
		t.Fatalf("expected disabled connector, got %s", snapshot.Components[0].State)
	}
}

func TestStartPollsUntilCancelled(t *testing.T) {
	api := &fakeBotAPI{}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	registry := heartbeat.NewRegistry()
	connector := New("TEST", server.URL, 1, &echoDispatcher{}, quietLogger())
	connector.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = connector.Start(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		api.mu.Lock()
		polls := api.polls
		api.mu.Unlock()
		if polls >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected repeated polling")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if connector.botID != 999 {
		t.Fatalf("expected bot id from getMe, got %d", connector.botID)
	}
	if state := registry.Snapshot(0).Components[0].State; state != heartbeat.StateStopped {
		t.Fatalf("expected stopped state, got %s", state)
	}
}
