package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/chat-skills/internal/handlers"
)

type messageRequest struct {
	Connector     string `json:"connector"`
	ChatID        string `json:"chat_id"`
	ChatTitle     string `json:"chat_title"`
	SenderID      string `json:"sender_id"`
	Body          string `json:"body"`
	Status        string `json:"status"`
	TimestampUnix int64  `json:"timestamp_unix"`
}

type messageResponse struct {
	Handled bool     `json:"handled"`
	Replies []string `json:"replies"`
}

// captureReplier collects replies so they can be returned in the response body.
type captureReplier struct {
	mu      sync.Mutex
	replies []string
}

func (c *captureReplier) Reply(ctx context.Context, chatID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, text)
	return nil
}

func (c *captureReplier) collected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.replies))
	copy(out, c.replies)
	return out
}

func (r *router) handleMessages(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Dispatcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dispatcher is unavailable"})
		return
	}

	var payload messageRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	body := strings.TrimSpace(payload.Body)
	chatID := strings.TrimSpace(payload.ChatID)
	if body == "" || chatID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat_id and body are required"})
		return
	}
	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if status != "" && status != handlers.StatusReceived && status != handlers.StatusSent {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be received or sent"})
		return
	}
	connector := strings.ToLower(strings.TrimSpace(payload.Connector))
	if connector == "" {
		connector = "api"
	}
	timestamp := time.Now().UTC()
	if payload.TimestampUnix > 0 {
		timestamp = time.Unix(payload.TimestampUnix, 0).UTC()
	}

	replier := &captureReplier{}
	handled := r.deps.Dispatcher.Dispatch(req.Context(), handlers.Message{
		Connector: connector,
		ChatID:    chatID,
		ChatTitle: strings.TrimSpace(payload.ChatTitle),
		SenderID:  strings.TrimSpace(payload.SenderID),
		Body:      body,
		Timestamp: timestamp,
		Status:    status,
	}, replier)

	r.deps.Logger.Debug("api message dispatched", "connector", connector, "chat_id", chatID, "handled", handled)
	writeJSON(w, http.StatusOK, messageResponse{Handled: handled, Replies: replier.collected()})
}
