package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/chat-skills/internal/connectors"
	"github.com/dwizi/chat-skills/internal/handlers"
)

func (c *Connector) handleMessage(ctx context.Context, message telegramMessage) {
	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	status := handlers.StatusReceived
	senderID := ""
	if message.From != nil {
		senderID = strconv.FormatInt(message.From.ID, 10)
		if c.botID != 0 && message.From.ID == c.botID {
			status = handlers.StatusSent
		}
	}
	timestamp := time.Now().UTC()
	if message.Date > 0 {
		timestamp = time.Unix(message.Date, 0).UTC()
	}
	chatID := strconv.FormatInt(message.Chat.ID, 10)
	c.logger.Debug("telegram message received", "chat_id", chatID, "message_id", message.MessageID, "status", status)

	c.dispatcher.Dispatch(ctx, handlers.Message{
		Connector: connectorName,
		ChatID:    chatID,
		ChatTitle: message.Chat.displayName(),
		SenderID:  senderID,
		Body:      text,
		Timestamp: timestamp,
		Status:    status,
	}, c)
}

// Reply sends text to the chat, split to fit the Bot API message limit.
func (c *Connector) Reply(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("parse telegram chat id: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range connectors.SplitText(text, maxTextRunes) {
		if err := c.sendMessage(ctx, id, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	if err := c.call(ctx, http.MethodPost, endpoint, bytes.NewReader(payload), nil); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}
