package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/chat-skills/internal/connectors"
	"github.com/dwizi/chat-skills/internal/handlers"
)

func (c *Connector) handleMessageCreate(ctx context.Context, message discordMessageCreate) {
	if strings.TrimSpace(message.Content) == "" || strings.TrimSpace(message.ChannelID) == "" {
		return
	}
	status := handlers.StatusReceived
	if c.botUserID != "" && message.Author.ID == c.botUserID {
		status = handlers.StatusSent
	} else if message.Author.Bot {
		// Other bots are ignored so two bots cannot keep answering each other.
		return
	}
	timestamp := message.Timestamp.UTC()
	if message.Timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	c.logger.Debug("discord message received", "chat_id", message.ChannelID, "message_id", message.ID, "status", status)

	c.dispatcher.Dispatch(ctx, handlers.Message{
		Connector: connectorName,
		ChatID:    message.ChannelID,
		ChatTitle: message.GuildID,
		SenderID:  message.Author.ID,
		Body:      message.Content,
		Timestamp: timestamp,
		Status:    status,
	}, c)
}

// Reply posts text to the channel, split to fit the message length limit.
func (c *Connector) Reply(ctx context.Context, chatID, text string) error {
	channelID := strings.TrimSpace(chatID)
	if channelID == "" {
		return fmt.Errorf("discord channel id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range connectors.SplitText(text, maxTextRunes) {
		if err := c.sendChannelMessage(ctx, channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) sendChannelMessage(ctx context.Context, channelID, content string) error {
	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID)
	payload, err := json.Marshal(map[string]any{
		"content":          content,
		"allowed_mentions": map[string]any{"parse": []string{}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("discord send message failed: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}
