// Package handlers routes chat messages through an ordered chain of plugins.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	StatusReceived = "received"
	StatusSent     = "sent"
)

var ErrDuplicateHandler = errors.New("duplicate handler")

// Message is one chat message as delivered by a connector.
type Message struct {
	Connector string
	ChatID    string
	ChatTitle string
	SenderID  string
	Body      string
	Timestamp time.Time
	Status    string
}

// IsSent reports whether the chat host echoed back one of our own messages.
func (m Message) IsSent() bool {
	return strings.EqualFold(strings.TrimSpace(m.Status), StatusSent)
}

type Replier interface {
	Reply(ctx context.Context, chatID, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, chatID, text string) error

func (f ReplierFunc) Reply(ctx context.Context, chatID, text string) error {
	return f(ctx, chatID, text)
}

// Handler processes a message. Returning handled=true stops the chain.
type Handler interface {
	Name() string
	Help() string
	HandleMessage(ctx context.Context, message Message, replier Replier) (bool, error)
}

type Dispatcher struct {
	handlers []Handler
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger, list ...Handler) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dispatcher := &Dispatcher{logger: logger}
	seen := map[string]struct{}{}
	for _, handler := range list {
		if handler == nil {
			continue
		}
		key := normalizeName(handler.Name())
		if key == "" {
			return nil, fmt.Errorf("handler name is required")
		}
		if _, exists := seen[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, key)
		}
		seen[key] = struct{}{}
		dispatcher.handlers = append(dispatcher.handlers, handler)
	}
	return dispatcher, nil
}

// Dispatch runs the chain and reports whether any handler claimed the message.
func (d *Dispatcher) Dispatch(ctx context.Context, message Message, replier Replier) bool {
	if d == nil {
		return false
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if strings.TrimSpace(message.Status) == "" {
		message.Status = StatusReceived
	}
	for _, handler := range d.handlers {
		handled, err := handler.HandleMessage(ctx, message, replier)
		if err != nil {
			d.logger.Error(
				"handler failed",
				"handler", handler.Name(),
				"connector", message.Connector,
				"chat_id", message.ChatID,
				"error", err,
			)
		}
		if handled {
			return true
		}
	}
	return false
}

// Names lists registered handlers in dispatch order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for _, handler := range d.handlers {
		names = append(names, handler.Name())
	}
	return names
}

// Help concatenates every handler's help text.
func (d *Dispatcher) Help() string {
	parts := make([]string, 0, len(d.handlers))
	for _, handler := range d.handlers {
		text := strings.TrimSpace(handler.Help())
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

func normalizeName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
