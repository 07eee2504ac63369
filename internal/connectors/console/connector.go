// Package console feeds stdin into the handler chain and prints replies to
// stdout. A message may span several lines and ends at a blank line.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/chat-skills/internal/connectors"
	"github.com/dwizi/chat-skills/internal/handlers"
)

const connectorName = "console"

type Connector struct {
	in         io.Reader
	out        io.Writer
	chatID     string
	dispatcher connectors.Dispatcher
	logger     *slog.Logger

	mu sync.Mutex
}

func New(in io.Reader, out io.Writer, chatID string, dispatcher connectors.Dispatcher, logger *slog.Logger) *Connector {
	if strings.TrimSpace(chatID) == "" {
		chatID = "console"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		in:         in,
		out:        out,
		chatID:     chatID,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (c *Connector) Name() string {
	return connectorName
}

// Start reads until EOF or ctx is done. A pending message is flushed at EOF.
func (c *Connector) Start(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var pending []string
	flush := func() {
		body := strings.Join(pending, "\n")
		pending = pending[:0]
		if strings.TrimSpace(body) == "" {
			return
		}
		c.dispatcher.Dispatch(ctx, handlers.Message{
			Connector: connectorName,
			ChatID:    c.chatID,
			ChatTitle: c.chatID,
			SenderID:  "local",
			Body:      body,
			Timestamp: time.Now().UTC(),
			Status:    handlers.StatusReceived,
		}, c)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				flush()
				continue
			}
			pending = append(pending, line)
		case err := <-readErr:
			flush()
			if err != nil {
				return fmt.Errorf("read console input: %w", err)
			}
			return nil
		}
	}
}

func (c *Connector) Reply(ctx context.Context, chatID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", chatID, text)
	return err
}
