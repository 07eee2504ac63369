// Package connectors holds what every chat host connector shares.
package connectors

import (
	"context"

	"github.com/dwizi/chat-skills/internal/handlers"
)

type Connector interface {
	Name() string
	Start(ctx context.Context) error
}

// Dispatcher is the handler chain a connector feeds messages into.
type Dispatcher interface {
	Dispatch(ctx context.Context, message handlers.Message, replier handlers.Replier) bool
}

// SplitText breaks text into chunks of at most limit runes, preferring to
// cut at a newline so code output stays readable.
func SplitText(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
