// Package uri bookmarks links posted in chat and points out links that were
// already shared in the same room.
package uri

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"sync"
	"text/template"
	"time"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/durafmt"
	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/store"
	"github.com/dwizi/chat-skills/internal/urihistory"
)

const Name = "uri"

const HelpText = `Bookmarks every link posted here and mentions when a link was already shared in this chat.`

type Bookmarker interface {
	Bookmark(ctx context.Context, uri, summary string) error
}

type History interface {
	FindAndAdd(ctx context.Context, chatID, body string, at time.Time, rawURI string) (urihistory.Entry, bool)
}

type Ledger interface {
	RecordBookmark(ctx context.Context, input store.RecordBookmarkInput) (store.Bookmark, error)
}

type Options struct {
	// Settings is read on every message.
	Settings   func() config.Settings
	History    History
	Bookmarker Bookmarker
	Ledger     Ledger
	Logger     *slog.Logger
	// Pick returns an index in [0, n); defaults to math/rand.
	Pick func(n int) int
}

// Notice is the data a notification template is rendered with.
type Notice struct {
	URI   string
	Title string
	Ago   string
}

type Plugin struct {
	settings   func() config.Settings
	history    History
	bookmarker Bookmarker
	ledger     Ledger
	logger     *slog.Logger
	pick       func(n int) int

	mu        sync.Mutex
	patternOf string
	pattern   *regexp.Regexp
	templates map[string]*template.Template
}

func New(opts Options) (*Plugin, error) {
	if opts.Settings == nil {
		return nil, fmt.Errorf("uri plugin requires settings")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pick := opts.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return &Plugin{
		settings:   opts.Settings,
		history:    opts.History,
		bookmarker: opts.Bookmarker,
		ledger:     opts.Ledger,
		logger:     logger.With("handler", Name),
		pick:       pick,
		templates:  map[string]*template.Template{},
	}, nil
}

func (p *Plugin) Name() string {
	return Name
}

func (p *Plugin) Help() string {
	return HelpText
}

// HandleMessage never claims the message so later handlers still see it.
// Sent messages only feed the repost history: bookmarking them would
// bookmark the bot's own replies, including its error replies.
func (p *Plugin) HandleMessage(ctx context.Context, message handlers.Message, replier handlers.Replier) (bool, error) {
	settings := p.settings()
	pattern, err := p.compiledPattern(settings)
	if err != nil {
		return false, err
	}
	var errs []error
	for _, rawURI := range pattern.FindAllString(message.Body, -1) {
		if !message.IsSent() {
			if err := p.bookmark(ctx, message, settings.Hatena, rawURI, replier); err != nil {
				errs = append(errs, err)
			}
		}
		if err := p.notifyAlreadyPosted(ctx, message, settings.URI, rawURI, replier); err != nil {
			errs = append(errs, err)
		}
	}
	return false, errors.Join(errs...)
}

func (p *Plugin) bookmark(ctx context.Context, message handlers.Message, settings config.HatenaSettings, rawURI string, replier handlers.Replier) error {
	if !settings.Enabled || p.bookmarker == nil {
		return nil
	}
	record := store.RecordBookmarkInput{
		Connector: message.Connector,
		ChatID:    message.ChatID,
		URI:       rawURI,
		Status:    store.BookmarkStatusPosted,
	}
	err := p.bookmarker.Bookmark(ctx, rawURI, "")
	if err != nil {
		p.logger.Warn("bookmark failed", "chat_id", message.ChatID, "uri", rawURI, "error", err)
		record.Status = store.BookmarkStatusFailed
		record.ErrorMessage = err.Error()
	}
	p.record(ctx, record)
	if err != nil {
		return replier.Reply(ctx, message.ChatID, err.Error())
	}
	return nil
}

func (p *Plugin) notifyAlreadyPosted(ctx context.Context, message handlers.Message, settings config.URISettings, rawURI string, replier handlers.Replier) error {
	if !settings.EnableNotification || p.history == nil {
		return nil
	}
	entry, found := p.history.FindAndAdd(ctx, message.ChatID, message.Body, message.Timestamp, rawURI)
	if !found {
		return nil
	}
	if len(settings.NotificationFormats) == 0 {
		return nil
	}
	p.logger.Debug("repost detected", "chat_id", message.ChatID, "uri", entry.URI)

	format := settings.NotificationFormats[p.pick(len(settings.NotificationFormats))]
	text, err := p.render(format, Notice{
		URI:   entry.URI,
		Title: entry.Title,
		Ago:   durafmt.Since(entry.RecordedAt, message.Timestamp),
	})
	if err != nil {
		p.logger.Error("render notification failed", "chat_id", message.ChatID, "error", err)
		return nil
	}
	return replier.Reply(ctx, message.ChatID, text)
}

func (p *Plugin) compiledPattern(settings config.Settings) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pattern != nil && p.patternOf == settings.URI.Regexp {
		return p.pattern, nil
	}
	pattern, err := settings.URIPattern()
	if err != nil {
		return nil, err
	}
	p.patternOf = settings.URI.Regexp
	p.pattern = pattern
	return pattern, nil
}

func (p *Plugin) render(format string, notice Notice) (string, error) {
	p.mu.Lock()
	tmpl, ok := p.templates[format]
	if !ok {
		parsed, err := template.New("notice").Option("missingkey=zero").Parse(format)
		if err != nil {
			p.mu.Unlock()
			return "", fmt.Errorf("parse notification format: %w", err)
		}
		tmpl = parsed
		p.templates[format] = tmpl
	}
	p.mu.Unlock()

	var out bytes.Buffer
	if err := tmpl.Execute(&out, notice); err != nil {
		return "", fmt.Errorf("render notification: %w", err)
	}
	return out.String(), nil
}

func (p *Plugin) record(ctx context.Context, input store.RecordBookmarkInput) {
	if p.ledger == nil {
		return
	}
	if _, err := p.ledger.RecordBookmark(ctx, input); err != nil {
		p.logger.Error("record bookmark failed", "chat_id", input.ChatID, "uri", input.URI, "error", err)
	}
}
