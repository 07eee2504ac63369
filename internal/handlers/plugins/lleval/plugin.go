// Package lleval evaluates "#!" prefixed chat messages with a remote
// lightweight-language evaluation service.
package lleval

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/store"
)

const Name = "lleval"

const HelpText = `Evaluates code snippets with LLEval.

Usage:

#!<language>
<source code>

<language> is a language key such as py, py3 or rb, or an interpreter
path such as /usr/bin/python or /usr/bin/ruby. See
http://colabv6.dan.co.jp/lleval.html for the supported list.

Example:

#!py
for i in range(1, 16):
    print("FizzBuzz" if i % 15 == 0 else "Fizz" if i % 3 == 0 else "Buzz" if i % 5 == 0 else i)`

const rateLimitedNotice = "Too many evaluations in this chat. Try again in a minute."

var sourcePattern = regexp.MustCompile(`(?s)^#!(\S+)\s+(.*)`)

type Evaluator interface {
	Evaluate(ctx context.Context, request Request) (Result, error)
}

type Ledger interface {
	RecordEvaluation(ctx context.Context, input store.RecordEvaluationInput) (store.Evaluation, error)
}

type Plugin struct {
	evaluator Evaluator
	settings  func() config.LLEvalSettings
	ledger    Ledger
	logger    *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds the plugin. settings is read on every message so reloaded
// values apply without a restart; ledger may be nil.
func New(evaluator Evaluator, settings func() config.LLEvalSettings, ledger Ledger, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{
		evaluator: evaluator,
		settings:  settings,
		ledger:    ledger,
		logger:    logger.With("handler", Name),
		limiters:  map[string]*rate.Limiter{},
	}
}

func (p *Plugin) Name() string {
	return Name
}

func (p *Plugin) Help() string {
	return HelpText
}

func (p *Plugin) HandleMessage(ctx context.Context, message handlers.Message, replier handlers.Replier) (bool, error) {
	body := message.Body
	if !strings.HasPrefix(body, "#!") {
		return false, nil
	}
	settings := p.settings()
	if !settings.Enabled {
		return false, nil
	}
	if message.IsSent() {
		// Our own output may itself start with "#!"; evaluating it could loop.
		return true, nil
	}

	match := sourcePattern.FindStringSubmatch(body)
	if match == nil {
		return true, replier.Reply(ctx, message.ChatID, HelpText)
	}
	language, source := match[1], match[2]
	if strings.HasPrefix(language, "/") {
		language = ""
		source = match[0]
	}

	record := store.RecordEvaluationInput{
		Connector:   message.Connector,
		ChatID:      message.ChatID,
		Language:    language,
		SourceBytes: len(source),
	}
	if !p.allow(message.ChatID, settings) {
		record.Outcome = store.EvaluationOutcomeRateLimited
		p.record(ctx, record)
		return true, replier.Reply(ctx, message.ChatID, rateLimitedNotice)
	}

	result, err := p.evaluator.Evaluate(ctx, Request{
		Endpoint: settings.Endpoint,
		Language: language,
		Source:   source,
	})
	if err != nil {
		p.logger.Warn("evaluation failed", "chat_id", message.ChatID, "language", language, "error", err)
		record.Outcome = store.EvaluationOutcomeError
		record.ErrorMessage = err.Error()
		p.record(ctx, record)
		return true, replier.Reply(ctx, message.ChatID, err.Error())
	}

	record.Outcome = store.EvaluationOutcomeOK
	p.record(ctx, record)
	text := FormatResult(result)
	if text == "" {
		return true, nil
	}
	return true, replier.Reply(ctx, message.ChatID, text)
}

func (p *Plugin) allow(chatID string, settings config.LLEvalSettings) bool {
	limit := rate.Inf
	if settings.RatePerMinute > 0 {
		limit = rate.Limit(settings.RatePerMinute / 60)
	}
	burst := settings.Burst
	if burst < 1 {
		burst = 1
	}

	p.mu.Lock()
	limiter, ok := p.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(limit, burst)
		p.limiters[chatID] = limiter
	} else if limiter.Limit() != limit || limiter.Burst() != burst {
		limiter.SetLimit(limit)
		limiter.SetBurst(burst)
	}
	p.mu.Unlock()
	return limiter.Allow()
}

func (p *Plugin) record(ctx context.Context, input store.RecordEvaluationInput) {
	if p.ledger == nil {
		return
	}
	if _, err := p.ledger.RecordEvaluation(ctx, input); err != nil {
		p.logger.Error("record evaluation failed", "chat_id", input.ChatID, "error", err)
	}
}
