// Package telegram connects the handler chain to the Telegram Bot API using
// long polling.
package telegram

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/chat-skills/internal/connectors"
	"github.com/dwizi/chat-skills/internal/heartbeat"
)

const (
	connectorName = "telegram"
	component     = "connector:telegram"
	maxTextRunes  = 4096
)

type Connector struct {
	token       string
	apiBase     string
	pollSeconds int
	dispatcher  connectors.Dispatcher
	httpClient  *http.Client
	logger      *slog.Logger
	botID       int64
	offset      int64
	retryDelay  time.Duration
	reporter    heartbeat.Reporter
}

func New(token, apiBase string, pollSeconds int, dispatcher connectors.Dispatcher, logger *slog.Logger) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.telegram.org"
	}
	if pollSeconds < 1 {
		pollSeconds = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		token:       strings.TrimSpace(token),
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		pollSeconds: pollSeconds,
		dispatcher:  dispatcher,
		httpClient: &http.Client{
			Timeout: time.Duration(pollSeconds+10) * time.Second,
		},
		logger:     logger,
		retryDelay: 1500 * time.Millisecond,
	}
}

func (c *Connector) Name() string {
	return connectorName
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}
