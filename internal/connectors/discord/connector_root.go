// Package discord connects the handler chain to a Discord bot through the
// gateway websocket and the REST API.
package discord

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/chat-skills/internal/connectors"
	"github.com/dwizi/chat-skills/internal/heartbeat"
)

const (
	connectorName = "discord"
	component     = "connector:discord"
	maxTextRunes  = 2000

	discordIntentGuilds          = 1 << 0
	discordIntentGuildMessages   = 1 << 9
	discordIntentDirectMessages  = 1 << 12
	discordIntentMessageContents = 1 << 15
)

type Connector struct {
	token      string
	apiBase    string
	gatewayURL string
	dispatcher connectors.Dispatcher
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	retryDelay time.Duration
	reporter   heartbeat.Reporter

	botUserID string
}

func New(token, apiBase, gatewayURL string, dispatcher connectors.Dispatcher, logger *slog.Logger) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		token:      strings.TrimSpace(token),
		apiBase:    strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL: strings.TrimSpace(gatewayURL),
		dispatcher: dispatcher,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		logger:     logger,
		userAgent:  "DiscordBot (https://github.com/dwizi/chat-skills, 0.1)",
		retryDelay: 2 * time.Second,
	}
}

func (c *Connector) Name() string {
	return connectorName
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}
