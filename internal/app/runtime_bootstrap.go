package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/chat-skills/internal/bookmark"
	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/connectors"
	"github.com/dwizi/chat-skills/internal/connectors/discord"
	"github.com/dwizi/chat-skills/internal/connectors/telegram"
	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/handlers/plugins/lleval"
	"github.com/dwizi/chat-skills/internal/handlers/plugins/uri"
	"github.com/dwizi/chat-skills/internal/heartbeat"
	"github.com/dwizi/chat-skills/internal/httpapi"
	"github.com/dwizi/chat-skills/internal/scheduler"
	"github.com/dwizi/chat-skills/internal/store"
	"github.com/dwizi/chat-skills/internal/urihistory"
	"github.com/dwizi/chat-skills/internal/watcher"
)

// Ledger is the subset of the store the handlers record into.
type Ledger interface {
	lleval.Ledger
	uri.Ledger
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	live, err := config.NewLiveSettings(cfg.SettingsPath, logger.With("component", "settings"))
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	heartbeatRegistry := heartbeat.NewRegistry()
	heartbeatRegistry.Starting("runtime", "booting")

	dispatcher, err := BuildDispatcher(cfg, live, sqlStore, logger)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	schedulerService, err := scheduler.New(sqlStore, scheduler.Config{
		CronExpr:      cfg.LedgerRetentionCron,
		RetentionDays: cfg.LedgerRetentionDays,
	}, logger.With("component", "scheduler"))
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	var watchService *watcher.Service
	if cfg.WatchSettings && live.Path() != "" {
		if err := os.MkdirAll(filepath.Dir(live.Path()), 0o755); err != nil {
			sqlStore.Close()
			return nil, fmt.Errorf("create settings directory: %w", err)
		}
		watchService, err = watcher.New(live.Path(), logger.With("component", "watcher"), func(ctx context.Context, path string) error {
			return live.Reload()
		})
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
	}

	staleAfter := time.Duration(cfg.HeartbeatStaleSec) * time.Second
	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg,
		Store:               sqlStore,
		Dispatcher:          dispatcher,
		HandlerNames:        dispatcher.Names(),
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: staleAfter,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	connectorList := []connectors.Connector{}
	if strings.TrimSpace(cfg.TelegramToken) != "" {
		connectorList = append(connectorList, telegram.New(
			cfg.TelegramToken,
			cfg.TelegramAPI,
			cfg.TelegramPoll,
			dispatcher,
			logger.With("connector", "telegram"),
		))
	}
	if strings.TrimSpace(cfg.DiscordToken) != "" {
		connectorList = append(connectorList, discord.New(
			cfg.DiscordToken,
			cfg.DiscordAPI,
			cfg.DiscordWSURL,
			dispatcher,
			logger.With("connector", "discord"),
		))
	}
	if len(connectorList) == 0 {
		logger.Warn("no chat connector configured; only the http api will accept messages")
	}

	schedulerService.SetHeartbeatReporter(heartbeatRegistry)
	if watchService != nil {
		watchService.SetHeartbeatReporter(heartbeatRegistry)
	}
	for _, connector := range connectorList {
		reportingConnector, ok := connector.(heartbeatAware)
		if !ok {
			continue
		}
		reportingConnector.SetHeartbeatReporter(heartbeatRegistry)
	}

	monitor := heartbeat.NewMonitor(heartbeatRegistry, heartbeat.MonitorConfig{
		StaleAfter: staleAfter,
		Logger:     logger.With("component", "heartbeat"),
	})

	return &Runtime{
		cfg:              cfg,
		logger:           logger,
		store:            sqlStore,
		settings:         live,
		dispatcher:       dispatcher,
		httpServer:       httpServer,
		watcher:          watchService,
		scheduler:        schedulerService,
		connectors:       connectorList,
		heartbeat:        heartbeatRegistry,
		heartbeatMonitor: monitor,
	}, nil
}

// BuildDispatcher wires the handler chain: code evaluation first, then links.
// ledger may be nil.
func BuildDispatcher(cfg config.Config, live *config.LiveSettings, ledger Ledger, logger *slog.Logger) (*handlers.Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	initial := live.Current()

	var lledger lleval.Ledger
	var uledger uri.Ledger
	if ledger != nil {
		lledger = ledger
		uledger = ledger
	}

	evalPlugin := lleval.New(
		lleval.NewClient(initial.LLEval.Timeout),
		func() config.LLEvalSettings { return live.Current().LLEval },
		lledger,
		logger,
	)

	history := urihistory.New(
		urihistory.NewHTTPResolver(initial.URI.ResolveTimeout, cfg.UserAgent),
		initial.URI.HistoryLimitPerChat,
		logger.With("component", "uri-history"),
	)

	var bookmarker uri.Bookmarker
	client, err := bookmark.New(bookmark.Options{
		PostURI:      initial.Hatena.PostURI,
		PostTemplate: initial.Hatena.PostTemplate,
		Credentials: bookmark.Credentials{
			ClientKey:         initial.Hatena.ClientKey,
			ClientSecret:      initial.Hatena.ClientSecret,
			AccessToken:       initial.Hatena.AccessToken,
			AccessTokenSecret: initial.Hatena.AccessTokenSecret,
		},
		Timeout: initial.Hatena.Timeout,
	})
	switch {
	case err == nil:
		bookmarker = client
	case errors.Is(err, bookmark.ErrNotConfigured):
		if initial.Hatena.Enabled {
			logger.Warn("hatena bookmarking enabled but credentials are incomplete; bookmarking is off")
		}
	default:
		return nil, err
	}

	uriPlugin, err := uri.New(uri.Options{
		Settings:   live.Current,
		History:    history,
		Bookmarker: bookmarker,
		Ledger:     uledger,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return handlers.NewDispatcher(logger.With("component", "dispatcher"), evalPlugin, uriPlugin)
}
