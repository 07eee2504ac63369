package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/connectors"
	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/heartbeat"
	"github.com/dwizi/chat-skills/internal/scheduler"
	"github.com/dwizi/chat-skills/internal/store"
	"github.com/dwizi/chat-skills/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	store            *store.Store
	settings         *config.LiveSettings
	dispatcher       *handlers.Dispatcher
	httpServer       *http.Server
	watcher          *watcher.Service
	scheduler        *scheduler.Service
	connectors       []connectors.Connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
