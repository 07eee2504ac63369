package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/heartbeat"
	"github.com/dwizi/chat-skills/internal/store"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, message handlers.Message, replier handlers.Replier) bool
}

type Dependencies struct {
	Config              config.Config
	Store               *store.Store
	Dispatcher          Dispatcher
	HandlerNames        []string
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/messages", rt.handleMessages)
	mux.HandleFunc("/api/v1/bookmarks", rt.handleBookmarks)
	mux.HandleFunc("/api/v1/evaluations", rt.handleEvaluations)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
