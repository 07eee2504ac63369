package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
	OnTransition func(context.Context, Transition)
}

// Monitor polls the registry and logs component state changes, most
// importantly a connector going stale.
type Monitor struct {
	registry     *Registry
	interval     time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
	onTransition func(context.Context, Transition)
	previous     map[string]string
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry:     registry,
		interval:     interval,
		staleAfter:   cfg.StaleAfter,
		logger:       logger,
		onTransition: cfg.OnTransition,
		previous:     map[string]string{},
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Info("heartbeat monitor started", "interval", m.interval.String(), "stale_after", m.staleAfter.String())
	for {
		m.check(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	snapshot := m.registry.Snapshot(m.staleAfter)
	for _, item := range snapshot.Components {
		before, seen := m.previous[item.Name]
		m.previous[item.Name] = item.State
		if !seen || before == item.State {
			continue
		}
		transition := Transition{
			Component: item.Name,
			FromState: before,
			ToState:   item.State,
			Message:   item.Message,
			Error:     item.Error,
		}
		if IsDegradedState(item.State) {
			m.logger.Warn("component degraded", "component", item.Name, "from", before, "to", item.State, "error", item.Error)
		} else {
			m.logger.Info("component state changed", "component", item.Name, "from", before, "to", item.State)
		}
		if m.onTransition != nil {
			m.onTransition(ctx, transition)
		}
	}
}
