// Package heartbeat tracks liveness of the long running components
// (connectors, the settings watcher, the ledger scheduler).
package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallUnknown = "unknown"
	OverallIdle    = "idle"
)

type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

// Ready reports whether no component is degraded or stale.
func (s Snapshot) Ready() bool {
	return s.Overall != StateDegraded
}

type component struct {
	state      string
	message    string
	lastError  string
	lastBeatAt time.Time
	updatedAt  time.Time
}

type Registry struct {
	now func() time.Time

	mu         sync.RWMutex
	components map[string]component
}

func NewRegistry() *Registry {
	return &Registry{
		now:        func() time.Time { return time.Now().UTC() },
		components: map[string]component{},
	}
}

func (r *Registry) Starting(name, message string) {
	r.update(name, StateStarting, message, "")
}

// Beat marks the component healthy and refreshes its staleness clock.
func (r *Registry) Beat(name, message string) {
	r.update(name, StateHealthy, message, "")
}

func (r *Registry) Degrade(name, message string, err error) {
	errorText := ""
	if err != nil {
		errorText = err.Error()
	}
	r.update(name, StateDegraded, message, errorText)
}

func (r *Registry) Disabled(name, message string) {
	r.update(name, StateDisabled, message, "")
}

func (r *Registry) Stopped(name, message string) {
	r.update(name, StateStopped, message, "")
}

// Component returns a reporter bound to one component name.
func (r *Registry) Component(name string) *Handle {
	return &Handle{registry: r, name: name}
}

func (r *Registry) update(name, state, message, errorText string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.components[key]
	record.state = state
	record.message = strings.TrimSpace(message)
	record.lastError = strings.TrimSpace(errorText)
	record.updatedAt = now
	if state == StateHealthy || record.lastBeatAt.IsZero() {
		record.lastBeatAt = now
	}
	r.components[key] = record
}

// Snapshot reports every component sorted by name. Starting or healthy
// components without a beat for longer than staleAfter are reported stale.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	results := make([]ComponentStatus, 0, len(r.components))
	for name, record := range r.components {
		status := ComponentStatus{
			Name:           name,
			State:          record.state,
			BaseState:      record.state,
			Message:        record.message,
			Error:          record.lastError,
			LastBeatAtUnix: record.lastBeatAt.Unix(),
			UpdatedAtUnix:  record.updatedAt.Unix(),
		}
		live := record.state == StateHealthy || record.state == StateStarting
		if staleAfter > 0 && live && now.Sub(record.lastBeatAt) > staleAfter {
			status.State = StateStale
			status.Stale = true
		}
		results = append(results, status)
	}
	r.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(results),
		Components:      results,
	}
}

func IsDegradedState(state string) bool {
	return state == StateDegraded || state == StateStale
}

func overall(items []ComponentStatus) string {
	if len(items) == 0 {
		return OverallUnknown
	}
	counts := map[string]int{}
	for _, item := range items {
		if IsDegradedState(item.State) {
			return StateDegraded
		}
		counts[item.State]++
	}
	switch {
	case counts[StateStarting] > 0:
		return StateStarting
	case counts[StateHealthy] > 0:
		return StateHealthy
	default:
		return OverallIdle
	}
}

// Handle reports for a single component.
type Handle struct {
	registry *Registry
	name     string
}

func (h *Handle) Name() string { return h.name }

func (h *Handle) Starting(message string) { h.registry.Starting(h.name, message) }

func (h *Handle) Beat(message string) { h.registry.Beat(h.name, message) }

func (h *Handle) Degrade(message string, err error) { h.registry.Degrade(h.name, message, err) }

func (h *Handle) Disabled(message string) { h.registry.Disabled(h.name, message) }

func (h *Handle) Stopped(message string) { h.registry.Stopped(h.name, message) }
