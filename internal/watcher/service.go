// Package watcher reloads the handler settings when the settings file
// changes on disk.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwizi/chat-skills/internal/heartbeat"
)

const component = "settings-watcher"

type Service struct {
	path     string
	logger   *slog.Logger
	onChange func(context.Context, string) error
	watcher  *fsnotify.Watcher
	debounce time.Duration
	reporter heartbeat.Reporter
}

// New watches the directory holding path, since editors and config
// management usually replace the file instead of writing it in place.
func New(path string, logger *slog.Logger, onChange func(context.Context, string) error) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Service{
		path:     filepath.Clean(path),
		logger:   logger,
		onChange: onChange,
		watcher:  fileWatcher,
		debounce: 200 * time.Millisecond,
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	dir := filepath.Dir(s.path)
	if err := s.watcher.Add(dir); err != nil {
		s.report(func(r heartbeat.Reporter) { r.Degrade(component, "watch failed", err) })
		return fmt.Errorf("watch path %s: %w", dir, err)
	}
	s.report(func(r heartbeat.Reporter) { r.Beat(component, "watching "+s.path) })
	s.logger.Info("settings watcher started", "path", s.path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			s.report(func(r heartbeat.Reporter) { r.Stopped(component, "stopped") })
			s.logger.Info("settings watcher stopped")
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if s.relevant(event) {
				pending = time.After(s.debounce)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
			}
		case <-pending:
			pending = nil
			s.reload(ctx)
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != s.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (s *Service) reload(ctx context.Context) {
	if s.onChange == nil {
		return
	}
	s.logger.Info("settings changed", "path", s.path)
	if err := s.onChange(ctx, s.path); err != nil {
		s.report(func(r heartbeat.Reporter) { r.Degrade(component, "reload failed", err) })
		return
	}
	s.report(func(r heartbeat.Reporter) { r.Beat(component, "settings reloaded") })
}

func (s *Service) report(fn func(heartbeat.Reporter)) {
	if s.reporter != nil {
		fn(s.reporter)
	}
}
