// Package scheduler runs the ledger retention job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/chat-skills/internal/heartbeat"
	"github.com/dwizi/chat-skills/internal/store"
)

const component = "scheduler"

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Store interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (store.PruneResult, error)
}

type Config struct {
	// CronExpr is a five field expression or a descriptor such as "@daily".
	CronExpr      string
	RetentionDays int
}

type Service struct {
	store     Store
	schedule  cron.Schedule
	retention time.Duration
	logger    *slog.Logger
	reporter  heartbeat.Reporter
	now       func() time.Time
}

func New(store Store, cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	expr := strings.Join(strings.Fields(cfg.CronExpr), " ")
	if expr == "" {
		expr = "@daily"
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse retention cron expression: %w", err)
	}
	return &Service{
		store:     store,
		schedule:  schedule,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

// NextRun reports when the job fires next after from.
func (s *Service) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from).UTC()
}

func (s *Service) Start(ctx context.Context) error {
	if s.store == nil || s.retention <= 0 {
		s.report(func(r heartbeat.Reporter) { r.Disabled(component, "ledger retention disabled") })
		<-ctx.Done()
		return nil
	}
	s.report(func(r heartbeat.Reporter) { r.Starting(component, "started") })
	s.logger.Info("scheduler started", "retention", s.retention.String())
	for {
		next := s.NextRun(s.now())
		s.report(func(r heartbeat.Reporter) { r.Beat(component, "next prune at "+next.Format(time.RFC3339)) })
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.report(func(r heartbeat.Reporter) { r.Stopped(component, "stopped") })
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.report(func(r heartbeat.Reporter) { r.Degrade(component, "ledger prune failed", err) })
			s.logger.Error("ledger prune failed", "error", err)
		}
	}
}

// RunOnce deletes ledger rows older than the retention window.
func (s *Service) RunOnce(ctx context.Context) (store.PruneResult, error) {
	if s.store == nil || s.retention <= 0 {
		return store.PruneResult{}, nil
	}
	cutoff := s.now().Add(-s.retention)
	result, err := s.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return store.PruneResult{}, err
	}
	s.logger.Info("ledger pruned",
		"cutoff", cutoff.Format(time.RFC3339),
		"bookmarks", result.Bookmarks,
		"evaluations", result.Evaluations,
	)
	return result, nil
}

func (s *Service) report(fn func(heartbeat.Reporter)) {
	if s.reporter != nil {
		fn(s.reporter)
	}
}
