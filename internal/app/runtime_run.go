package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/chat-skills/internal/heartbeat"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info(
		"chat-skills runtime starting",
		"addr", r.cfg.HTTPAddr,
		"settings_path", r.settings.Path(),
		"handlers", r.dispatcher.Names(),
		"connectors", len(r.connectors),
	)
	if r.heartbeat != nil {
		r.heartbeat.Beat("runtime", "runtime loop started")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if r.watcher != nil {
		group.Go(func() error {
			return r.watcher.Start(groupCtx)
		})
	}
	group.Go(func() error {
		return r.scheduler.Start(groupCtx)
	})
	for _, conn := range r.connectors {
		connector := conn
		group.Go(func() error {
			return connector.Start(groupCtx)
		})
	}
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "api", 20*time.Second, func(runCtx context.Context) error {
			err := r.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	})
	if r.heartbeatMonitor != nil {
		group.Go(func() error {
			return r.heartbeatMonitor.Start(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	if r.heartbeat != nil {
		r.heartbeat.Stopped("runtime", "runtime loop finished")
	}
	return err
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// runMonitored runs a component that does not report its own heartbeat and
// beats on its behalf every beatInterval while it runs.
func runMonitored(
	ctx context.Context,
	reporter heartbeat.Reporter,
	component string,
	beatInterval time.Duration,
	run func(context.Context) error,
) error {
	if run == nil {
		return nil
	}
	if reporter != nil {
		reporter.Starting(component, "starting")
		reporter.Beat(component, "running")
	}

	var stopHeartbeat func()
	if reporter != nil && beatInterval > 0 {
		heartbeatCtx, cancel := context.WithCancel(ctx)
		stopHeartbeat = cancel
		go func() {
			ticker := time.NewTicker(beatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-heartbeatCtx.Done():
					return
				case <-ticker.C:
					reporter.Beat(component, "running")
				}
			}
		}()
	}

	err := run(ctx)
	if stopHeartbeat != nil {
		stopHeartbeat()
	}
	if reporter == nil {
		return err
	}
	if err != nil && ctx.Err() == nil {
		reporter.Degrade(component, "component failed", err)
		return err
	}
	reporter.Stopped(component, "stopped")
	return err
}
