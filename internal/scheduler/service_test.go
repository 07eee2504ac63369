package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dwizi/chat-skills/internal/heartbeat"
	"github.com/dwizi/chat-skills/internal/store"
)

type fakeStore struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeStore) PruneBefore(ctx context.Context, cutoff time.Time) (store.PruneResult, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return store.PruneResult{}, f.err
	}
	return store.PruneResult{Bookmarks: 2, Evaluations: 1}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsBadCron(t *testing.T) {
	if _, err := New(&fakeStore{}, Config{CronExpr: "every tuesday", RetentionDays: 1}, quietLogger()); err == nil {
		t.Fatal("expected cron parse error")
	}
}

func TestNextRunFollowsSchedule(t *testing.T) {
	service, err := New(&fakeStore{}, Config{CronExpr: " 30  3 * * * ", RetentionDays: 1}, quietLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	from := time.Date(2024, 2, 1, 4, 0, 0, 0, time.UTC)
	want := time.Date(2024, 2, 2, 3, 30, 0, 0, time.UTC)
	if got := service.NextRun(from); !got.Equal(want) {
		t.Fatalf("expected next run %s, got %s", want, got)
	}
}

func TestRunOnceUsesRetentionWindow(t *testing.T) {
	fake := &fakeStore{}
	service, err := New(fake, Config{RetentionDays: 30}, quietLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	result, err := service.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if result.Bookmarks != 2 || result.Evaluations != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(fake.cutoffs) != 1 || !fake.cutoffs[0].Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected cutoffs: %v", fake.cutoffs)
	}
}

func TestRunOnceSurfacesStoreError(t *testing.T) {
	service, err := New(&fakeStore{err: errors.New("disk full")}, Config{RetentionDays: 1}, quietLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if _, err := service.RunOnce(context.Background()); err == nil {
		t.Fatal("expected prune error")
	}
}

func TestStartDisabledWithoutRetention(t *testing.T) {
	fake := &fakeStore{}
	service, err := New(fake, Config{RetentionDays: 0}, quietLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	registry := heartbeat.NewRegistry()
	service.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	snapshot := registry.Snapshot(0)
	if len(snapshot.Components) != 1 || snapshot.Components[0].State != heartbeat.StateDisabled {
		t.Fatalf("expected disabled scheduler, got %+v", snapshot.Components)
	}
	if len(fake.cutoffs) != 0 {
		t.Fatal("expected no prune when retention disabled")
	}
}

func TestStartReportsStoppedOnCancel(t *testing.T) {
	service, err := New(&fakeStore{}, Config{CronExpr: "@yearly", RetentionDays: 7}, quietLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	registry := heartbeat.NewRegistry()
	service.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = service.Start(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	snapshot := registry.Snapshot(0)
	if snapshot.Components[0].State != heartbeat.StateStopped {
		t.Fatalf("expected stopped scheduler, got %s", snapshot.Components[0].State)
	}
}
