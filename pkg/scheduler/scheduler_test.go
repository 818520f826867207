package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/venkytv/calendar-converter/internal/apperr"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v", timeout)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Debounce != 500*time.Millisecond {
		t.Errorf("Expected default debounce to be 500ms, got %v", config.Debounce)
	}
	if config.Schedule != "" || len(config.WatchPaths) != 0 {
		t.Errorf("Expected no triggers by default, got %+v", config)
	}
}

func TestNewScheduler(t *testing.T) {
	run := func(context.Context) error { return nil }

	if _, err := NewScheduler(&Config{Schedule: "not a cron spec"}, run, nil); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("Expected configuration error for invalid spec, got %v", err)
	}
	if _, err := NewScheduler(nil, nil, nil); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("Expected precondition error for nil run, got %v", err)
	}

	for _, spec := range []string{"@hourly", "@every 30m", "*/5 * * * *"} {
		if _, err := NewScheduler(&Config{Schedule: spec}, run, nil); err != nil {
			t.Errorf("Expected %q to be accepted, got %v", spec, err)
		}
	}
}

func TestTriggerCountsRunsAndFailures(t *testing.T) {
	fail := false
	s, err := NewScheduler(nil, func(context.Context) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !s.Trigger("test") {
		t.Error("Expected first trigger to run")
	}
	fail = true
	if !s.Trigger("test") {
		t.Error("Expected failing trigger to run")
	}

	stats := s.GetStats()
	if stats.Runs != 2 || stats.Failures != 1 || stats.LastError != "boom" {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestTriggerSkipsOverlappingRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s, err := NewScheduler(nil, func(context.Context) error {
		close(started)
		<-release
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan bool)
	go func() { done <- s.Trigger("first") }()
	<-started

	if s.Trigger("second") {
		t.Error("Expected overlapping trigger to be skipped")
	}
	close(release)
	if !<-done {
		t.Error("Expected first trigger to run")
	}

	if stats := s.GetStats(); stats.Runs != 1 || stats.Skipped != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(&Config{Schedule: "@hourly"}, func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("Expected error when starting twice")
	}
	if !s.GetStats().IsRunning {
		t.Error("Expected scheduler to be running")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Failed to stop scheduler: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Expected second stop to be a no-op, got %v", err)
	}
	if s.GetStats().IsRunning {
		t.Error("Expected scheduler to be stopped")
	}
}

func TestTriggerRunsUnderStartContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	s, err := NewScheduler(nil, func(runCtx context.Context) error {
		close(started)
		<-runCtx.Done()
		return runCtx.Err()
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	done := make(chan bool)
	go func() { done <- s.Trigger("startup") }()
	<-started
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not observe cancellation of the start context")
	}
	if stats := s.GetStats(); stats.Failures != 1 || stats.LastError != context.Canceled.Error() {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestCronSchedule(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler(&Config{Schedule: "@every 1s"}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	waitFor(t, 5*time.Second, func() bool { return runs.Load() >= 1 })
}

func TestWatchTriggersRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var runs atomic.Int32
	s, err := NewScheduler(&Config{
		WatchPaths: []string{path},
		Debounce:   50 * time.Millisecond,
	}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := runs.Load(); n != 0 {
		t.Fatalf("Expected no run for unrelated file, got %d", n)
	}

	if err := os.WriteFile(path, []byte("a: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, func() bool { return runs.Load() >= 1 })
}

func TestWatchMissingDirectory(t *testing.T) {
	s, err := NewScheduler(&Config{
		WatchPaths: []string{filepath.Join(t.TempDir(), "missing", "config.yaml")},
	}, func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("Expected error watching a missing directory")
	}
}
