package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetentionSweepUsesConfiguredWindow(t *testing.T) {
	t.Parallel()

	logs := &fakeLogRepo{purgeCount: 12}
	sweeper, err := NewRetentionSweeper(logs, 90*24*time.Hour, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewRetentionSweeper() error = %v", err)
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return now }

	if err := sweeper.sweep(context.Background()); err != nil {
		t.Fatalf("sweep() error = %v", err)
	}

	if len(logs.purgedCutoffs) != 1 {
		t.Fatalf("purge calls = %d, want 1", len(logs.purgedCutoffs))
	}
	want := now.Add(-90 * 24 * time.Hour)
	if !logs.purgedCutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", logs.purgedCutoffs[0], want)
	}
}

func TestRetentionSweepPropagatesError(t *testing.T) {
	t.Parallel()

	logs := &fakeLogRepo{purgeErr: errors.New("db down")}
	sweeper, err := NewRetentionSweeper(logs, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewRetentionSweeper() error = %v", err)
	}

	if err := sweeper.sweep(context.Background()); err == nil {
		t.Fatal("sweep() should propagate purge errors")
	}
}

func TestRetentionStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	sweeper, err := NewRetentionSweeper(&fakeLogRepo{}, time.Hour, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewRetentionSweeper() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not stop after cancel")
	}
}
