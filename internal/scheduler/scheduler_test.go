package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsImmediately(t *testing.T) {
	var runs atomic.Int32
	s := New([]Task{{
		Name:     "metrics",
		Interval: time.Hour, // Long interval, only the immediate run fires.
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("task never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_FailureIsolation(t *testing.T) {
	var failing, healthy atomic.Int32
	s := New([]Task{
		{
			Name:     "bad",
			Interval: 10 * time.Millisecond,
			Run: func(context.Context) error {
				failing.Add(1)
				if failing.Load()%2 == 0 {
					panic("task bug")
				}
				return errors.New("boom")
			},
		},
		{
			Name:     "good",
			Interval: 10 * time.Millisecond,
			Run: func(context.Context) error {
				healthy.Add(1)
				return nil
			},
		},
	}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for failing.Load() < 3 || healthy.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("loops stalled: failing=%d healthy=%d", failing.Load(), healthy.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_StopCancelsTaskContext(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})

	s := New([]Task{{
		Name:     "blocking",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	}}, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
}
