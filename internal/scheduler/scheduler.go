package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is a named periodic job. Run is invoked once per interval with a
// context that is cancelled on shutdown.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives a fixed set of tasks, each in its own long-lived
// loop. Tasks are independent: an error or panic in one iteration is
// logged and the loop keeps running, and one task never stalls another.
type Scheduler struct {
	tasks  []Task
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for the given tasks.
func New(tasks []Task, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{tasks: tasks, logger: logger}
}

// Start launches one loop per task. Each task runs once immediately and
// then on its interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.run(task)

		s.logger.Info("task scheduled",
			"task", task.Name,
			"interval", task.Interval,
		)
	}
	return nil
}

// Stop cancels all task loops and waits for in-flight iterations to
// finish, bounded by the given context.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.iterate(task)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.iterate(task)
		}
	}
}

// iterate runs one task invocation. A panic is contained here so a bug
// in one task cannot take the process down.
func (s *Scheduler) iterate(task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", task.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := task.Run(s.ctx); err != nil {
		s.logger.Warn("task failed",
			"task", task.Name,
			"duration", time.Since(start),
			"err", err,
		)
		return
	}

	s.logger.Debug("task complete",
		"task", task.Name,
		"duration", time.Since(start),
	)
}
