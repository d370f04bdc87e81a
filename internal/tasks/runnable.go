package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sorengranfeldt/mre/internal/logging"
)

type RunnableTask struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Handler  TaskFunc

	registeredAt time.Time

	mu         sync.RWMutex
	running    bool
	runs       int
	lastRun    time.Time
	lastResult string
	logs       *logging.Recorder
}

// Run executes the handler unless a run is already in progress. It returns
// the handler's error.
func (t *RunnableTask) Run(ctx context.Context) error {
	t.mu.Lock()

	l := log.With().Str("task", t.Name).Logger()

	if t.running {
		t.mu.Unlock()
		l.Warn().Msg("task is already running, skipping execution")
		return nil
	}
	t.running = true
	rec := logging.NewRecorder()
	t.logs = rec
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.runs++
		t.lastRun = time.Now()
		t.mu.Unlock()
	}()

	taskLogger := logging.NewCompositeLogger(rec, l)
	taskLogger.Info("starting task execution")

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := t.Handler(ctx, taskLogger)
	duration := time.Since(start)

	t.mu.Lock()
	if err != nil {
		t.lastResult = fmt.Sprintf("failed: %v", err)
	} else {
		t.lastResult = ResultSuccess
	}
	t.mu.Unlock()

	if err != nil {
		taskLogger.Error("task failed after %s: %v", duration, err)
	} else {
		taskLogger.Info("task completed successfully in %s", duration)
	}
	return err
}

func (t *RunnableTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var nextTime time.Time
	if t.Interval > 0 {
		if !t.lastRun.IsZero() {
			nextTime = t.lastRun.Add(t.Interval)
		} else {
			nextTime = t.registeredAt.Add(t.Interval)
		}
	}

	return TaskStatus{
		Name:       t.Name,
		Running:    t.running,
		Runs:       t.runs,
		LastRun:    t.lastRun,
		LastResult: t.lastResult,
		NextRun:    nextTime,
	}
}

// Logs returns the output of the latest run.
func (t *RunnableTask) Logs() []logging.Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.logs == nil {
		return nil
	}
	return t.logs.Entries()
}
