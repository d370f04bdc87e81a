package tasks

import (
	"context"
	"time"

	"github.com/sorengranfeldt/mre/internal/logging"
)

// TaskFunc is the unit of work.
// The logger it receives keeps the output of the current run.
type TaskFunc func(ctx context.Context, logger logging.InternalLogger) error

type TaskStatus struct {
	Name       string    `json:"name,omitempty"`
	Running    bool      `json:"running,omitempty"`
	Runs       int       `json:"runs"`
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

const ResultSuccess = "success"
