package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sorengranfeldt/mre/internal/logging"
)

// DefaultTimeout bounds a single run.
const DefaultTimeout = 5 * time.Minute

type TaskNotFoundError struct {
	Name string
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("no task named '%s'", e.Name)
}

type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*RunnableTask
	wg    sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{tasks: make(map[string]*RunnableTask)}
}

// Register adds a task. With interval > 0 the task runs on every tick until
// ctx is done.
func (m *Manager) Register(ctx context.Context, name string, interval time.Duration, fn TaskFunc) {
	task := &RunnableTask{
		Name:         name,
		Interval:     interval,
		Timeout:      DefaultTimeout,
		Handler:      fn,
		registeredAt: time.Now(),
	}

	m.mu.Lock()
	m.tasks[name] = task
	m.mu.Unlock()

	if interval > 0 {
		m.wg.Add(1)
		go m.scheduler(ctx, task)
	}
}

func (m *Manager) get(name string) (*RunnableTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[name]
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	return task, nil
}

// Trigger starts a run in the background.
func (m *Manager) Trigger(name string) error {
	task, err := m.get(name)
	if err != nil {
		return err
	}
	go func() {
		_ = task.Run(context.Background())
	}()
	return nil
}

// RunNow runs the task and waits for it.
func (m *Manager) RunNow(ctx context.Context, name string) error {
	task, err := m.get(name)
	if err != nil {
		return err
	}
	return task.Run(ctx)
}

func (m *Manager) ListStatus() []TaskStatus {
	m.mu.RLock()
	list := make([]TaskStatus, 0, len(m.tasks))
	for _, task := range m.tasks {
		list = append(list, task.Status())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (m *Manager) GetLogs(name string) ([]logging.Entry, error) {
	task, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return task.Logs(), nil
}

// Wait blocks until all schedulers have stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) scheduler(ctx context.Context, task *RunnableTask) {
	defer m.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = task.Run(ctx)
		}
	}
}
