package pipelines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Flow orchestrates task execution with dependency management
type Flow struct {
	name   string
	fields []zap.Field
	tasks  map[string]*task
	order  []string
}

type task struct {
	name    string
	fn      func() error
	deps    []string
	done    bool
	running bool
	err     error
}

// NewFlow creates a new pipeline flow. fields (run_id, sheet) are attached to every log line.
func NewFlow(name string, fields ...zap.Field) *Flow {
	return &Flow{
		name:   name,
		fields: fields,
		tasks:  make(map[string]*task),
	}
}

// AddTask adds a task to the flow with optional dependencies
func (f *Flow) AddTask(name string, fn func() error, deps ...string) {
	f.tasks[name] = &task{
		name: name,
		fn:   fn,
		deps: deps,
	}
	f.order = append(f.order, name)
}

// Run executes all tasks in dependency order. Cancellation is checked before
// each round; running tasks are not interrupted.
func (f *Flow) Run(ctx context.Context) error {
	logger := zap.L().With(zap.String("pipeline", f.name)).With(f.fields...)
	startTime := time.Now()

	taskNames := append([]string(nil), f.order...)
	logger.Info("pipeline started",
		zap.Int("task_count", len(f.tasks)),
		zap.Strings("tasks", taskNames))

	var mu sync.Mutex
	completedCount := 0

	for {
		if err := ctx.Err(); err != nil {
			logger.Error("pipeline cancelled",
				zap.Duration("duration", time.Since(startTime)),
				zap.Int("tasks_completed", completedCount),
				zap.Error(err))
			return err
		}

		ready := f.findReadyTasks()
		if len(ready) == 0 {
			if f.allDone() {
				logger.Info("pipeline completed",
					zap.Duration("duration", time.Since(startTime)),
					zap.Int("tasks_completed", completedCount))
				return nil
			}
			for _, name := range f.order {
				if t := f.tasks[name]; t.err != nil {
					return t.err
				}
			}
			return fmt.Errorf("pipeline %s: deadlock detected", f.name)
		}

		// Run ready tasks in parallel
		var wg sync.WaitGroup
		errChan := make(chan error, len(ready))

		for _, t := range ready {
			t.running = true
			wg.Add(1)
			go func(t *task) {
				defer wg.Done()
				taskStart := time.Now()
				logger.Info("step started", zap.String("step", t.name))

				if err := t.fn(); err != nil {
					t.err = fmt.Errorf("%s: %w", t.name, err)
					errChan <- t.err
					logger.Error("step failed",
						zap.String("step", t.name),
						zap.Error(err),
						zap.Duration("duration", time.Since(taskStart)))
				} else {
					t.done = true
					mu.Lock()
					completedCount++
					mu.Unlock()
					logger.Info("step completed",
						zap.String("step", t.name),
						zap.Duration("duration", time.Since(taskStart)))
				}
				t.running = false
			}(t)
		}

		wg.Wait()
		close(errChan)

		for err := range errChan {
			if err != nil {
				logger.Error("pipeline failed",
					zap.Duration("duration", time.Since(startTime)),
					zap.Int("tasks_completed", completedCount),
					zap.Error(err))
				return err
			}
		}
	}
}

// Steps returns task names in the order they were added
func (f *Flow) Steps() []string {
	return append([]string(nil), f.order...)
}

func (f *Flow) findReadyTasks() []*task {
	var ready []*task
	for _, name := range f.order {
		t := f.tasks[name]
		if t.done || t.running || t.err != nil {
			continue
		}
		allDepsDone := true
		for _, dep := range t.deps {
			if dt, ok := f.tasks[dep]; !ok || !dt.done {
				allDepsDone = false
				break
			}
		}
		if allDepsDone {
			ready = append(ready, t)
		}
	}
	return ready
}

func (f *Flow) allDone() bool {
	for _, t := range f.tasks {
		if !t.done {
			return false
		}
	}
	return true
}
