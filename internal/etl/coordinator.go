package etl

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/marketlens/backend/pkg/logger"
)

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Coordinator struct {
	workers int
}

func NewCoordinator(workers int) *Coordinator {
	if workers <= 0 {
		workers = 3
	}
	return &Coordinator{workers: workers}
}

// Run executes the tasks across the worker pool and returns per-task errors.
// A panicking task is reported as a failed task; it never takes the pool down.
// Tasks not yet started when ctx expires fail with the context error.
func (c *Coordinator) Run(ctx context.Context, tasks []Task) map[string]error {
	results := make([]error, len(tasks))
	queue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				results[idx] = c.runTask(ctx, tasks[idx])
			}
		}()
	}

	for idx := range tasks {
		queue <- idx
	}
	close(queue)
	wg.Wait()

	out := make(map[string]error, len(tasks))
	for idx, task := range tasks {
		out[task.Name] = results[idx]
	}
	return out
}

func (c *Coordinator) runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Extraction task panicked",
				zap.String("task", task.Name),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return task.Run(ctx)
}
