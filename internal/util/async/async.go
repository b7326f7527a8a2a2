package async

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Results maps task names to their errors. Successful tasks are absent.
type Results map[string]error

// Err joins all task errors in name order, or returns nil.
func (r Results) Err() error {
	if len(r) == 0 {
		return nil
	}
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, r[name]))
	}
	return errors.Join(errs...)
}

// RunAll executes tasks in parallel, waits for all of them and returns the
// failures keyed by task name. Task names should be unique; a later
// failure under the same name overwrites an earlier one.
//
// Example:
//
//	res := RunAll(ctx, []Task{
//	    {Name: "secret-store", Func: warm("secret-store")},
//	    {Name: "gateway", Func: warm("gateway")},
//	})
//	if err := res["gateway"]; err != nil { ... }
func RunAll(ctx context.Context, tasks []Task) Results {
	results := make(Results)
	if len(tasks) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task.Func(ctx); err != nil {
				mu.Lock()
				results[task.Name] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return results
}
