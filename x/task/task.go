// Package task runs one cancellable body on its own goroutine. Cancellation
// is cooperative: the body observes ctx at its own suspension points, and
// Stop always waits for the body to return.
package task

import (
	"context"
	"errors"
	"fmt"
)

type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Go starts fn under a child of parent.
func Go(parent context.Context, name string, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task %s: panic: %v", name, r)
			}
		}()
		t.err = fn(ctx)
	}()
	return t
}

func (t *Task) Name() string          { return t.name }
func (t *Task) Done() <-chan struct{} { return t.done }
func (t *Task) Cancel()               { t.cancel() }

func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the body returns. Context cancellation is the expected
// way for a task to end and is reported as nil.
func (t *Task) Wait() error {
	<-t.done
	if errors.Is(t.err, context.Canceled) {
		return nil
	}
	return t.err
}

// Stop cancels the task and waits for it. Stopping a finished task is a no-op.
func (t *Task) Stop() error {
	if t == nil {
		return nil
	}
	t.cancel()
	return t.Wait()
}
