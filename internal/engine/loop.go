package engine

import (
	"context"
	"fmt"
)

// Run drains queued operations on the calling goroutine until ctx is
// cancelled or Stop is called. Either way the queue is closed first and the
// operations already queued still run, so no Do caller is left waiting.
//
// An operation error is logged and the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "engine", e.id)

	for {
		if op, ok := e.queue.TryDequeue(); ok {
			e.runOp(op)
			continue
		}

		if e.queue.Closed() {
			e.logger.Info("engine stopping: queue closed", "engine", e.id)
			return nil
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "engine", e.id)
			e.queue.Close()
			e.drain()
			return ctx.Err()
		case <-e.queue.Wait():
		}
	}
}

// drain runs whatever was queued before the queue closed.
func (e *Engine) drain() {
	for {
		op, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		e.runOp(op)
	}
}

func (e *Engine) runOp(op Op) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine operation panicked", "engine", e.id, "panic", fmt.Sprint(r))
		}
	}()
	if err := op(e); err != nil {
		e.logger.Warn("engine operation failed", "engine", e.id, "error", err)
	}
}

// Stop closes the queue. Run returns once the remaining operations ran.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Enqueue schedules op on the Run goroutine. Safe from any goroutine.
// Returns false once the engine is stopped.
func (e *Engine) Enqueue(op Op) bool {
	return e.queue.Enqueue(op)
}

// Do schedules op and waits for its result. Safe from any goroutine except
// the one running Run. If ctx ends first the operation may still run later.
func (e *Engine) Do(ctx context.Context, op Op) error {
	done := make(chan error, 1)
	ok := e.queue.Enqueue(func(e *Engine) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("operation panicked: %v", r)
			}
			done <- err
		}()
		return op(e)
	})
	if !ok {
		return newStoppedError()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueLen returns the number of operations waiting to run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}
