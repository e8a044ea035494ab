package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a collection of goroutines sharing one cancellable context. Stop cancels the
// context and waits for every worker to return.
type StoppableWorkers struct {
	mu         sync.Mutex
	ctx        context.Context
	cancelFunc func()
	workers    sync.WaitGroup
}

// NewStoppableWorkers runs the functions in separate goroutines, each handed a context derived
// from `parent`.
func NewStoppableWorkers(parent context.Context, funcs ...func(context.Context)) *StoppableWorkers {
	ctx, cancelFunc := context.WithCancel(parent)
	sw := &StoppableWorkers{ctx: ctx, cancelFunc: cancelFunc}
	sw.Add(funcs...)
	return sw
}

// Add starts one more goroutine per function. It is a no-op after Stop.
func (sw *StoppableWorkers) Add(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ctx.Err() != nil {
		return
	}

	sw.workers.Add(len(funcs))
	for _, f := range funcs {
		f := f
		goutils.PanicCapturingGo(func() {
			defer sw.workers.Done()
			f(sw.ctx)
		})
	}
}

// Stop cancels the workers' context and blocks until all of them have returned.
func (sw *StoppableWorkers) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cancelFunc()
	sw.workers.Wait()
}

// Context returns the context the workers observe.
func (sw *StoppableWorkers) Context() context.Context {
	return sw.ctx
}
