// Package pool implements the fixed-size worker pool that runs client
// sessions. Tasks are queued in a bounded-in-practice FIFO and picked up by
// workers blocked on a condition variable; destruction supports draining the
// queue (Wait) or abandoning it (Immediate).
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/RoseWrightdev/chatroomd/internal/v1/logging"
	"github.com/RoseWrightdev/chatroomd/internal/v1/metrics"
	"go.uber.org/zap"
)

// Mode selects the destruction policy.
type Mode int

const (
	// Wait blocks until every queued task has been handed to a worker, then
	// stops the workers.
	Wait Mode = iota
	// Immediate stops the workers without draining the queue.
	Immediate
)

// Task is a unit of deferred execution.
type Task func()

// ErrShuttingDown is returned by Submit once destruction has begun.
var ErrShuttingDown = errors.New("pool: shutting down")

// Pool is a fixed set of workers consuming a FIFO submission queue.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	drained  *sync.Cond
	queue    []Task
	closed   bool // Submit refused
	stopping bool // workers exit
	wg       sync.WaitGroup
}

// New starts a pool with the given number of workers.
func New(workers int) *Pool {
	p := &Pool{}
	p.notEmpty = sync.NewCond(&p.mu)
	p.drained = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit appends a task to the queue and wakes one waiter. It fails once
// destruction has begun.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("pool: nil task")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrShuttingDown
	}

	p.queue = append(p.queue, task)
	metrics.PoolQueueDepth.Set(float64(len(p.queue)))
	p.notEmpty.Signal()

	return nil
}

// Depth reports the number of queued tasks. Used by readiness checks.
func (p *Pool) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Destroy closes the submission side, stops the workers per mode, and joins
// them. It is safe to call once.
func (p *Pool) Destroy(mode Mode) {
	p.mu.Lock()
	p.closed = true

	if mode == Wait {
		for len(p.queue) > 0 {
			p.drained.Wait()
		}
	} else {
		dropped := len(p.queue)
		if dropped > 0 {
			logging.Warn(context.Background(), "Abandoning queued tasks", zap.Int("count", dropped))
		}
		p.queue = nil
	}
	metrics.PoolQueueDepth.Set(0)

	p.stopping = true
	p.notEmpty.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		for len(p.queue) == 0 && !p.stopping {
			p.notEmpty.Wait()
		}
		if p.stopping {
			p.mu.Unlock()
			return
		}

		task := p.queue[0]
		p.queue = p.queue[1:]
		metrics.PoolQueueDepth.Set(float64(len(p.queue)))
		if len(p.queue) == 0 {
			p.drained.Broadcast()
		}
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
	}
}

// run invokes a task with panic isolation: a faulting task must not kill its
// worker.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(context.Background(), "Recovered from panic in pool task", zap.Any("panic", r))
		}
	}()
	task()
}
