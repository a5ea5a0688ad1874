// Package worker runs negotiation actions on a fixed set of goroutines so
// connection read loops never execute storage calls themselves.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Job is a unit of work.  It receives the context it was submitted with.
type Job func(ctx context.Context)

type task struct {
	ctx context.Context
	job Job
}

// Pool is a bounded goroutine pool with a queue.
type Pool struct {
	tasks chan task
	log   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts size workers reading from a queue of length queue.
func New(size, queue int, log zerolog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{tasks: make(chan task, queue), log: log.With().Str("component", "worker_pool").Logger()}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.exec(t)
	}
}

func (p *Pool) exec(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("job panicked")
		}
	}()
	t.job(t.ctx)
}

// Submit queues job, blocking while the queue is full.  waitCtx bounds only
// the wait for a queue slot; the job itself runs with jobCtx.
func (p *Pool) Submit(waitCtx, jobCtx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task{ctx: jobCtx, job: job}:
		return nil
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
