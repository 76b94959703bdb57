// Package worker provides a small, tomb-supervised fixed-size worker
// pool. It is the teacher's internal/worker.go (a bare, un-importable
// file in package "server") promoted to its own package so both
// internal/net (connection handling) and internal/engine (nothing
// currently needs it there, but the shape is shared) can use it.
package worker

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// DefaultTaskQueueSize is the buffer size of a Pool's task channel
// when constructed with NewPool.
const DefaultTaskQueueSize = 100

// Func is the unit of work a Pool runs for each queued task. Returning
// a non-nil error kills the tomb, taking every other worker down with it
// (gopkg.in/tomb.v2 semantics) — a worker function should therefore
// return nil for recoverable, per-task failures and only propagate
// errors that mean the whole pool should stop.
type Func = func(t *tomb.Tomb, task any) error

// Pool runs up to n concurrent workers pulling tasks off a shared
// channel, supervised by a caller-owned tomb.Tomb.
type Pool struct {
	n     int
	tasks chan any
}

// NewPool creates a pool sized for n concurrent workers.
func NewPool(n int) *Pool {
	return &Pool{
		n:     n,
		tasks: make(chan any, DefaultTaskQueueSize),
	}
}

// AddTask enqueues a task for some worker to pick up. Blocks if the
// queue is full.
func (p *Pool) AddTask(task any) {
	p.tasks <- task
}

// Run starts n workers under t, each running work for every task it
// receives until t is dying. Run itself blocks until t is dying, so
// callers typically invoke it via t.Go.
func (p *Pool) Run(t *tomb.Tomb, work Func) {
	log.Info().Int("workers", p.n).Msg("worker pool starting")
	for i := 0; i < p.n; i++ {
		t.Go(func() error {
			return p.worker(t, work)
		})
	}
	<-t.Dying()
}

func (p *Pool) worker(t *tomb.Tomb, work Func) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("worker pool task failed fatally")
				return err
			}
		}
	}
}
