// Package utils holds small pieces of infrastructure shared across the
// session front-end that don't belong to any one protocol concern.
package utils

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction processes one queued task; an error return is fatal
// to the supervising tomb.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool keeps a fixed number of goroutines draining a shared task
// channel until the supervising tomb starts dying.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a unit of work for the pool to pick up.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup spawns and replenishes the pool's workers under t until t dies.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", pool.n).Msg("starting worker pool")
	var active atomic.Int32
	for {
		select {
		case <-t.Dying():
			return
		default:
			if int(active.Load()) < pool.n {
				t.Go(func() error {
					err := pool.worker(t, work)
					active.Add(-1)
					return err
				})
				active.Add(1)
			}
		}
	}
}

func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting")
			return err
		}
	}
	return nil
}
