package qoptim

import (
	"time"

	"github.com/theapemachine/errnie"
)

// job is a session waiting for, or held by, a worker.
type job struct {
	session  *Session
	enqueued time.Time
}

// Worker runs sessions handed to it by the pool, one at a time.
type Worker struct {
	id   int
	pool *Pool
	jobs chan job
}

/*
run offers the worker's job channel to the pool, waits for the session the
pool sends down it, runs that session to completion and repeats until the
pool shuts down. A session that has started is never abandoned.
*/
func (w *Worker) run() {
	for {
		select {
		case <-w.pool.ctx.Done():
			return
		case w.pool.workers <- w.jobs:
		}

		select {
		case <-w.pool.ctx.Done():
			return
		case j := <-w.jobs:
			w.process(j)
		}
	}
}

func (w *Worker) process(j job) {
	errnie.Debug(
		"Worker.process - worker %d took %s after %s in queue",
		w.id, j.session.ID, time.Since(j.enqueued),
	)

	started := time.Now()
	result, err := j.session.Run(w.pool.ctx)

	iterations := 0
	if result != nil {
		iterations = result.Iterations
	}

	w.pool.metrics.recordSession(started, iterations, err)
	w.pool.space.Store(j.session.ID, result, err)
}
