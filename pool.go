package qoptim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

/*
Pool runs optimization sessions on a fixed set of worker goroutines. Sessions
are queued by Submit and paired with the next idle worker by a manager
goroutine; results land in the pool's ResultSpace under the session id.

Sessions share nothing, so the pool needs no coordination beyond handing
them out.
*/
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers chan chan job
	jobs    chan job
	space   *ResultSpace
	metrics *Metrics
	config  *Config
}

func NewPool(ctx context.Context, config *Config) *Pool {
	if config == nil {
		config = NewConfig()
	}

	workers := max(config.Workers, 1)
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		ctx:     ctx,
		cancel:  cancel,
		workers: make(chan chan job, workers),
		jobs:    make(chan job, workers*10),
		space:   NewResultSpace(config.ResultCapacity, config.ResultTTL),
		metrics: newMetrics(),
		config:  config,
	}

	for i := range workers {
		p.startWorker(i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.manage()
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.collectMetrics()
	}()

	errnie.Info("NewPool - %d workers", workers)
	return p
}

func (p *Pool) manage() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			select {
			case <-p.ctx.Done():
				p.space.Store(j.session.ID, nil, ErrPoolClosed)
				return
			case workerJobs := <-p.workers:
				select {
				case workerJobs <- j:
				case <-p.ctx.Done():
					p.space.Store(j.session.ID, nil, ErrPoolClosed)
					return
				}
			case <-time.After(p.schedulingTimeout()):
				errnie.Warn("Pool.manage - no worker free for session %s", j.session.ID)
				p.metrics.recordSchedulingFailure()
				p.space.Store(j.session.ID, nil, fmt.Errorf(
					"%w: no worker free for session %s", ErrSchedulingTimeout, j.session.ID,
				))
			}
		}
	}
}

func (p *Pool) collectMetrics() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.metrics.setQueueSize(len(p.jobs))
		}
	}
}

/*
Submit queues a session and returns the channel its result will arrive on.
Queueing itself gives up after the configured scheduling timeout, in which
case the channel carries ErrSchedulingTimeout.
*/
func (p *Pool) Submit(session *Session) chan SessionValue {
	if err := p.ctx.Err(); err != nil {
		return failed(fmt.Errorf("%w: %w", ErrPoolClosed, err))
	}

	result := p.space.Await(session.ID)

	ctx, cancel := context.WithTimeout(p.ctx, p.schedulingTimeout())
	defer cancel()

	select {
	case p.jobs <- job{session: session, enqueued: time.Now()}:
		return result
	case <-ctx.Done():
		p.metrics.recordSchedulingFailure()
		err := fmt.Errorf("%w: queue full for session %s", ErrSchedulingTimeout, session.ID)
		if p.ctx.Err() != nil {
			err = ErrPoolClosed
		}
		p.space.Store(session.ID, nil, err)
		return result
	}
}

func (p *Pool) Results() *ResultSpace {
	return p.space
}

func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

func (p *Pool) startWorker(id int) {
	w := &Worker{
		id:   id,
		pool: p,
		jobs: make(chan job),
	}

	p.metrics.mu.Lock()
	p.metrics.WorkerCount++
	p.metrics.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.run()
	}()
}

func (p *Pool) schedulingTimeout() time.Duration {
	if p.config.SchedulingTimeout > 0 {
		return p.config.SchedulingTimeout
	}
	return 5 * time.Second
}

/*
Close stops accepting work, lets running sessions finish and waits for every
goroutine. Anyone still awaiting a result receives ErrPoolClosed.
*/
func (p *Pool) Close() {
	if p == nil {
		return
	}

	errnie.Info("Pool.Close - shutting down")

	p.cancel()
	p.wg.Wait()
	p.space.Close()

	errnie.Info("Pool.Close - closed")
}

func failed(err error) chan SessionValue {
	ch := make(chan SessionValue, 1)
	ch <- SessionValue{Error: err, CreatedAt: time.Now()}
	close(ch)
	return ch
}
