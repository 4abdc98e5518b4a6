// Package worker runs batches of independent jobs on a bounded set of
// goroutines.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of work.
type Job struct {
	// Index is the job's position in the submitted batch, carried
	// through to the Result so callers can reassemble outputs in
	// submission order.
	Index int
	// ID tags the job in logs.
	ID string
	// Execute does the work. The context is the pool's, canceled when
	// the pool closes.
	Execute func(ctx context.Context) (interface{}, error)
}

// Result is the outcome of one executed Job.
type Result struct {
	Index int
	JobID string
	// Value is nil when Err is set.
	Value interface{}
	Err   error
}

// Pool runs jobs on a fixed number of worker goroutines fed from a shared
// queue.
type Pool struct {
	workers  int
	jobQueue chan Job
	results  chan Result
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	closeOne sync.Once
}

// NewPool starts workers immediately. queueSize buffers both the job queue
// and the results channel; zero means unbuffered.
func NewPool(ctx context.Context, workers int, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	poolCtx, cancel := context.WithCancel(ctx)

	p := &Pool{
		workers:  workers,
		jobQueue: make(chan Job, queueSize),
		results:  make(chan Result, queueSize),
		ctx:      poolCtx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobQueue:
			value, err := job.Execute(p.ctx)
			// Every accepted job produces exactly one result. Block
			// until the result is consumed or the pool shuts down.
			select {
			case p.results <- Result{Index: job.Index, JobID: job.ID, Value: value, Err: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues one job, blocking while the queue is full. It fails only
// when the pool or its parent context is done.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobQueue <- job:
		return nil
	}
}

// SubmitAndWait submits the jobs and waits for one result per accepted job.
// Submission and collection run concurrently, so the batch may be larger than
// the queue buffer. Results arrive in completion order, not submission order;
// use Result.Index to reorder. Intended for a single waiter per pool.
func (p *Pool) SubmitAndWait(jobs []Job) []Result {
	submitted := make(chan int, 1)
	go func() {
		accepted := 0
		for _, job := range jobs {
			if err := p.Submit(job); err != nil {
				// Context cancelled, stop submitting
				break
			}
			accepted++
		}
		submitted <- accepted
	}()

	results := make([]Result, 0, len(jobs))
	want := -1
	for want < 0 || len(results) < want {
		select {
		case <-p.ctx.Done():
			return results
		case n := <-submitted:
			want = n
		case result := <-p.results:
			results = append(results, result)
		}
	}

	return results
}

// Results exposes the result stream for callers that consume outcomes as
// they complete instead of waiting on a whole batch.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting jobs, waits for the workers to exit and closes the
// results channel. Jobs still queued at close time are abandoned. Safe to
// call more than once.
func (p *Pool) Close() {
	p.closeOne.Do(func() {
		p.cancel()
		p.wg.Wait()
		close(p.results)
	})
}

// Workers reports the pool's worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// QueueLen reports how many jobs are waiting for a worker.
func (p *Pool) QueueLen() int {
	return len(p.jobQueue)
}
