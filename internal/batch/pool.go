package batch

import (
	"context"
	"runtime"
	"sync"
)

// maxWorkers is the default pool size.
var maxWorkers = runtime.NumCPU()

// WorkerPool distributes jobs across a fixed number of goroutines and
// collects their results.
type WorkerPool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
}

// NewWorkerPool creates a pool. numWorkers <= 0 selects one worker per
// CPU; the pool never has more workers than numJobs when numJobs > 0.
func NewWorkerPool[Job any, Result any](numWorkers, numJobs int) *WorkerPool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = maxWorkers
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}
	return &WorkerPool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, max(numJobs, 0)),
		results:    make(chan Result, max(numJobs, 0)),
	}
}

// Workers returns the number of goroutines the pool runs.
func (p *WorkerPool[Job, Result]) Workers() int { return p.numWorkers }

// Start launches the workers. workerFn is called once per job.
func (p *WorkerPool[Job, Result]) Start(workerFn func(Job) Result) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- workerFn(job)
			}
		}()
	}
}

// Submit queues a job.
func (p *WorkerPool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close stops accepting jobs. Results is closed once every worker is done.
func (p *WorkerPool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the channel of worker outputs.
func (p *WorkerPool[Job, Result]) Results() <-chan Result {
	return p.results
}

type indexed[T any] struct {
	i int
	v T
}

// Map runs fn over items on a pool of workers and returns the results in
// input order. Once ctx is done, items not yet started are skipped and
// left as the zero Out, and Map returns ctx.Err() with the partial results.
func Map[In any, Out any](ctx context.Context, workers int, items []In, fn func(context.Context, In) Out) ([]Out, error) {
	out := make([]Out, len(items))
	if len(items) == 0 {
		return out, ctx.Err()
	}

	pool := NewWorkerPool[indexed[In], indexed[Out]](workers, len(items))
	pool.Start(func(job indexed[In]) indexed[Out] {
		var zero Out
		if ctx.Err() != nil {
			return indexed[Out]{i: -1, v: zero}
		}
		return indexed[Out]{i: job.i, v: fn(ctx, job.v)}
	})
	for i, item := range items {
		pool.Submit(indexed[In]{i: i, v: item})
	}
	pool.Close()

	for r := range pool.Results() {
		if r.i >= 0 {
			out[r.i] = r.v
		}
	}
	return out, ctx.Err()
}
