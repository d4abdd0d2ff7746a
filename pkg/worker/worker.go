// ABOUTME: Named execution context backed by a goroutine
// ABOUTME: Runs submitted jobs in order until termination is requested
package worker

import (
	"context"
	"errors"
	"log"
)

// ErrTerminated is returned when submitting to a terminated worker
var ErrTerminated = errors.New("worker terminated")

// Job is a unit of work. ctx is cancelled when the worker is asked to terminate,
// so long-running jobs (render loops) must return once it is done.
type Job func(ctx context.Context)

// Worker executes jobs sequentially on its own goroutine
type Worker struct {
	name   string
	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Start creates a worker and starts its goroutine
func Start(name string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		name:   name,
		jobs:   make(chan Job, 16),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go w.run()

	return w
}

// run is the worker main loop
func (w *Worker) run() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case job := <-w.jobs:
			w.execute(job)
		}
	}
}

// execute runs one job, keeping the worker alive if it panics
func (w *Worker) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %s: job panicked: %v", w.name, r)
		}
	}()
	job(w.ctx)
}

// Execute queues a job. It blocks while the queue is full.
func (w *Worker) Execute(job Job) error {
	select {
	case <-w.ctx.Done():
		return ErrTerminated
	default:
	}

	select {
	case w.jobs <- job:
		return nil
	case <-w.ctx.Done():
		return ErrTerminated
	}
}

// RequestTermination cancels the running job, stops the worker and waits
// for its goroutine to exit. Queued jobs that have not started are dropped.
// Safe to call more than once.
func (w *Worker) RequestTermination() {
	w.cancel()
	<-w.done
}

// Name returns the worker name
func (w *Worker) Name() string {
	return w.name
}

// Done is closed once the worker goroutine has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
