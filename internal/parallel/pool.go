package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Task is one unit of work. A non-nil error is reported by ExecuteAll.
type Task func() error

// WorkerPool is a pool of goroutines that execute batches of tasks.
//
// The pool distributes tasks across workers, each with its own queue.
// Workers steal from other queues when their own is empty, which balances
// batches where some tasks are much slower than others.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return
		case work := <-myQueue:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				work()
			}
		}
	}
}

func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

// steal takes one queued item from another worker, or returns nil.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll runs every task and waits for all of them. Errors are joined
// in task order; a panicking task is reported as an error instead of
// crashing the worker. On a closed pool the tasks run on the caller's
// goroutine.
func (p *WorkerPool) ExecuteAll(tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	errs := make([]error, len(tasks))

	if !p.running.Load() {
		for i, t := range tasks {
			errs[i] = run(t)
		}
		return errors.Join(errs...)
	}

	var completion sync.WaitGroup
	completion.Add(len(tasks))
	for i, t := range tasks {
		work := func() {
			defer completion.Done()
			errs[i] = run(t)
		}
		select {
		case p.workQueues[i%p.workers] <- work:
		case <-p.done:
			work()
		}
	}
	completion.Wait()
	return errors.Join(errs...)
}

func run(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parallel: task panicked: %v", r)
		}
	}()
	return t()
}

// Close gracefully shuts down the pool.
// It stops accepting new work, waits for all queued work to complete,
// and then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
