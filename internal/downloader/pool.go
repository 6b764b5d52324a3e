package downloader

import (
	"sync"
)

// WorkerPool runs a fixed number of workers over a job queue. A pool is
// single use: Start, Submit every job, then Stop to wait for the drain.
type WorkerPool[J any] struct {
	numWorkers int
	jobQueue   chan J
	handle     func(workerID int, job J)
	wg         sync.WaitGroup
}

// NewWorkerPool creates a pool of numWorkers calling handle for each job
func NewWorkerPool[J any](numWorkers int, handle func(workerID int, job J)) *WorkerPool[J] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[J]{
		numWorkers: numWorkers,
		jobQueue:   make(chan J, numWorkers*2),
		handle:     handle,
	}
}

// Start launches the workers
func (wp *WorkerPool[J]) Start() {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool[J]) Submit(job J) {
	wp.jobQueue <- job
}

// Stop closes the queue and waits until every submitted job has been handled
func (wp *WorkerPool[J]) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

// Size returns the number of workers
func (wp *WorkerPool[J]) Size() int {
	return wp.numWorkers
}

func (wp *WorkerPool[J]) worker(id int) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.handle(id, job)
	}
}
