package downloader

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"xcscraper/pkg/logger"
	"xcscraper/pkg/xenocanto"
)

// DefaultConcurrency is the worker count when none is configured
const DefaultConcurrency = 5

// Recorder receives every download outcome as it happens. Implementations
// must be safe for concurrent use.
type Recorder interface {
	Record(Outcome)
}

// DispatchResult summarizes a batch. Succeeded includes skipped files.
type DispatchResult struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Dispatcher downloads batches of recordings with bounded concurrency
type Dispatcher struct {
	downloader  Downloader
	concurrency int
	logger      logger.Logger
}

// NewDispatcher creates a dispatcher running up to concurrency downloads at once
func NewDispatcher(d Downloader, concurrency int, log logger.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Dispatcher{downloader: d, concurrency: concurrency, logger: log}
}

type job struct {
	index int
	rec   xenocanto.Recording
}

// Dispatch downloads every record exactly once and returns when all of them
// are done. A panicking download counts as a failure for that record only.
// recorder may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, records []xenocanto.Recording, targetDir string, recorder Recorder) DispatchResult {
	if len(records) == 0 {
		return DispatchResult{}
	}

	var succeeded, skipped, failed int64
	start := time.Now()

	workers := d.concurrency
	if workers > len(records) {
		workers = len(records)
	}

	pool := NewWorkerPool(workers, func(workerID int, j job) {
		out := d.run(ctx, workerID, j, targetDir)
		switch out.Status {
		case StatusSuccess:
			atomic.AddInt64(&succeeded, 1)
		case StatusSkipped:
			atomic.AddInt64(&succeeded, 1)
			atomic.AddInt64(&skipped, 1)
		default:
			atomic.AddInt64(&failed, 1)
		}
		if recorder != nil {
			recorder.Record(out)
		}
	})

	pool.Start()
	for i, rec := range records {
		pool.Submit(job{index: i, rec: rec})
	}
	pool.Stop()

	result := DispatchResult{
		Succeeded: int(atomic.LoadInt64(&succeeded)),
		Skipped:   int(atomic.LoadInt64(&skipped)),
		Failed:    int(atomic.LoadInt64(&failed)),
	}

	d.logger.InfoWithFields("Batch downloaded", map[string]interface{}{
		"records":   len(records),
		"succeeded": result.Succeeded,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"workers":   workers,
		"duration":  time.Since(start),
	})
	return result
}

// run performs one download and turns a panic into a failed outcome
func (d *Dispatcher) run(ctx context.Context, workerID int, j job, targetDir string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorWithFields("Download worker panicked", map[string]interface{}{
				"worker_id":    workerID,
				"index":        j.index,
				"recording_id": j.rec.ID(),
				"panic":        fmt.Sprint(r),
				"stack":        string(debug.Stack()),
			})
			out = Outcome{
				RecordingID: j.rec.ID(),
				Status:      StatusFailed,
				Err:         fmt.Errorf("download panicked: %v", r),
			}
		}
	}()

	return d.downloader.Download(ctx, j.rec, targetDir)
}
