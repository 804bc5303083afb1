// Package worker runs background jobs on a fixed set of goroutines. Jobs that
// share a key always land on the same goroutine and run in submission order.
package worker

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"smartnotes/internal/platform/metrics"
)

// Job is a unit of background work.
type Job func(ctx context.Context)

type keyedJob struct {
	key string
	job Job
}

// Options configures Dispatcher.
type Options struct {
	Workers    int
	QueueSize  int           // per worker
	JobTimeout time.Duration // 0 disables the per-job deadline
	Logger     *slog.Logger
}

// DefaultOptions returns sane defaults.
func DefaultOptions() Options {
	return Options{Workers: 4, QueueSize: 100, JobTimeout: 5 * time.Minute}
}

// Dispatcher routes jobs to worker goroutines keeping per-key order.
type Dispatcher struct {
	opts   Options
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	chans  []chan keyedJob
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers. Jobs receive a context derived from ctx.
func NewDispatcher(ctx context.Context, opts Options) *Dispatcher {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		opts:  opts,
		log:   log.With(slog.String("component", "worker")),
		chans: make([]chan keyedJob, opts.Workers),
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := range d.chans {
		d.chans[i] = make(chan keyedJob, opts.QueueSize)
		d.wg.Add(1)
		go d.worker(d.chans[i])
	}
	return d
}

// Submit enqueues job without blocking. It returns false when the worker
// queue for key is full or the dispatcher is stopped.
func (d *Dispatcher) Submit(key string, job func(ctx context.Context)) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.chans[d.index(key)] <- keyedJob{key: key, job: job}:
		metrics.QueueDepth.Inc()
		return true
	default:
		d.log.Warn("worker queue full, job dropped", slog.String("key", key))
		return false
	}
}

// Stop stops accepting jobs and waits for queued jobs to finish or ctx to
// expire. Running jobs are canceled when ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.chans {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.chans)))
}

func (d *Dispatcher) worker(in <-chan keyedJob) {
	defer d.wg.Done()
	for item := range in {
		metrics.QueueDepth.Dec()
		d.run(item)
	}
}

func (d *Dispatcher) run(item keyedJob) {
	ctx := d.ctx
	if d.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("job panicked", slog.String("key", item.key), slog.Any("panic", r))
		}
	}()
	item.job(ctx)
}
