package relayer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/internal/metrics"
	"github.com/omnivault/intent-relayer/pkg/queue"
)

// Engine supervises the relayer's long-running tasks: the consumer workers
// draining the queue, the completion poller, and the lease reclaimer. A
// worker that dies unexpectedly is logged and restarted rather than
// silently lost.
type Engine struct {
	queue       queue.Queue
	processor   *Processor
	poller      *Poller
	concurrency int
	idleWait    time.Duration
	reclaimTick time.Duration
	logger      *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	ready  atomic.Bool
}

// NewEngine creates a new relayer engine
func NewEngine(
	q queue.Queue,
	processor *Processor,
	poller *Poller,
	concurrency int,
	logger *zap.Logger,
) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		queue:       q,
		processor:   processor,
		poller:      poller,
		concurrency: concurrency,
		idleWait:    time.Second,
		reclaimTick: time.Minute,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Start starts the relayer engine
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Starting relayer engine", zap.Int("concurrency", e.concurrency))

	for i := 0; i < e.concurrency; i++ {
		e.wg.Add(1)
		go e.superviseWorker(ctx, i)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.poller.Run(ctx)
	}()

	e.wg.Add(1)
	go e.reclaimLoop(ctx)

	e.ready.Store(true)
	e.logger.Info("Relayer engine started")
	return nil
}

// IsReady reports whether the engine has started and is consuming
func (e *Engine) IsReady() bool {
	return e.ready.Load()
}

// Stop stops the relayer engine and waits for workers to drain
func (e *Engine) Stop() {
	e.logger.Info("Stopping relayer engine")
	e.ready.Store(false)
	close(e.stopCh)
	e.wg.Wait()
	e.logger.Info("Relayer engine stopped")
}

// superviseWorker restarts the consumer loop if it ever panics. The
// processor already isolates per-intent panics; this boundary catches
// anything that escapes it.
func (e *Engine) superviseWorker(ctx context.Context, id int) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		default:
		}

		if exited := e.runWorker(ctx, id); exited {
			return
		}
		e.logger.Error("Consumer worker crashed, restarting", zap.Int("worker", id))
		metrics.ErrorsTotal.WithLabelValues("engine", "worker_crash").Inc()
		time.Sleep(time.Second)
	}
}

// runWorker drains the queue until shutdown. It reports true on a clean
// exit and false if it was terminated by a panic.
func (e *Engine) runWorker(ctx context.Context, id int) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Worker panic", zap.Int("worker", id), zap.Any("panic", r))
			clean = false
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-e.stopCh:
			return true
		default:
		}

		processed, err := e.processor.ProcessNext(ctx)
		if err != nil {
			e.logger.Error("Queue fetch failed", zap.Int("worker", id), zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("engine", "fetch").Inc()
		}
		if !processed {
			// Empty queue or fetch error: back off before polling again.
			select {
			case <-ctx.Done():
				return true
			case <-e.stopCh:
				return true
			case <-time.After(e.idleWait):
			}
		}
	}
}

// reclaimLoop periodically returns expired leases to the pending pool and
// refreshes the queue depth gauge
func (e *Engine) reclaimLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.reclaimTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			if _, err := e.queue.ReclaimExpired(ctx); err != nil {
				e.logger.Error("Lease reclaim failed", zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues("engine", "reclaim").Inc()
			}
			if depth, err := e.queue.Depth(ctx); err == nil {
				metrics.QueueDepth.Set(float64(depth))
			}
		}
	}
}
