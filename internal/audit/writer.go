package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"sentrydesk/internal/metrics"
	"sentrydesk/internal/types"
)

// ErrQueueFullDropped is returned when a submission could not be queued
// and synchronous fallback is disabled by configuration.
var ErrQueueFullDropped = errors.New("audit: queue full, entry dropped")

type submission struct {
	entry  types.AuditEntry
	result chan submissionResult
}

type submissionResult struct {
	entry types.AuditEntry
	err   error
}

// WriterConfig configures the async writer's bounded-queue backpressure
// behavior (spec §4.8/§5).
type WriterConfig struct {
	QueueCapacity int
	SubmitTimeout time.Duration
	DrainDeadline time.Duration
	// OnFullSyncWrite selects the queue-full behavior: true writes
	// synchronously on the caller's goroutine, false drops the entry
	// and increments the drop counter.
	OnFullSyncWrite bool

	Logger  *zap.Logger
	Metrics metrics.Recorder
}

// Writer is the single background worker draining the bounded audit
// submission queue, per spec §5's "one bounded queue, one worker"
// invariant.
type Writer struct {
	ledger *Ledger
	cfg    WriterConfig

	queue chan submission
	wg    sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup // Submit calls that have claimed the right to send on queue
}

// NewWriter constructs and starts a Writer over ledger.
func NewWriter(ledger *Ledger, cfg WriterConfig) *Writer {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	w := &Writer{
		ledger: ledger,
		cfg:    cfg,
		queue:  make(chan submission, cfg.QueueCapacity),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) run() {
	defer w.wg.Done()
	for sub := range w.queue {
		w.cfg.Metrics.ObserveAuditQueueDepth(len(w.queue))
		entry, err := w.ledger.Append(context.Background(), sub.entry)
		if err != nil {
			w.cfg.Logger.Error("audit append failed", zap.Error(err))
		}
		sub.result <- submissionResult{entry: entry, err: err}
	}
}

// Submit enqueues entry for asynchronous append. If the queue is full,
// it blocks up to cfg.SubmitTimeout, after which it either writes
// synchronously on the caller's goroutine or drops the entry, per
// cfg.OnFullSyncWrite. After Shutdown, every submission writes
// synchronously inline.
func (w *Writer) Submit(ctx context.Context, entry types.AuditEntry) (types.AuditEntry, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return w.ledger.Append(ctx, entry)
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	result := make(chan submissionResult, 1)
	sub := submission{entry: entry, result: result}

	select {
	case w.queue <- sub:
		r := <-result
		return r.entry, r.err
	default:
	}

	timer := time.NewTimer(w.cfg.SubmitTimeout)
	defer timer.Stop()

	select {
	case w.queue <- sub:
		r := <-result
		return r.entry, r.err
	case <-timer.C:
		if w.cfg.OnFullSyncWrite {
			w.cfg.Metrics.IncAuditSyncFallback()
			return w.ledger.Append(ctx, entry)
		}
		w.cfg.Metrics.IncAuditDropped()
		return types.AuditEntry{}, ErrQueueFullDropped
	case <-ctx.Done():
		return types.AuditEntry{}, ctx.Err()
	}
}

// Shutdown drains the queue within cfg.DrainDeadline, flushing any
// remaining items synchronously, then joins the writer goroutine.
// After Shutdown returns, Submit writes synchronously inline.
func (w *Writer) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	// Once closed is true, no new Submit call can join w.inflight (they
	// take the synchronous branch above instead); waiting here drains
	// every Submit that already claimed a send before it's safe to close
	// the queue out from under it.
	w.inflight.Wait()
	close(w.queue)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	deadline := time.NewTimer(w.cfg.DrainDeadline)
	defer deadline.Stop()

	select {
	case <-done:
		return nil
	case <-deadline.C:
		w.cfg.Logger.Warn("audit writer drain deadline exceeded, remaining queue flushed synchronously")
		<-done
		return nil
	}
}
