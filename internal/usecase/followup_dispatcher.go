package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	"github.com/Israr974/BuyZaar-sub001/internal/metrics"

	"go.uber.org/zap"
)

const (
	StepHistory   = "history"
	StepInventory = "inventory"
	StepPublish   = "publish"
)

// 注文確定後に非同期で走らせる処理
type FollowUpTask struct {
	Step        string
	OrderID     int64
	OrderNumber string
	UserID      int64
	Run         func(ctx context.Context) error
}

// 確定済み注文の後続処理が最終的に失敗したもの（要照合）
type InconsistencyReport struct {
	Step        string
	OrderID     int64
	OrderNumber string
	UserID      int64
	Attempts    int
	Err         error
}

type InconsistencyReporter interface {
	Report(ctx context.Context, r InconsistencyReport)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a follow-up failure that retrying cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type FollowUpOptions struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	BaseBackoff    time.Duration
	AttemptTimeout time.Duration
}

// FollowUpDispatcher runs post-commit tasks on a bounded worker pool.
// Each task is retried with exponential backoff; what still fails is handed
// to the reporter, never to the request that committed the order.
type FollowUpDispatcher struct {
	opts     FollowUpOptions
	queue    chan FollowUpTask
	reporter InconsistencyReporter
	logger   *zap.Logger
	metrics  *metrics.CheckoutMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	// 満杯で弾いたタスクの報告（Closeで待つ）
	rejected sync.WaitGroup
}

const maxBackoff = 30 * time.Second

func NewFollowUpDispatcher(opts FollowUpOptions, reporter InconsistencyReporter, logger *zap.Logger, m *metrics.CheckoutMetrics) *FollowUpDispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &FollowUpDispatcher{
		opts:     opts,
		queue:    make(chan FollowUpTask, opts.QueueSize),
		reporter: reporter,
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit never blocks the caller. A task rejected by a full queue is
// reported in the background; after Close the report is synchronous.
func (d *FollowUpDispatcher) Submit(task FollowUpTask) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.report(task, 0, errors.New("follow-up dispatcher closed"))
		return
	}
	select {
	case d.queue <- task:
		d.mu.RUnlock()
		return
	default:
	}
	d.rejected.Add(1)
	d.mu.RUnlock()

	d.metrics.FollowUp(task.Step, "rejected")
	d.logger.Warn("follow-up queue full",
		zap.String("step", task.Step),
		zap.Int64("order_id", task.OrderID),
		zap.String("order_number", task.OrderNumber),
	)
	go func() {
		defer d.rejected.Done()
		d.report(task, 0, errors.New("follow-up queue full"))
	}()
}

// Close stops intake and waits for queued tasks. When ctx ends first the
// in-flight attempts are cancelled.
func (d *FollowUpDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		d.rejected.Wait()
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

func (d *FollowUpDispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.run(task)
	}
}

func (d *FollowUpDispatcher) run(task FollowUpTask) {
	var err error
	attempt := 0
	for attempt < d.opts.MaxAttempts {
		attempt++

		actx, cancel := context.WithTimeout(d.ctx, d.opts.AttemptTimeout)
		err = task.Run(actx)
		cancel()

		if err == nil {
			d.metrics.FollowUp(task.Step, "ok")
			return
		}
		d.metrics.FollowUp(task.Step, "error")
		if isPermanent(err) || d.ctx.Err() != nil {
			break
		}

		d.logger.Warn("follow-up attempt failed",
			zap.String("step", task.Step),
			zap.Int64("order_id", task.OrderID),
			zap.String("order_number", task.OrderNumber),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < d.opts.MaxAttempts && !d.sleep(backoff(d.opts.BaseBackoff, attempt)) {
			break
		}
	}
	d.report(task, attempt, err)
}

func (d *FollowUpDispatcher) sleep(wait time.Duration) bool {
	if wait <= 0 {
		return true
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}

func (d *FollowUpDispatcher) report(task FollowUpTask, attempts int, err error) {
	if d.reporter == nil {
		return
	}
	d.reporter.Report(context.Background(), InconsistencyReport{
		Step:        task.Step,
		OrderID:     task.OrderID,
		OrderNumber: task.OrderNumber,
		UserID:      task.UserID,
		Attempts:    attempts,
		Err:         err,
	})
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	wait := base << (attempt - 1)
	if wait <= 0 || wait > maxBackoff {
		return maxBackoff
	}
	return wait
}

// ObservabilityReporter logs, counts and publishes reconciliation events.
type ObservabilityReporter struct {
	logger  *zap.Logger
	metrics *metrics.CheckoutMetrics
	events  EventPublisher
	ids     IDGenerator
	clock   Clock
	timeout time.Duration
}

func NewObservabilityReporter(logger *zap.Logger, m *metrics.CheckoutMetrics, events EventPublisher, ids IDGenerator, clock Clock, timeout time.Duration) *ObservabilityReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ObservabilityReporter{logger: logger, metrics: m, events: events, ids: ids, clock: clock, timeout: timeout}
}

func (r *ObservabilityReporter) Report(ctx context.Context, rep InconsistencyReport) {
	r.metrics.Inconsistency(rep.Step)
	r.logger.Error("post-commit inconsistency, reconciliation required",
		zap.String("step", rep.Step),
		zap.Int64("order_id", rep.OrderID),
		zap.String("order_number", rep.OrderNumber),
		zap.Int64("user_id", rep.UserID),
		zap.Int("attempts", rep.Attempts),
		zap.Error(rep.Err),
	)

	// publish自体の失敗はここで止める（ループさせない）
	if rep.Step == StepPublish {
		return
	}
	detail := ""
	if rep.Err != nil {
		detail = rep.Err.Error()
	}
	event := model.OrderEvent{
		Type:        model.OrderEventReconciliationRequired,
		OrderID:     rep.OrderID,
		OrderNumber: rep.OrderNumber,
		UserID:      rep.UserID,
		Step:        rep.Step,
		Detail:      detail,
		OccurredAt:  r.clock.Now().UTC(),
	}
	if r.ids != nil {
		event.EventID = r.ids.NewID()
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.events.Publish(pctx, event); err != nil {
		r.logger.Error("reconciliation event publish failed",
			zap.Int64("order_id", rep.OrderID),
			zap.Error(err),
		)
	}
}
