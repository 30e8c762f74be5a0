package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"voice-platform/internal/rates"
)

// ChargeTask is one deferred billing request produced by the recording
// pipeline.
type ChargeTask struct {
	UserID          string
	DurationSeconds int64
	Tier            rates.Tier
	CallReference   string
}

// Charger is the minimal service surface the worker needs.
type Charger interface {
	ChargeForCall(ctx context.Context, userID string, durationSeconds int64, tier rates.Tier, callRef string) (Entry, error)
}

// Worker drains billing tasks off a bounded queue so that recording capture
// never waits on billing.
//
// Transient store errors are retried a bounded number of times with backoff.
// Insufficient credits is terminal: retrying cannot succeed, and the
// record-the-content-first policy means the recording was kept regardless.
// Failures are counted for alerting, not only logged.
type Worker struct {
	svc Charger
	log *slog.Logger

	tasks    chan ChargeTask
	wg       sync.WaitGroup
	stopOnce sync.Once

	maxAttempts int
	backoff     time.Duration

	charged atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

type WorkerConfig struct {
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

func NewWorker(svc Charger, log *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		svc:         svc,
		log:         log,
		tasks:       make(chan ChargeTask, cfg.QueueSize),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Start launches the drain loop. ctx cancellation stops intake; queued tasks
// are still drained before Stop returns.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for task := range w.tasks {
			w.process(ctx, task)
		}
	}()
}

// Stop closes the queue and waits for in-flight tasks. Safe to call more
// than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.tasks) })
	w.wg.Wait()
}

// Enqueue hands a task to the worker without blocking. A full queue drops the
// task and counts it; billing must never back-pressure the webhook path.
func (w *Worker) Enqueue(task ChargeTask) bool {
	select {
	case w.tasks <- task:
		return true
	default:
		w.dropped.Add(1)
		w.failed.Add(1)
		w.log.Error("billing queue full, task dropped",
			"user_id", task.UserID, "call_ref", task.CallReference)
		return false
	}
}

func (w *Worker) process(ctx context.Context, task ChargeTask) {
	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		var entry Entry
		entry, err = w.svc.ChargeForCall(ctx, task.UserID, task.DurationSeconds, task.Tier, task.CallReference)
		if err == nil {
			w.charged.Add(1)
			w.log.Info("call billed",
				"user_id", task.UserID,
				"call_ref", task.CallReference,
				"minutes", entry.MinutesCharged,
				"credits", entry.Amount,
				"tier", entry.TierID)
			return
		}
		if errors.Is(err, ErrInsufficientCredits) || errors.Is(err, ErrInvalidArgument) {
			break
		}
		if attempt < w.maxAttempts {
			select {
			case <-time.After(w.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				attempt = w.maxAttempts
			}
		}
	}
	w.failed.Add(1)
	w.log.Error("billing failed",
		"user_id", task.UserID, "call_ref", task.CallReference, "err", err)
}

// Charged returns the number of successfully billed tasks.
func (w *Worker) Charged() int64 { return w.charged.Load() }

// Failed returns the number of tasks that exhausted retries or were dropped.
func (w *Worker) Failed() int64 { return w.failed.Load() }
