package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-platform/internal/rates"
)

type scriptedCharger struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (c *scriptedCharger) ChargeForCall(ctx context.Context, userID string, durationSeconds int64, tier rates.Tier, callRef string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.calls < len(c.errs) {
		err = c.errs[c.calls]
	}
	c.calls++
	if err != nil {
		return Entry{}, err
	}
	return Entry{UserID: userID, CallReference: callRef, Amount: 1, MinutesCharged: 1, TierID: tier.ID}, nil
}

func (c *scriptedCharger) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestWorker_ChargesTask(t *testing.T) {
	charger := &scriptedCharger{}
	w := NewWorker(charger, nil, WorkerConfig{Backoff: time.Millisecond})
	w.Start(context.Background())

	if !w.Enqueue(ChargeTask{UserID: "u1", DurationSeconds: 30, Tier: rates.TierByID(rates.TierStandard), CallReference: "RE1"}) {
		t.Fatalf("expected enqueue to succeed")
	}
	w.Stop()

	if w.Charged() != 1 {
		t.Fatalf("expected 1 charged, got %d", w.Charged())
	}
	if w.Failed() != 0 {
		t.Fatalf("expected 0 failed, got %d", w.Failed())
	}
}

func TestWorker_RetriesTransientErrors(t *testing.T) {
	charger := &scriptedCharger{errs: []error{errors.New("db down"), errors.New("db down"), nil}}
	w := NewWorker(charger, nil, WorkerConfig{MaxAttempts: 3, Backoff: time.Millisecond})
	w.Start(context.Background())

	w.Enqueue(ChargeTask{UserID: "u1", DurationSeconds: 30, Tier: rates.TierByID(rates.TierStandard), CallReference: "RE1"})
	w.Stop()

	if charger.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", charger.callCount())
	}
	if w.Charged() != 1 {
		t.Fatalf("expected 1 charged, got %d", w.Charged())
	}
}

func TestWorker_InsufficientCreditsIsTerminal(t *testing.T) {
	charger := &scriptedCharger{errs: []error{ErrInsufficientCredits, nil, nil}}
	w := NewWorker(charger, nil, WorkerConfig{MaxAttempts: 3, Backoff: time.Millisecond})
	w.Start(context.Background())

	w.Enqueue(ChargeTask{UserID: "u1", DurationSeconds: 30, Tier: rates.TierByID(rates.TierStandard), CallReference: "RE1"})
	w.Stop()

	if charger.callCount() != 1 {
		t.Fatalf("expected no retry, got %d attempts", charger.callCount())
	}
	if w.Failed() != 1 {
		t.Fatalf("expected 1 failed, got %d", w.Failed())
	}
}

func TestWorker_FullQueueDropsWithoutBlocking(t *testing.T) {
	charger := &scriptedCharger{}
	w := NewWorker(charger, nil, WorkerConfig{QueueSize: 1, Backoff: time.Millisecond})
	// Worker not started: queue fills immediately.

	task := ChargeTask{UserID: "u1", DurationSeconds: 30, Tier: rates.TierByID(rates.TierStandard), CallReference: "RE1"}
	if !w.Enqueue(task) {
		t.Fatalf("expected first enqueue to succeed")
	}
	if w.Enqueue(task) {
		t.Fatalf("expected second enqueue to drop")
	}
	if w.Failed() != 1 {
		t.Fatalf("expected dropped task counted as failed, got %d", w.Failed())
	}

	w.Start(context.Background())
	w.Stop()
}
