package recording

import (
	"context"
	"errors"
	"testing"

	"voice-platform/internal/ledger"
	"voice-platform/internal/rates"
)

type fakeFetcher struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, recordingURL string) ([]byte, error) {
	f.urls = append(f.urls, recordingURL)
	return f.data, f.err
}

type fakeObjects struct {
	err  error
	keys []string
}

func (o *fakeObjects) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	o.keys = append(o.keys, key)
	if o.err != nil {
		return "", o.err
	}
	return "https://cdn.example.com/" + key, nil
}

type fakeQueue struct {
	tasks []ledger.ChargeTask
}

func (q *fakeQueue) Enqueue(task ledger.ChargeTask) bool {
	q.tasks = append(q.tasks, task)
	return true
}

func notification() CompletionNotification {
	return CompletionNotification{
		RecordingSid:    "RE123",
		RecordingURL:    "https://api.twilio.example/Recordings/RE123",
		DurationSeconds: 90,
		CallSid:         "CA456",
		From:            "+15550001111",
		To:              "+34600112233",
		Status:          StatusCompleted,
		UserID:          "u1",
	}
}

func newPipeline() (*Pipeline, *fakeFetcher, *fakeObjects, *fakeQueue, *MemoryArtifactStore) {
	fetcher := &fakeFetcher{data: []byte("mp3-bytes")}
	objects := &fakeObjects{}
	queue := &fakeQueue{}
	store := NewMemoryArtifactStore()
	p := &Pipeline{Billing: queue, Audio: fetcher, Objects: objects, Artifacts: store}
	return p, fetcher, objects, queue, store
}

func TestHandleCompletion_Success(t *testing.T) {
	p, fetcher, objects, queue, store := newPipeline()

	out := p.HandleCompletion(context.Background(), notification())
	if out.Err != nil || out.Step != StepDone {
		t.Fatalf("expected done, got step=%s err=%v", out.Step, out.Err)
	}

	if len(fetcher.urls) != 1 || fetcher.urls[0] != "https://api.twilio.example/Recordings/RE123" {
		t.Fatalf("unexpected fetch urls: %v", fetcher.urls)
	}
	if len(objects.keys) != 1 || objects.keys[0] != "u1/RE123.mp3" {
		t.Fatalf("unexpected storage key: %v", objects.keys)
	}

	// Billing re-derived from destination: ULTRA(10) x 2 minutes.
	if len(queue.tasks) != 1 {
		t.Fatalf("expected one billing task, got %d", len(queue.tasks))
	}
	task := queue.tasks[0]
	if task.Tier.ID != rates.TierUltra || task.CallReference != "RE123" {
		t.Fatalf("unexpected billing task: %+v", task)
	}

	arts := store.Artifacts()
	if len(arts) != 1 {
		t.Fatalf("expected one artifact, got %d", len(arts))
	}
	a := arts[0]
	if a.Title != "Call to +34600112233" {
		t.Fatalf("unexpected title %q", a.Title)
	}
	if a.Duration != "00:01:30" || a.DurationSeconds != 90 {
		t.Fatalf("unexpected duration %q / %d", a.Duration, a.DurationSeconds)
	}
	if a.AudioURL != "https://cdn.example.com/u1/RE123.mp3" {
		t.Fatalf("unexpected audio url %q", a.AudioURL)
	}
	if a.TierID != rates.TierUltra || a.CreditsCharged != 20 {
		t.Fatalf("unexpected billing metadata: %s / %d", a.TierID, a.CreditsCharged)
	}
	if a.ProviderCallID != "CA456" || a.ProviderRecordingID != "RE123" {
		t.Fatalf("unexpected provider ids: %+v", a)
	}
}

func TestHandleCompletion_UnattributableAbortsSuccessfully(t *testing.T) {
	for _, uid := range []string{"", "unknown", "undefined"} {
		p, fetcher, _, queue, store := newPipeline()
		n := notification()
		n.UserID = uid

		out := p.HandleCompletion(context.Background(), n)
		if out.Err != nil || !out.Skipped || out.Step != StepAttribute {
			t.Fatalf("userID %q: expected successful abort, got %+v", uid, out)
		}
		if len(fetcher.urls) != 0 || len(queue.tasks) != 0 || len(store.Artifacts()) != 0 {
			t.Fatalf("userID %q: expected no side effects", uid)
		}
	}
}

func TestHandleCompletion_NonCompletedStatusSkipped(t *testing.T) {
	p, fetcher, _, queue, store := newPipeline()
	n := notification()
	n.Status = "in-progress"

	out := p.HandleCompletion(context.Background(), n)
	if out.Err != nil || !out.Skipped || out.Step != StepStatus {
		t.Fatalf("expected successful abort, got %+v", out)
	}
	if len(fetcher.urls) != 0 || len(queue.tasks) != 0 || len(store.Artifacts()) != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestHandleCompletion_DownloadFailure(t *testing.T) {
	p, fetcher, _, queue, store := newPipeline()
	fetcher.err = errors.New("401 unauthorized")

	out := p.HandleCompletion(context.Background(), notification())
	if !errors.Is(out.Err, ErrProviderDownload) {
		t.Fatalf("expected ErrProviderDownload, got %v", out.Err)
	}
	// Billing was already enqueued (content-first policy does not hold
	// billing hostage to capture, nor capture to billing).
	if len(queue.tasks) != 1 {
		t.Fatalf("expected billing enqueued, got %d", len(queue.tasks))
	}
	if len(store.Artifacts()) != 0 {
		t.Fatalf("expected no metadata row on download failure")
	}
}

func TestHandleCompletion_UploadFailureWritesNoMetadata(t *testing.T) {
	p, _, objects, _, store := newPipeline()
	objects.err = errors.New("503 service unavailable")

	out := p.HandleCompletion(context.Background(), notification())
	if !errors.Is(out.Err, ErrStorageUpload) {
		t.Fatalf("expected ErrStorageUpload, got %v", out.Err)
	}
	if len(store.Artifacts()) != 0 {
		t.Fatalf("metadata must not reference a failed upload")
	}
}

func TestHandleCompletion_DuplicateDeliveryCreatesOneArtifact(t *testing.T) {
	p, _, objects, queue, store := newPipeline()

	first := p.HandleCompletion(context.Background(), notification())
	if first.Err != nil {
		t.Fatalf("first delivery failed: %v", first.Err)
	}
	second := p.HandleCompletion(context.Background(), notification())
	if second.Err != nil {
		t.Fatalf("redelivery must not error, got %v", second.Err)
	}
	if !second.Skipped {
		t.Fatalf("expected redelivery to be recognized as duplicate")
	}
	if len(store.Artifacts()) != 1 {
		t.Fatalf("expected a single artifact row, got %d", len(store.Artifacts()))
	}
	// Upload went to the same key both times (overwrite, not duplicate).
	if len(objects.keys) != 2 || objects.keys[0] != objects.keys[1] {
		t.Fatalf("expected same storage key on redelivery: %v", objects.keys)
	}
	// Billing idempotency is the ledger's job (unique call reference); the
	// pipeline may enqueue twice.
	if len(queue.tasks) != 2 {
		t.Fatalf("expected two enqueues, got %d", len(queue.tasks))
	}
}

func TestHandleCompletion_BlockedDestinationSkipsBilling(t *testing.T) {
	p, _, _, queue, store := newPipeline()
	n := notification()
	n.To = "+999555000"

	out := p.HandleCompletion(context.Background(), n)
	if out.Err != nil || out.Step != StepDone {
		t.Fatalf("expected capture to proceed, got %+v", out)
	}
	if len(queue.tasks) != 0 {
		t.Fatalf("expected no zero-amount billing task")
	}
	if got := store.Artifacts()[0].CreditsCharged; got != 0 {
		t.Fatalf("expected 0 credits recorded, got %d", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{
		0:    "00:00:00",
		5:    "00:00:05",
		90:   "00:01:30",
		3661: "01:01:01",
	}
	for sec, want := range cases {
		if got := FormatDuration(sec); got != want {
			t.Fatalf("%d: expected %q, got %q", sec, want, got)
		}
	}
}
