package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voice-platform/internal/ledger"
	"voice-platform/internal/rates"

	"github.com/google/uuid"
)

// Failure kinds, logged server-side; the webhook caller is always acked.
var (
	ErrProviderDownload = errors.New("provider download failed")
	ErrStorageUpload    = errors.New("storage upload failed")
	ErrDatabaseInsert   = errors.New("database insert failed")
)

// Step names for the linear pipeline.
type Step string

const (
	StepAttribute Step = "attribute"
	StepStatus    Step = "status"
	StepBilling   Step = "billing"
	StepDownload  Step = "download"
	StepUpload    Step = "upload"
	StepMetadata  Step = "metadata"
	StepDone      Step = "done"
)

// Outcome reports how far the pipeline got. Err is nil for the two
// abort-successfully cases (unattributable or not-yet-completed recordings)
// and for full success.
type Outcome struct {
	Step     Step
	Err      error
	Skipped  bool
	Artifact Artifact
}

// BillingQueue is the asynchronous billing hand-off; enqueueing never blocks
// recording capture.
type BillingQueue interface {
	Enqueue(task ledger.ChargeTask) bool
}

// Pipeline turns a completion notification into a persisted, billed
// recording.
//
// The steps run as an explicit linear sequence of fallible stages; any
// failure short-circuits to log-and-ack. Metadata is only written after the
// upload fully succeeded, so storage can never be referenced by a row whose
// object does not exist.
//
// Stateless per invocation; safe for concurrent webhook deliveries.
type Pipeline struct {
	Billing   BillingQueue
	Audio     AudioFetcher
	Objects   ObjectStore
	Artifacts ArtifactStore

	// ReleaseLease, when set, frees the caller's active-call slot once the
	// completion is observed.
	ReleaseLease func(ctx context.Context, userID string) error

	Log   *slog.Logger
	Clock func() time.Time
}

func isUnattributable(userID string) bool {
	switch userID {
	case "", "unknown", "undefined":
		return true
	default:
		return false
	}
}

// HandleCompletion processes one recording-finalized notification.
func (p *Pipeline) HandleCompletion(ctx context.Context, n CompletionNotification) Outcome {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}

	// 1. Attribution. Without an owner there is nothing useful to do, and the
	// provider must not keep retrying, so this aborts successfully.
	if isUnattributable(n.UserID) {
		log.Warn("recording without attributable user, ignoring",
			"recording_sid", n.RecordingSid, "call_sid", n.CallSid)
		return Outcome{Step: StepAttribute, Skipped: true}
	}

	if p.ReleaseLease != nil {
		if err := p.ReleaseLease(ctx, n.UserID); err != nil {
			log.Warn("call lease release failed", "user_id", n.UserID, "err", err)
		}
	}

	// 2. Only finalized recordings are processed.
	if n.Status != StatusCompleted {
		log.Info("recording not completed yet, ignoring",
			"recording_sid", n.RecordingSid, "status", n.Status)
		return Outcome{Step: StepStatus, Skipped: true}
	}

	// 3. Billing, re-derived independently from the destination. Handed to
	// the async worker: a billing failure must never block capture.
	tier := rates.ResolveTier(n.To)
	credits := ledger.BillableMinutes(n.DurationSeconds) * tier.Multiplier
	if credits > 0 && p.Billing != nil {
		p.Billing.Enqueue(ledger.ChargeTask{
			UserID:          n.UserID,
			DurationSeconds: n.DurationSeconds,
			Tier:            tier,
			CallReference:   n.RecordingSid,
		})
	}

	// 4. Download the finalized audio.
	audio, err := p.Audio.Fetch(ctx, n.RecordingURL)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrProviderDownload, err)
		log.Error("recording capture aborted",
			"recording_sid", n.RecordingSid, "step", StepDownload, "err", err)
		return Outcome{Step: StepDownload, Err: err}
	}

	// 5. Durable storage, keyed by owner and recording id so redelivery
	// overwrites rather than duplicates.
	key := fmt.Sprintf("%s/%s.mp3", n.UserID, n.RecordingSid)
	publicURL, err := p.Objects.Upload(ctx, key, audio, "audio/mpeg")
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageUpload, err)
		log.Error("recording capture aborted",
			"recording_sid", n.RecordingSid, "step", StepUpload, "err", err)
		return Outcome{Step: StepUpload, Err: err}
	}

	// 6. Metadata, written only after the upload succeeded.
	artifact := Artifact{
		ID:                  uuid.NewString(),
		OwnerUserID:         n.UserID,
		Title:               fmt.Sprintf("Call to %s", n.To),
		Description:         fmt.Sprintf("Recorded call from %s to %s", n.From, n.To),
		Duration:            FormatDuration(n.DurationSeconds),
		DurationSeconds:     n.DurationSeconds,
		AudioURL:            publicURL,
		Participants:        2,
		Tags:                []string{"phone-call"},
		TierID:              tier.ID,
		CreditsCharged:      credits,
		ProviderCallID:      n.CallSid,
		ProviderRecordingID: n.RecordingSid,
		Status:              ArtifactStatusProcessing,
		CreatedAt:           clock().UTC(),
	}
	if err := p.Artifacts.Insert(ctx, artifact); err != nil {
		if errors.Is(err, ErrDuplicateArtifact) {
			// Redelivery: the recording is already captured; nothing to redo.
			log.Info("duplicate completion delivery ignored",
				"recording_sid", n.RecordingSid)
			existing, ok, ferr := p.Artifacts.FindByProviderRecordingID(ctx, n.RecordingSid)
			if ferr == nil && ok {
				return Outcome{Step: StepDone, Skipped: true, Artifact: existing}
			}
			return Outcome{Step: StepDone, Skipped: true}
		}
		err = fmt.Errorf("%w: %v", ErrDatabaseInsert, err)
		log.Error("recording capture aborted",
			"recording_sid", n.RecordingSid, "step", StepMetadata, "err", err)
		return Outcome{Step: StepMetadata, Err: err}
	}

	log.Info("recording captured",
		"recording_sid", n.RecordingSid,
		"user_id", n.UserID,
		"duration_s", n.DurationSeconds,
		"tier", tier.ID)
	return Outcome{Step: StepDone, Artifact: artifact}
}
