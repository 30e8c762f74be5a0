package recording

import (
	"fmt"
	"time"

	"voice-platform/internal/rates"
)

// CompletionNotification is the provider's recording-finalized event, decoded
// once at the webhook boundary into this typed form. Field extraction from
// the raw form/query happens in the telephony adapter, not here.
type CompletionNotification struct {
	RecordingSid    string
	RecordingURL    string
	DurationSeconds int64
	CallSid         string
	From            string
	To              string
	Status          string

	// UserID arrives as a query parameter on the callback URL registered at
	// authorization time; the provider payload itself does not carry it
	// reliably.
	UserID string
}

// StatusCompleted is the only status the pipeline processes.
const StatusCompleted = "completed"

// Artifact is the persisted recording record.
// Immutable once created except by downstream processors (transcription).
type Artifact struct {
	ID          string `json:"id" db:"id"`
	OwnerUserID string `json:"user_id" db:"user_id"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	// Duration is the display form, HH:MM:SS.
	Duration        string `json:"duration" db:"duration"`
	DurationSeconds int64  `json:"duration_seconds" db:"duration_seconds"`

	AudioURL     string   `json:"audio_url" db:"audio_url"`
	Participants int      `json:"participants" db:"participants"`
	Tags         []string `json:"tags" db:"tags"`

	TierID         rates.TierID `json:"tier_id" db:"tier_id"`
	CreditsCharged int64        `json:"credits_charged" db:"credits_charged"`

	ProviderCallID      string `json:"provider_call_id" db:"provider_call_id"`
	ProviderRecordingID string `json:"provider_recording_id" db:"provider_recording_id"`

	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	ArtifactStatusProcessing = "Processing"
)

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
