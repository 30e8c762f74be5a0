package recording

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
)

// ArtifactStore persists recording metadata.
//
// Insert must be idempotent on the provider recording id: redelivered
// notifications return ErrDuplicateArtifact instead of creating a second row.
type ArtifactStore interface {
	Insert(ctx context.Context, a Artifact) error
	FindByProviderRecordingID(ctx context.Context, sid string) (Artifact, bool, error)
}

var ErrDuplicateArtifact = errors.New("recording already captured")

// PostgresArtifactStore stores artifacts in the recordings table.
//
// Assumed schema:
//
//	CREATE TABLE recordings (
//	  id                    TEXT PRIMARY KEY,
//	  user_id               TEXT NOT NULL,
//	  title                 TEXT NOT NULL,
//	  description           TEXT NOT NULL DEFAULT '',
//	  duration              TEXT NOT NULL,
//	  duration_seconds      BIGINT NOT NULL,
//	  audio_url             TEXT NOT NULL,
//	  participants          INT NOT NULL DEFAULT 2,
//	  tags                  TEXT NOT NULL DEFAULT '',
//	  tier_id               TEXT NOT NULL DEFAULT '',
//	  credits_charged       BIGINT NOT NULL DEFAULT 0,
//	  provider_call_id      TEXT NOT NULL,
//	  provider_recording_id TEXT NOT NULL UNIQUE,
//	  status                TEXT NOT NULL,
//	  created_at            TIMESTAMPTZ NOT NULL
//	);
type PostgresArtifactStore struct {
	db *sql.DB
}

func NewPostgresArtifactStore(db *sql.DB) *PostgresArtifactStore {
	return &PostgresArtifactStore{db: db}
}

func (s *PostgresArtifactStore) Insert(ctx context.Context, a Artifact) error {
	const q = `
INSERT INTO recordings (
  id, user_id, title, description, duration, duration_seconds, audio_url,
  participants, tags, tier_id, credits_charged, provider_call_id,
  provider_recording_id, status, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (provider_recording_id) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q,
		a.ID,
		a.OwnerUserID,
		a.Title,
		a.Description,
		a.Duration,
		a.DurationSeconds,
		a.AudioURL,
		a.Participants,
		strings.Join(a.Tags, ","),
		a.TierID,
		a.CreditsCharged,
		a.ProviderCallID,
		a.ProviderRecordingID,
		a.Status,
		a.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateArtifact
	}
	return nil
}

func (s *PostgresArtifactStore) FindByProviderRecordingID(ctx context.Context, sid string) (Artifact, bool, error) {
	const q = `
SELECT id, user_id, title, description, duration, duration_seconds, audio_url,
       participants, tags, tier_id, credits_charged, provider_call_id,
       provider_recording_id, status, created_at
FROM recordings
WHERE provider_recording_id = $1
LIMIT 1
`
	var a Artifact
	var tags string
	err := s.db.QueryRowContext(ctx, q, sid).Scan(
		&a.ID,
		&a.OwnerUserID,
		&a.Title,
		&a.Description,
		&a.Duration,
		&a.DurationSeconds,
		&a.AudioURL,
		&a.Participants,
		&tags,
		&a.TierID,
		&a.CreditsCharged,
		&a.ProviderCallID,
		&a.ProviderRecordingID,
		&a.Status,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, false, nil
		}
		return Artifact{}, false, err
	}
	if tags != "" {
		a.Tags = strings.Split(tags, ",")
	}
	return a, true, nil
}

// MemoryArtifactStore is an in-memory ArtifactStore for tests.
type MemoryArtifactStore struct {
	mu        sync.Mutex
	artifacts []Artifact
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{}
}

func (s *MemoryArtifactStore) Insert(ctx context.Context, a Artifact) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.artifacts {
		if existing.ProviderRecordingID == a.ProviderRecordingID {
			return ErrDuplicateArtifact
		}
	}
	s.artifacts = append(s.artifacts, a)
	return nil
}

func (s *MemoryArtifactStore) FindByProviderRecordingID(ctx context.Context, sid string) (Artifact, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.ProviderRecordingID == sid {
			return a, true, nil
		}
	}
	return Artifact{}, false, nil
}

// Artifacts returns a copy of everything stored (test helper).
func (s *MemoryArtifactStore) Artifacts() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}
