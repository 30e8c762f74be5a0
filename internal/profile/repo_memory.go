package profile

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryStore(seed ...Profile) *MemoryStore {
	m := &MemoryStore{profiles: make(map[string]Profile)}
	for _, p := range seed {
		m.profiles[p.UserID] = p
	}
	return m
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (Profile, error) {
	_ = ctx
	if userID == "" {
		return Profile{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) FindByPhone(ctx context.Context, phone string) (Profile, error) {
	_ = ctx
	if phone == "" {
		return Profile{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Phone == phone {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

// DeductCredits and AddCredits are not part of Store; the in-memory ledger
// repository uses them as the balance side of its atomic movements.
func (m *MemoryStore) DeductCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	_ = ctx
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if p.VoiceCredits < amount {
		return 0, ErrInsufficientCredits
	}
	p.VoiceCredits -= amount
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
	return p.VoiceCredits, nil
}

func (m *MemoryStore) AddCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	_ = ctx
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return 0, ErrNotFound
	}
	p.VoiceCredits += amount
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
	return p.VoiceCredits, nil
}

func (m *MemoryStore) SetPhoneVerified(ctx context.Context, userID, phone string) error {
	_ = ctx
	if userID == "" || phone == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.Phone = phone
	p.PhoneVerified = true
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
	return nil
}

func (m *MemoryStore) SetCallerIDVerified(ctx context.Context, userID string, verified bool) error {
	_ = ctx
	if userID == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.CallerIDVerified = verified
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
	return nil
}
