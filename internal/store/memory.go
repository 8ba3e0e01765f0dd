package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	keys     map[uuid.UUID]*CollectorKey
	notified map[uuid.UUID]time.Time
	settings *MemorySettingsStore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:     make(map[uuid.UUID]*CollectorKey),
		notified: make(map[uuid.UUID]time.Time),
		settings: NewMemorySettingsStore(),
	}
}

func (s *MemoryStore) SaveKey(key *CollectorKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	stored := *key
	s.keys[key.CredentialID] = &stored
	return nil
}

func (s *MemoryStore) GetKey(credentialID uuid.UUID) (*CollectorKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[credentialID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := *key
	return &out, nil
}

func (s *MemoryStore) ListKeys(accountID uuid.UUID) ([]*CollectorKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*CollectorKey
	for _, key := range s.keys {
		if key.AccountID == accountID {
			out := *key
			keys = append(keys, &out)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CredentialID.String() < keys[j].CredentialID.String()
		}
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
	return keys, nil
}

func (s *MemoryStore) DeleteKey(credentialID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[credentialID]; !ok {
		return ErrKeyNotFound
	}
	delete(s.keys, credentialID)
	return nil
}

func (s *MemoryStore) MarkNotified(jobID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notified[jobID]; ok {
		return false, nil
	}
	s.notified[jobID] = time.Now()
	return true, nil
}

func (s *MemoryStore) PruneNotified(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, at := range s.notified {
		if at.Before(before) {
			delete(s.notified, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Settings() SettingsStore {
	return s.settings
}

func (s *MemoryStore) Close() error {
	return nil
}

// MemorySettingsStore implements SettingsStore using an in-memory map.
type MemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{values: make(map[string]string)}
}

func (m *MemorySettingsStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	return value, ok
}

func (m *MemorySettingsStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemorySettingsStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}
