package auth

import (
	"context"
	"sync"
	"time"
)

type refreshRecord struct {
	tokenHash string
	expiresAt time.Time
}

// MemoryRefreshStore keeps refresh token state in-memory. It is safe for
// concurrent use and intended for development or single-instance deployments.
type MemoryRefreshStore struct {
	mu      sync.Mutex
	records map[string]refreshRecord
}

// NewMemoryRefreshStore constructs an in-memory store implementation.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{records: make(map[string]refreshRecord)}
}

// Set stores the token digest for the account, replacing any prior one.
func (s *MemoryRefreshStore) Set(_ context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	s.records[accountID] = refreshRecord{tokenHash: tokenHash, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// Get returns the stored digest for the account. Expired records report as
// absent.
func (s *MemoryRefreshStore) Get(_ context.Context, accountID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[accountID]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(record.expiresAt) {
		delete(s.records, accountID)
		return "", false, nil
	}
	return record.tokenHash, true, nil
}

// Rotate swaps the stored digest only when it still equals currentHash. The
// compare and the swap happen under one lock, making the rotation a single
// atomic operation.
func (s *MemoryRefreshStore) Rotate(_ context.Context, accountID, currentHash, nextHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[accountID]
	if !ok || record.tokenHash != currentHash || time.Now().After(record.expiresAt) {
		return false, nil
	}
	s.records[accountID] = refreshRecord{tokenHash: nextHash, expiresAt: expiresAt}
	return true, nil
}

// Clear removes the account's refresh token state.
func (s *MemoryRefreshStore) Clear(_ context.Context, accountID string) error {
	s.mu.Lock()
	delete(s.records, accountID)
	s.mu.Unlock()
	return nil
}

// PurgeExpired removes any expired records from the store.
func (s *MemoryRefreshStore) PurgeExpired(now time.Time) {
	s.mu.Lock()
	for accountID, record := range s.records {
		if now.After(record.expiresAt) {
			delete(s.records, accountID)
		}
	}
	s.mu.Unlock()
}

var _ RefreshTokenStore = (*MemoryRefreshStore)(nil)
