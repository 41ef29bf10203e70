package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	tokenHash string
	createdAt time.Time
	expiresAt time.Time
}

// MemoryStore keeps refresh sessions in process memory. Suitable for tests
// and single-instance deployments; state is lost on restart, which only
// forces clients to log in again.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID][]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID][]memoryEntry)}
}

func (s *MemoryStore) Insert(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, maxPerUser int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.sessions[userID], memoryEntry{
		tokenHash: tokenHash,
		createdAt: time.Now(),
		expiresAt: expiresAt,
	})

	// FIFO eviction: drop from the front until within bound.
	if overflow := len(entries) - maxPerUser; overflow > 0 {
		entries = entries[overflow:]
	}

	s.sessions[userID] = entries
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID uuid.UUID, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[userID]
	for i, e := range entries {
		if e.tokenHash == tokenHash {
			s.sessions[userID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, userID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[userID]
	kept := entries[:0]
	for _, e := range entries {
		if e.expiresAt.After(now) {
			kept = append(kept, e)
		}
	}
	s.sessions[userID] = kept
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, userID uuid.UUID, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, e := range s.sessions[userID] {
		if e.tokenHash == tokenHash && e.expiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Count(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for _, e := range s.sessions[userID] {
		if e.expiresAt.After(now) {
			count++
		}
	}
	return count, nil
}
