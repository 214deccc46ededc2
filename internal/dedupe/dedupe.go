// Package dedupe holds time-bounded idempotency marks used to suppress
// duplicate notifications for the same logical event.
package dedupe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"
)

const (
	NotificationTTL = time.Hour
	ProcessingTTL   = 30 * time.Second
)

// Store marks keys atomically. TryMark returns true only for the single
// caller that set the mark; every other caller until expiry gets false.
type Store interface {
	TryMark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

func StatusKey(orderID, status string) string {
	return "notified:" + orderID + ":" + status
}

func TrackingKey(orderID, code string) string {
	return "tracking:" + orderID + ":" + digest(code)
}

func NoteKey(orderID, note string) string {
	return "note:" + orderID + ":" + digest(note)
}

func ProcessingKey(orderID string) string {
	return "processing:" + orderID
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

const sweepEvery = 1024

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.Mutex
	marks  map[string]time.Time
	writes int
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		marks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (s *MemoryStore) TryMark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.marks[key]; ok && now.Before(exp) {
		return false, nil
	}

	s.marks[key] = now.Add(ttl)
	s.writes++
	if s.writes%sweepEvery == 0 {
		s.sweep(now)
	}
	return true, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, exp := range s.marks {
		if !now.Before(exp) {
			delete(s.marks, k)
		}
	}
}
