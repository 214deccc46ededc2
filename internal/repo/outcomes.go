package repo

import (
	"context"
	"sync"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type OutcomeRepository interface {
	Record(ctx context.Context, o model.Outcome) error
	ListRecent(ctx context.Context, limit, offset int) ([]model.Outcome, error)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// MemoryOutcomeRepo keeps the most recent outcomes in process memory. It is
// used when no database is configured.
type MemoryOutcomeRepo struct {
	mu       sync.Mutex
	capacity int
	items    []model.Outcome
}

func NewMemoryOutcomeRepo(capacity int) *MemoryOutcomeRepo {
	if capacity <= 0 {
		capacity = MaxListLimit
	}
	return &MemoryOutcomeRepo{capacity: capacity}
}

func (r *MemoryOutcomeRepo) Record(_ context.Context, o model.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, o)
	if over := len(r.items) - r.capacity; over > 0 {
		r.items = append(r.items[:0:0], r.items[over:]...)
	}
	return nil
}

// ListRecent returns outcomes newest first.
func (r *MemoryOutcomeRepo) ListRecent(_ context.Context, limit, offset int) ([]model.Outcome, error) {
	limit, offset = clampPage(limit, offset)

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Outcome
	for i := len(r.items) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.items[i])
	}
	return out, nil
}
