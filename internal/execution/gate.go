package execution

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"nft_market/internal/domain"
)

// Gate allows at most one in-flight submission per action kind.
type Gate struct {
	mu       sync.Mutex
	inFlight map[domain.Action]bool
}

func NewGate() *Gate {
	return &Gate{inFlight: make(map[domain.Action]bool)}
}

// TryAcquire reserves the action. It returns false if one is already running.
func (g *Gate) TryAcquire(a domain.Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[a] {
		return false
	}
	g.inFlight[a] = true
	return true
}

func (g *Gate) Release(a domain.Action) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, a)
}

// Busy reports whether the action is in flight.
func (g *Gate) Busy(a domain.Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[a]
}

// Tracker holds pending transactions until they complete or are dismissed.
type Tracker struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.PendingTx
}

func NewTracker() *Tracker {
	return &Tracker{items: make(map[uuid.UUID]*domain.PendingTx)}
}

func (t *Tracker) Add(tx *domain.PendingTx) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[tx.ID] = tx
}

// Dismiss drops local state for id. The underlying write keeps running.
func (t *Tracker) Dismiss(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	return true
}

// Complete removes id and fires OnDone. It returns false when the tx was dismissed.
func (t *Tracker) Complete(id uuid.UUID, err error) bool {
	t.mu.Lock()
	tx, ok := t.items[id]
	delete(t.items, id)
	t.mu.Unlock()

	if !ok {
		return false
	}
	if tx.OnDone != nil {
		tx.OnDone(err)
	}
	return true
}

// List returns copies of the pending transactions, oldest first.
func (t *Tracker) List() []domain.PendingTx {
	t.mu.Lock()
	out := make([]domain.PendingTx, 0, len(t.items))
	for _, tx := range t.items {
		out = append(out, *tx)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.PendingTx) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}
