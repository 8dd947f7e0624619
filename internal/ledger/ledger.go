// Package ledger is the per-session record of a driver's finished tasks and
// the earnings derived from them. Entries are immutable once inserted except
// for the idempotent overwrite on retried appends.
package ledger

import (
	"sync"

	"github.com/fooddash/courierd/internal/models"
)

// Ledger holds terminal tasks most-recent-first with a derived earnings
// total. Earnings are recomputed on every mutation rather than accumulated,
// so they can never drift from the entries.
type Ledger struct {
	mu       sync.Mutex
	entries  []models.Task
	byID     map[string]int
	earnings int64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{byID: make(map[string]int)}
}

// Append inserts a terminal task at the front. Appending an id that already
// exists (a retry produced a second terminal response) overwrites the stored
// entry in place instead of duplicating it.
func (l *Ledger) Append(t models.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.byID[t.ID]; ok {
		l.entries[i] = t
	} else {
		l.entries = append([]models.Task{t}, l.entries...)
		l.reindex()
	}
	l.recompute()
}

// Hydrate replaces the ledger contents wholesale with the server's history
// snapshot, assumed most-recent-first as the service orders it.
func (l *Ledger) Hydrate(tasks []models.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = l.entries[:0]
	clear(l.byID)
	for _, t := range tasks {
		if _, ok := l.byID[t.ID]; ok {
			continue
		}
		l.entries = append(l.entries, t)
		l.byID[t.ID] = len(l.entries) - 1
	}
	l.recompute()
}

// List returns a copy of the entries, newest first.
func (l *Ledger) List() []models.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Task, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Earnings returns the sum of payouts over delivered entries, in cents.
// Cancelled tasks never contribute.
func (l *Ledger) Earnings() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.earnings
}

func (l *Ledger) reindex() {
	clear(l.byID)
	for i, t := range l.entries {
		l.byID[t.ID] = i
	}
}

func (l *Ledger) recompute() {
	var sum int64
	for _, t := range l.entries {
		if t.Status == models.StatusDelivered {
			sum += t.PayoutCents
		}
	}
	l.earnings = sum
}
