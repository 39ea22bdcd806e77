package memory

import (
	"context"
	"sync"

	"github.com/classup/rental-desk/internal/domain/inventory"
)

// Directory is a BorrowerDirectory backed by a map.
type Directory struct {
	mu     sync.RWMutex
	people map[string]inventory.Borrower
}

var _ inventory.BorrowerDirectory = (*Directory)(nil)

// NewDirectory creates a directory seeded with people.
func NewDirectory(people ...inventory.Borrower) *Directory {
	d := &Directory{people: make(map[string]inventory.Borrower, len(people))}
	for _, p := range people {
		d.people[p.ID] = p
	}
	return d
}

// Put adds or replaces a borrower.
func (d *Directory) Put(b inventory.Borrower) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.people[b.ID] = b
}

// Lookup implements inventory.BorrowerDirectory.
func (d *Directory) Lookup(ctx context.Context, ids []string) (map[string]inventory.Borrower, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]inventory.Borrower, len(ids))
	for _, id := range ids {
		if b, ok := d.people[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}
