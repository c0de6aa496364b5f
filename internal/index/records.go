package index

import (
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
)

// DuplicateKeyError records a business key held by more than one store
// record. The first record wins; the others are listed in Shadowed.
type DuplicateKeyError struct {
	ID       string
	Winner   string   // RecordID kept by the index
	Shadowed []string // RecordIDs ignored by identity resolution
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("business key %q held by %d records, using %s",
		e.ID, len(e.Shadowed)+1, e.Winner)
}

// RecordIndex maps business keys to store records for one run.
// It is built once from the paginated store contents.
type RecordIndex struct {
	mu         sync.RWMutex
	byKey      map[string]*domain.Record // business key -> first record
	byRecordID map[string]*domain.Record // RecordID -> record
	order      []string                  // RecordIDs, store order
	duplicates map[string]*DuplicateKeyError
}

// New creates an empty index.
func New() *RecordIndex {
	return &RecordIndex{
		byKey:      make(map[string]*domain.Record),
		byRecordID: make(map[string]*domain.Record),
		duplicates: make(map[string]*DuplicateKeyError),
	}
}

// FromPages builds an index over every record of pages, in order.
func FromPages(pages []store.Page) *RecordIndex {
	idx := New()
	for _, p := range pages {
		for i := range p.Records {
			idx.Add(p.Records[i])
		}
	}
	return idx
}

// Add inserts a record. A record id seen before is ignored, which absorbs
// stores whose cursors may repeat entries.
func (idx *RecordIndex) Add(rec domain.Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, seen := idx.byRecordID[rec.RecordID]; seen {
		return
	}
	r := rec
	idx.byRecordID[r.RecordID] = &r
	idx.order = append(idx.order, r.RecordID)

	first, taken := idx.byKey[r.ID]
	if !taken {
		idx.byKey[r.ID] = &r
		return
	}
	dup, ok := idx.duplicates[r.ID]
	if !ok {
		dup = &DuplicateKeyError{ID: r.ID, Winner: first.RecordID}
		idx.duplicates[r.ID] = dup
	}
	dup.Shadowed = append(dup.Shadowed, r.RecordID)
}

// Replace swaps the stored copy of an indexed record. Unknown record ids
// are ignored.
func (idx *RecordIndex) Replace(rec domain.Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if r, ok := idx.byRecordID[rec.RecordID]; ok {
		*r = rec
	}
}

// Find returns the store id of the record holding business key id.
func (idx *RecordIndex) Find(id string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	r, ok := idx.byKey[id]
	if !ok {
		return "", false
	}
	return r.RecordID, true
}

// Get returns the record with the given store id.
func (idx *RecordIndex) Get(recordID string) (domain.Record, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	r, ok := idx.byRecordID[recordID]
	if !ok {
		return domain.Record{}, false
	}
	return *r, true
}

// All returns every record in store order, duplicates included.
func (idx *RecordIndex) All() []domain.Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.Record, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, *idx.byRecordID[id])
	}
	return out
}

// Count returns the number of distinct records.
func (idx *RecordIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.order)
}

// Duplicates lists the business keys held by several records, in store order.
func (idx *RecordIndex) Duplicates() []DuplicateKeyError {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]DuplicateKeyError, 0, len(idx.duplicates))
	seen := make(map[string]bool, len(idx.duplicates))
	for _, rid := range idx.order {
		key := idx.byRecordID[rid].ID
		if dup, ok := idx.duplicates[key]; ok && !seen[key] {
			seen[key] = true
			out = append(out, *dup)
		}
	}
	return out
}

// Find scans pages in order and returns the store id of the first record
// whose business key equals id. It is the linear form of RecordIndex.Find.
func Find(pages []store.Page, id string) (string, bool) {
	for _, p := range pages {
		for _, r := range p.Records {
			if r.ID == id {
				return r.RecordID, true
			}
		}
	}
	return "", false
}
