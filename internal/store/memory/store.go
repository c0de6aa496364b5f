// Package memory is an in-process catalog store. It backs tests and local
// runs that should not touch a remote database.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
)

// DefaultPageSize mirrors the Notion API maximum.
const DefaultPageSize = 100

// Store keeps records in insertion order.
type Store struct {
	mu       sync.RWMutex
	pageSize int
	order    []string                  // record ids, insertion order
	records  map[string]*domain.Record // RecordID -> Record
	archived map[string]bool
	counts   Counts
}

// Counts tallies the writes a Store received.
type Counts struct {
	Creates  int
	Updates  int
	Archives int
}

// New creates an empty store. pageSize <= 0 uses DefaultPageSize.
func New(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		pageSize: pageSize,
		records:  make(map[string]*domain.Record),
		archived: make(map[string]bool),
	}
}

// Seed inserts records without counting them as writes. Records lacking a
// RecordID get one.
func (s *Store) Seed(recs ...domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if r.RecordID == "" {
			r.RecordID = uuid.NewString()
		}
		rec := r
		s.records[rec.RecordID] = &rec
		s.order = append(s.order, rec.RecordID)
	}
}

// Query implements store.Store. The cursor is the offset into the active
// records.
func (s *Store) Query(_ context.Context, cursor string) (store.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return store.Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = n
	}

	active := s.activeIDs()
	if offset > len(active) {
		offset = len(active)
	}
	end := offset + s.pageSize
	if end > len(active) {
		end = len(active)
	}

	page := store.Page{Records: make([]domain.Record, 0, end-offset)}
	for _, id := range active[offset:end] {
		page.Records = append(page.Records, cloneRecord(s.records[id]))
	}
	if end < len(active) {
		page.HasMore = true
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// Create implements store.Store.
func (s *Store) Create(_ context.Context, rec domain.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.RecordID = uuid.NewString()
	stored := cloneRecord(&rec)
	s.records[rec.RecordID] = &stored
	s.order = append(s.order, rec.RecordID)
	s.counts.Creates++
	return rec.RecordID, nil
}

// Update implements store.Store.
func (s *Store) Update(_ context.Context, recordID string, patch domain.RecordPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrRecordNotFound, recordID)
	}
	patch.Apply(rec)
	s.counts.Updates++
	return nil
}

// Archive implements store.Store.
func (s *Store) Archive(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[recordID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrRecordNotFound, recordID)
	}
	s.archived[recordID] = true
	s.counts.Archives++
	return nil
}

// Get returns a record by id, archived or not.
func (s *Store) Get(recordID string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordID]
	if !ok {
		return domain.Record{}, false
	}
	return cloneRecord(rec), true
}

// IsArchived reports whether the record was archived.
func (s *Store) IsArchived(recordID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.archived[recordID]
}

// Counts returns a snapshot of the write counters.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counts
}

// Writes returns the total number of writes issued.
func (s *Store) Writes() int {
	c := s.Counts()
	return c.Creates + c.Updates + c.Archives
}

// ResetCounters zeroes the write counters.
func (s *Store) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts = Counts{}
}

func (s *Store) activeIDs() []string {
	ids := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if !s.archived[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func cloneRecord(r *domain.Record) domain.Record {
	out := *r
	out.Tags = append([]domain.Tag(nil), r.Tags...)
	return out
}
