// Package store defines the catalog store collaborator used by the
// reconciliation engine.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
)

// ErrRecordNotFound is returned when a record id is unknown to the store.
var ErrRecordNotFound = errors.New("record not found")

// Page is one chunk of a paginated store read.
type Page struct {
	Records    []domain.Record
	HasMore    bool
	NextCursor string
}

// Store is the remote structured store holding the catalog.
type Store interface {
	// Query returns the page starting at cursor ("" for the first page).
	// Archived records are never returned.
	Query(ctx context.Context, cursor string) (Page, error)

	// Create inserts a record and returns the store-assigned id.
	Create(ctx context.Context, rec domain.Record) (string, error)

	// Update applies the staged fields of patch to the record.
	Update(ctx context.Context, recordID string, patch domain.RecordPatch) error

	// Archive soft-deletes the record. It stays readable by id.
	Archive(ctx context.Context, recordID string) error
}

// FetchAll drains every page of s, in order.
func FetchAll(ctx context.Context, s Store) ([]Page, error) {
	var pages []Page
	cursor := ""
	for {
		page, err := s.Query(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to query page %d: %w", len(pages)+1, err)
		}
		pages = append(pages, page)
		if !page.HasMore {
			return pages, nil
		}
		if page.NextCursor == "" || page.NextCursor == cursor {
			return nil, fmt.Errorf("store reported more pages without a usable cursor after page %d", len(pages))
		}
		cursor = page.NextCursor
	}
}

// CountRecords returns the number of records across pages.
func CountRecords(pages []Page) int {
	n := 0
	for _, p := range pages {
		n += len(p.Records)
	}
	return n
}
