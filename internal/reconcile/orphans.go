package reconcile

import (
	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
)

// FindOrphans returns the records whose business key is not among plugins,
// in store order. It must run after the whole registry was ingested.
func FindOrphans(plugins []domain.Plugin, pages []store.Page) []domain.DeletionCandidate {
	known := make(map[string]struct{}, len(plugins))
	for i := range plugins {
		known[plugins[i].ID] = struct{}{}
	}

	var out []domain.DeletionCandidate
	seen := make(map[string]struct{})
	for _, page := range pages {
		for _, rec := range page.Records {
			if _, dup := seen[rec.RecordID]; dup {
				continue
			}
			seen[rec.RecordID] = struct{}{}

			if _, ok := known[rec.ID]; ok {
				continue
			}
			out = append(out, domain.DeletionCandidate{
				RecordID: rec.RecordID,
				ID:       rec.ID,
				Name:     rec.Name,
			})
		}
	}
	return out
}
