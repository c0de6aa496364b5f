package seed

import (
	"fmt"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
)

// Plugins converts the seed entries to domain plugins, in file order.
// Entries without an id or with a malformed repo are rejected.
func (f File) Plugins() ([]domain.Plugin, error) {
	plugins := make([]domain.Plugin, 0, len(f.Entries))
	seen := make(map[string]bool, len(f.Entries))

	for i, e := range f.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("seed entry %d: missing id", i)
		}
		if !domain.ValidRepo(e.Repo) {
			return nil, fmt.Errorf("seed entry %s: repo %q is not owner/name", e.ID, e.Repo)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("seed entry %s: duplicate id", e.ID)
		}
		seen[e.ID] = true

		last, err := domain.ParseTimestamp(e.LastActivity)
		if err != nil {
			return nil, fmt.Errorf("seed entry %s: %w", e.ID, err)
		}

		plugins = append(plugins, domain.Plugin{
			ID:               e.ID,
			Name:             e.Name,
			Description:      e.Description,
			Author:           e.Author,
			Repo:             e.Repo,
			FundingURL:       e.FundingURL,
			MobileCompatible: !e.DesktopOnly,
			LastActivity:     last,
			ArchivedUpstream: e.Archived,
			RevisionTag:      e.RevisionTag,
		})
	}
	return plugins, nil
}

// LoadPlugins reads path and returns its plugins.
func LoadPlugins(path string) ([]domain.Plugin, error) {
	f, err := NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	return f.Plugins()
}
