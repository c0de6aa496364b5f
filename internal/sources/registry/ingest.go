package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
)

// CachedRevision is what the store remembers of a plugin's last revision.
type CachedRevision struct {
	Tag          string // commits ETag
	RepoTag      string // repository ETag, empty until the archived flag was read
	LastActivity time.Time
	Archived     bool
}

// The stored revision tag carries the commits ETag, followed by the
// repository ETag when one is known. ETags never contain spaces.
func joinTags(commits, repo string) string {
	if repo == "" {
		return commits
	}
	return commits + " " + repo
}

func splitTags(tag string) (commits, repo string) {
	commits, repo, _ = strings.Cut(tag, " ")
	return commits, repo
}

// RevisionCache maps plugin id to its last observed revision.
type RevisionCache map[string]CachedRevision

// CacheFromRecords collects the revision fields of every record carrying a
// revision tag, an activity date or the ARCHIVED status. The first record of a
// duplicated id wins.
func CacheFromRecords(recs []domain.Record) RevisionCache {
	cache := make(RevisionCache, len(recs))
	for _, r := range recs {
		archived := r.Status == domain.StatusArchived
		if r.RevisionTag == "" && r.LastActivity.IsZero() && !archived {
			continue
		}
		if _, ok := cache[r.ID]; ok {
			continue
		}
		commits, repo := splitTags(r.RevisionTag)
		cache[r.ID] = CachedRevision{
			Tag:          commits,
			RepoTag:      repo,
			LastActivity: r.LastActivity,
			Archived:     archived,
		}
	}
	return cache
}

// IngestStats counts how revisions were resolved during one ingestion.
type IngestStats struct {
	Listed           int
	Ingested         int
	Skipped          int // malformed list entries
	RevisionsReused  int // upstream answered 304
	RevisionsFetched int
	RevisionFailures int // lookup failed, cached values kept
	ArchivedChecked  int
	ArchivedReused   int // repository answered 304 or the record is already ARCHIVED
}

// Ingestor turns the published list into fully enriched plugins.
type Ingestor struct {
	client        *Client
	log           logger.Logger
	checkArchived bool
}

// NewIngestor builds an ingestor. When checkArchived is set, every plugin not
// yet ARCHIVED costs one more conditional API call to read the repository
// archived flag.
func NewIngestor(client *Client, checkArchived bool, log logger.Logger) *Ingestor {
	return &Ingestor{
		client:        client,
		log:           log.With(logger.String("component", "registry")),
		checkArchived: checkArchived,
	}
}

// Ingest fetches the list, keeps the first limit entries (all when limit <= 0)
// and enriches each one in order. A list or manifest failure aborts.
func (in *Ingestor) Ingest(ctx context.Context, limit int, cache RevisionCache) ([]domain.Plugin, IngestStats, error) {
	var stats IngestStats

	entries, err := in.client.FetchList(ctx)
	if err != nil {
		return nil, stats, err
	}
	stats.Listed = len(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	plugins := make([]domain.Plugin, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" || !domain.ValidRepo(e.Repo) {
			stats.Skipped++
			in.log.Warn("skipping malformed list entry",
				logger.String("id", e.ID),
				logger.String("repo", e.Repo))
			continue
		}
		p, err := in.enrich(ctx, e, cache[e.ID], &stats)
		if err != nil {
			return nil, stats, err
		}
		plugins = append(plugins, p)
	}
	stats.Ingested = len(plugins)

	in.log.Info("registry ingested",
		logger.Int("listed", stats.Listed),
		logger.Int("ingested", stats.Ingested),
		logger.Int("revisions_reused", stats.RevisionsReused),
		logger.Int("revisions_fetched", stats.RevisionsFetched),
		logger.Int("revision_failures", stats.RevisionFailures),
		logger.Int("archived_checked", stats.ArchivedChecked),
		logger.Int("archived_reused", stats.ArchivedReused))
	return plugins, stats, nil
}

func (in *Ingestor) enrich(ctx context.Context, e Entry, cached CachedRevision, stats *IngestStats) (domain.Plugin, error) {
	p := domain.Plugin{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Author:      e.Author,
		Repo:        e.Repo,
	}

	m, err := in.client.FetchManifest(ctx, e.Repo)
	if err != nil {
		return domain.Plugin{}, fmt.Errorf("plugin %s: %w", e.ID, err)
	}
	p.MobileCompatible = !m.DesktopOnly
	p.FundingURL = m.FundingURL

	rev, err := in.client.FetchRevision(ctx, e.Repo, cached.Tag)
	commitTag := rev.Tag
	switch {
	case err != nil:
		stats.RevisionFailures++
		in.log.Warn("revision fetch failed, keeping cached values",
			logger.String("id", e.ID),
			logger.String("repo", e.Repo),
			logger.Bool("rate_limited", errors.Is(err, ErrRateLimited)),
			logger.Error(err))
		commitTag = cached.Tag
		p.LastActivity = cached.LastActivity
	case rev.Unchanged:
		stats.RevisionsReused++
		in.log.Debug("revision unchanged", logger.String("id", e.ID))
		p.LastActivity = cached.LastActivity
	default:
		stats.RevisionsFetched++
		p.LastActivity = rev.LastActivity
	}

	repoTag := ""
	if in.checkArchived {
		repoTag = in.archived(ctx, e, cached, &p, stats)
	}
	p.RevisionTag = joinTags(commitTag, repoTag)

	return p, nil
}

// archived resolves p.ArchivedUpstream and returns the repository tag to keep.
// ARCHIVED never reverts, so an archived record costs no request.
func (in *Ingestor) archived(ctx context.Context, e Entry, cached CachedRevision, p *domain.Plugin, stats *IngestStats) string {
	if cached.Archived {
		stats.ArchivedReused++
		p.ArchivedUpstream = true
		return cached.RepoTag
	}

	st, err := in.client.FetchArchived(ctx, e.Repo, cached.RepoTag)
	switch {
	case err != nil:
		in.log.Warn("archived lookup failed",
			logger.String("id", e.ID),
			logger.Bool("rate_limited", errors.Is(err, ErrRateLimited)),
			logger.Error(err))
		return cached.RepoTag
	case st.Unchanged:
		stats.ArchivedReused++
		return cached.RepoTag
	default:
		stats.ArchivedChecked++
		p.ArchivedUpstream = st.Archived
		return st.Tag
	}
}
