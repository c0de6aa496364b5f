package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/index"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/report"
	"github.com/MrSnakeDoc/catalogsync/internal/sources/registry"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
)

// Source yields the enriched registry plugins of one run.
type Source interface {
	Ingest(ctx context.Context, limit int, cache registry.RevisionCache) ([]domain.Plugin, registry.IngestStats, error)
}

// Options tunes a run.
type Options struct {
	// Limit keeps only the first Limit registry entries. 0 keeps all.
	// A truncated run never archives.
	Limit int
	// SkipArchive reports orphans without archiving them.
	SkipArchive bool
	// Seed plugins are appended after ingestion.
	Seed []domain.Plugin
}

// Summary counts what one run did.
type Summary struct {
	Pages            int
	Records          int
	Fetched          int
	Created          int
	Updated          int
	Unchanged        int
	Orphans          int
	Archived         int
	RevisionsReused  int
	RevisionFailures int
	Duplicates       int
}

// Syncer runs one reconciliation pass. Runs are sequential and assume they
// are the only writer of the store.
type Syncer struct {
	store    store.Store
	source   Source
	reporter report.Reporter
	log      logger.Logger
	opts     Options

	// Now is the clock used for status derivation.
	Now func() time.Time
}

// NewSyncer wires a syncer. A nil reporter discards progress.
func NewSyncer(st store.Store, src Source, rep report.Reporter, log logger.Logger, opts Options) *Syncer {
	if rep == nil {
		rep = report.Nop{}
	}
	return &Syncer{
		store:    st,
		source:   src,
		reporter: rep,
		log:      log.With(logger.String("component", "reconcile")),
		opts:     opts,
		Now:      time.Now,
	}
}

// Run reads the store, ingests the registry, then creates or updates one
// record per plugin and archives the orphans. The first failed read or write
// aborts the run; the summary then reflects what was done so far.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	now := s.Now()

	// 1. Store snapshot
	s.reporter.Start("Fetching database...")
	pages, err := store.FetchAll(ctx, s.store)
	if err != nil {
		s.reporter.Fail("Could not read the database")
		return sum, fmt.Errorf("failed to read store: %w", err)
	}
	idx := index.FromPages(pages)
	sum.Pages = len(pages)
	sum.Records = idx.Count()

	for _, dup := range idx.Duplicates() {
		s.log.Warn("duplicate business key, first record wins",
			logger.String("id", dup.ID),
			logger.String("record_id", dup.Winner),
			logger.Strings("ignored", dup.Shadowed))
		sum.Duplicates++
	}
	s.reporter.Succeed(fmt.Sprintf("Fetched %d records across %d pages", sum.Records, sum.Pages))

	// 2. Registry
	s.reporter.Start("Fetching plugins...")
	plugins, stats, err := s.source.Ingest(ctx, s.opts.Limit, registry.CacheFromRecords(idx.All()))
	if err != nil {
		s.reporter.Fail("Could not fetch plugins")
		return sum, fmt.Errorf("failed to ingest registry: %w", err)
	}
	plugins = s.appendSeed(plugins)
	sum.Fetched = len(plugins)
	sum.RevisionsReused = stats.RevisionsReused
	sum.RevisionFailures = stats.RevisionFailures
	s.reporter.Succeed(fmt.Sprintf("Fetched %d plugins (%d revisions reused)", sum.Fetched, sum.RevisionsReused))

	// 3. Create or update
	for i := range plugins {
		p := &plugins[i]
		recordID, found := idx.Find(p.ID)
		if !found {
			if err := s.create(ctx, idx, p, now); err != nil {
				s.reporter.Fail(fmt.Sprintf("Failed to create %s", p.ID))
				return sum, err
			}
			sum.Created++
			continue
		}

		updated, err := s.update(ctx, idx, p, recordID, now)
		if err != nil {
			s.reporter.Fail(fmt.Sprintf("Failed to update %s", p.ID))
			return sum, err
		}
		if updated {
			sum.Updated++
		} else {
			sum.Unchanged++
		}
	}
	s.reporter.Succeed(fmt.Sprintf("Created %d, updated %d, unchanged %d", sum.Created, sum.Updated, sum.Unchanged))

	// 4. Orphans
	orphans := FindOrphans(plugins, pages)
	sum.Orphans = len(orphans)
	if len(orphans) == 0 {
		return sum, nil
	}

	truncated := s.opts.Limit > 0 && stats.Listed > s.opts.Limit
	if s.opts.SkipArchive || truncated {
		for _, o := range orphans {
			s.log.Info("orphan record left in place",
				logger.String("id", o.ID),
				logger.String("name", o.Name),
				logger.String("record_id", o.RecordID),
				logger.Bool("truncated_run", truncated))
		}
		s.reporter.Info(fmt.Sprintf("%d orphan records found, archival skipped", len(orphans)))
		return sum, nil
	}

	s.reporter.Start(fmt.Sprintf("Archiving %d orphan records...", len(orphans)))
	for _, o := range orphans {
		if err := s.store.Archive(ctx, o.RecordID); err != nil {
			s.reporter.Fail(fmt.Sprintf("Failed to archive %s", o.ID))
			return sum, fmt.Errorf("failed to archive %s (%s): %w", o.ID, o.RecordID, err)
		}
		sum.Archived++
		s.log.Info("record archived",
			logger.String("id", o.ID),
			logger.String("name", o.Name),
			logger.String("record_id", o.RecordID))
	}
	s.reporter.Succeed(fmt.Sprintf("Archived %d records", sum.Archived))

	return sum, nil
}

func (s *Syncer) create(ctx context.Context, idx *index.RecordIndex, p *domain.Plugin, now time.Time) error {
	rec := NewRecord(p, now)
	recordID, err := s.store.Create(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p.ID, err)
	}
	rec.RecordID = recordID
	idx.Add(rec)

	s.log.Info("record created",
		logger.String("id", p.ID),
		logger.String("record_id", recordID),
		logger.String("status", string(rec.Status)))
	return nil
}

func (s *Syncer) update(ctx context.Context, idx *index.RecordIndex, p *domain.Plugin, recordID string, now time.Time) (bool, error) {
	rec, _ := idx.Get(recordID)
	res := Diff(p, rec, now)
	if !res.Changed() {
		s.log.Info("record up to date, no write", logger.String("id", p.ID))
		return false, nil
	}

	for _, m := range res.Mismatches {
		s.log.Info("mismatch",
			logger.String("id", p.ID),
			logger.String("field", m.Field),
			logger.String("current", m.Current),
			logger.String("desired", m.Desired))
	}
	if err := s.store.Update(ctx, recordID, res.Patch); err != nil {
		return false, fmt.Errorf("failed to update %s (%s): %w", p.ID, recordID, err)
	}
	res.Patch.Apply(&rec)
	idx.Replace(rec)

	s.log.Info("record updated",
		logger.String("id", p.ID),
		logger.String("record_id", recordID),
		logger.Int("fields", len(res.Mismatches)))
	return true, nil
}

// appendSeed adds the seed plugins whose id is not already listed upstream.
func (s *Syncer) appendSeed(plugins []domain.Plugin) []domain.Plugin {
	if len(s.opts.Seed) == 0 {
		return plugins
	}
	listed := make(map[string]bool, len(plugins))
	for i := range plugins {
		listed[plugins[i].ID] = true
	}
	for _, sp := range s.opts.Seed {
		if listed[sp.ID] {
			s.log.Warn("seed plugin already listed upstream, ignored", logger.String("id", sp.ID))
			continue
		}
		listed[sp.ID] = true
		plugins = append(plugins, sp)
	}
	return plugins
}
