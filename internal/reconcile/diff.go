// Package reconcile decides which catalog records to create, update or
// archive so the store mirrors the plugin registry.
package reconcile

import (
	"strings"
	"time"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
)

// Field names reported in mismatches.
const (
	FieldName         = "name"
	FieldAuthor       = "author"
	FieldDescription  = "description"
	FieldRepository   = "repository"
	FieldFunding      = "funding"
	FieldLastActivity = "last_activity"
	FieldRevisionTag  = "etag"
	FieldTags         = "tags"
	FieldStatus       = "status"
)

// Mismatch is one staged change, rendered for the operator.
type Mismatch struct {
	Field   string
	Current string
	Desired string
}

// Result is the outcome of diffing a plugin against its record.
type Result struct {
	Patch      domain.RecordPatch
	Mismatches []Mismatch
}

// Changed reports whether anything was staged. When false no write is due.
func (r *Result) Changed() bool {
	return !r.Patch.IsEmpty()
}

// Diff compares the record against the values derived from p and stages a
// replacement for every field that differs.
func Diff(p *domain.Plugin, rec domain.Record, now time.Time) Result {
	var res Result
	patch := &res.Patch

	stageText := func(field, current, desired string, dst **string) {
		if current == desired {
			return
		}
		v := desired
		*dst = &v
		res.Mismatches = append(res.Mismatches, Mismatch{field, current, desired})
	}

	stageText(FieldAuthor, rec.Author, p.Author, &patch.Author)
	stageText(FieldDescription, rec.Description, p.Description, &patch.Description)
	stageText(FieldName, rec.Name, p.Name, &patch.Name)
	stageText(FieldRepository, rec.RepositoryURL, p.RepositoryURL(), &patch.RepositoryURL)

	// An empty upstream funding link never clears a stored one.
	if p.FundingURL != "" {
		stageText(FieldFunding, rec.FundingURL, p.FundingURL, &patch.FundingURL)
	}

	if !p.LastActivity.IsZero() {
		current, desired := domain.UniDate(rec.LastActivity), domain.UniDate(p.LastActivity)
		if current != desired {
			t := p.LastActivity
			patch.LastActivity = &t
			res.Mismatches = append(res.Mismatches, Mismatch{FieldLastActivity, current, desired})
		}
	}

	if p.RevisionTag != "" {
		stageText(FieldRevisionTag, rec.RevisionTag, p.RevisionTag, &patch.RevisionTag)
	}

	if tags, ok := platformTags(p, rec.Tags); ok {
		patch.Tags = tags
		res.Mismatches = append(res.Mismatches, Mismatch{FieldTags, tagNames(rec.Tags), tagNames(tags)})
	}

	if status, ok := activityStatus(p, rec, now); ok {
		patch.Status = &status
		res.Mismatches = append(res.Mismatches, Mismatch{FieldStatus, string(rec.Status), string(status)})
	}

	return res
}

// platformTags returns the new tag set when the mobile tag must be added or
// removed. Records carrying the error tag are left alone.
func platformTags(p *domain.Plugin, tags []domain.Tag) ([]domain.Tag, bool) {
	if domain.HasTag(tags, domain.ErrorTagName) {
		return nil, false
	}
	has := domain.HasTag(tags, domain.MobileTagName)
	switch {
	case has && !p.MobileCompatible:
		return domain.WithoutTag(tags, domain.MobileTagName), true
	case !has && p.MobileCompatible:
		out := make([]domain.Tag, 0, len(tags)+1)
		out = append(out, tags...)
		return append(out, domain.MobileTag), true
	}
	return nil, false
}

// activityStatus returns the status to stage, if any. ARCHIVED is sticky.
func activityStatus(p *domain.Plugin, rec domain.Record, now time.Time) (domain.ActivityStatus, bool) {
	desired := domain.DeriveStatus(p, now)
	if !rec.HasStatus() {
		return desired, true
	}
	if rec.Status != desired && rec.Status != domain.StatusArchived {
		return desired, true
	}
	return "", false
}

func tagNames(tags []domain.Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return "[" + strings.Join(names, ",") + "]"
}

// NewRecord builds the record created for a plugin absent from the store.
func NewRecord(p *domain.Plugin, now time.Time) domain.Record {
	return domain.Record{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Author:        p.Author,
		RepositoryURL: p.RepositoryURL(),
		FundingURL:    p.FundingURL,
		Tags:          domain.PlatformTags(p),
		LastActivity:  p.LastActivity,
		Status:        domain.DeriveStatus(p, now),
		RevisionTag:   p.RevisionTag,
	}
}
