package domain

import "time"

// Record is one row of the remote catalog store, projected into typed fields.
type Record struct {
	// RecordID is assigned by the store and opaque to the engine.
	RecordID string

	// ID mirrors Plugin.ID and is unique among non-archived records.
	ID string

	Name          string
	Description   string
	Author        string
	RepositoryURL string
	FundingURL    string

	// Tags is a set; order carries no meaning.
	Tags []Tag

	// LastActivity is zero when the store holds an empty date.
	LastActivity time.Time

	// Status is empty when the record carries no activity-status tag yet.
	Status ActivityStatus

	RevisionTag string
}

// HasStatus reports whether an activity-status tag is set.
func (r *Record) HasStatus() bool {
	return r.Status != ""
}

// RecordPatch holds the staged field replacements for one record. Nil fields
// are left untouched by the store.
type RecordPatch struct {
	Name          *string
	Description   *string
	Author        *string
	RepositoryURL *string
	FundingURL    *string

	// Tags, when non-nil, replaces the whole tag set.
	Tags []Tag

	LastActivity *time.Time
	Status       *ActivityStatus
	RevisionTag  *string
}

// IsEmpty reports whether nothing was staged.
func (p *RecordPatch) IsEmpty() bool {
	return p.Name == nil &&
		p.Description == nil &&
		p.Author == nil &&
		p.RepositoryURL == nil &&
		p.FundingURL == nil &&
		p.Tags == nil &&
		p.LastActivity == nil &&
		p.Status == nil &&
		p.RevisionTag == nil
}

// Apply writes the staged values onto r. Stores without partial updates use
// it to merge a patch into the stored record.
func (p *RecordPatch) Apply(r *Record) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Author != nil {
		r.Author = *p.Author
	}
	if p.RepositoryURL != nil {
		r.RepositoryURL = *p.RepositoryURL
	}
	if p.FundingURL != nil {
		r.FundingURL = *p.FundingURL
	}
	if p.Tags != nil {
		r.Tags = append([]Tag(nil), p.Tags...)
	}
	if p.LastActivity != nil {
		r.LastActivity = *p.LastActivity
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.RevisionTag != nil {
		r.RevisionTag = *p.RevisionTag
	}
}

// DeletionCandidate is a store record whose business key vanished from the
// registry. It only lives for the duration of a run.
type DeletionCandidate struct {
	RecordID string
	ID       string
	Name     string
}
