package domain

import (
	"strings"
	"time"
)

// GitHubBaseURL prefixes a repo path to build the repository link stored on
// records.
const GitHubBaseURL = "https://github.com/"

// Plugin is one catalog entry as known by the upstream registry.
//
// It is built once per run from the published list, enriched by the manifest
// and revision lookups, then treated as read-only input to reconciliation.
type Plugin struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the business key shared with the store record.
	ID string

	// ─────────────────────────────
	// Registry listing
	// ─────────────────────────────

	Name        string
	Description string
	Author      string

	// Repo is always in "owner/name" form.
	Repo string

	// ─────────────────────────────
	// Manifest enrichment
	// ─────────────────────────────

	// FundingURL is empty when the manifest declares none.
	FundingURL string

	// MobileCompatible is the inverse of the manifest's isDesktopOnly flag.
	MobileCompatible bool

	// ─────────────────────────────
	// Revision enrichment
	// ─────────────────────────────

	// LastActivity is the date of the latest upstream commit. Zero when unknown.
	LastActivity time.Time

	// ArchivedUpstream is true when the repository itself is archived.
	ArchivedUpstream bool

	// RevisionTag is the ETag captured by the last successful revision fetch.
	RevisionTag string
}

// RepositoryURL derives the repository link stored on records.
func (p *Plugin) RepositoryURL() string {
	return RepositoryURL(p.Repo)
}

// RepositoryURL builds "https://github.com/{repo}".
func RepositoryURL(repo string) string {
	return GitHubBaseURL + repo
}

// RepoFromURL is the inverse of RepositoryURL. Links that do not point at
// GitHub are returned unchanged.
func RepoFromURL(link string) string {
	return strings.TrimPrefix(link, GitHubBaseURL)
}

// ValidRepo reports whether repo is in "owner/name" form.
func ValidRepo(repo string) bool {
	owner, name, ok := strings.Cut(repo, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}
