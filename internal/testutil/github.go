package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// FakePlugin is one entry of the fake community list.
type FakePlugin struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Repo        string `json:"repo"`
}

// FakeCommit is the head commit of a fake repository.
type FakeCommit struct {
	ETag string
	Date time.Time
}

// FakeGitHub serves the plugin list, manifests, commits and repository
// metadata. Raw content lives under RawURL, the REST API under APIURL.
type FakeGitHub struct {
	Server  *httptest.Server
	RawURL  string
	APIURL  string
	ListURL string

	mu sync.Mutex
	// Plugins is the published list, in order.
	Plugins []FakePlugin
	// Manifests maps repo -> branch -> manifest document.
	Manifests map[string]map[string]any
	// Commits maps repo -> head commit.
	Commits map[string]FakeCommit
	// Archived maps repo -> archived flag.
	Archived map[string]bool
	// RateLimited makes every API call answer 403 with an exhausted quota.
	RateLimited bool
	// FailCommits makes commit lookups answer 500.
	FailCommits bool

	ManifestCalls  map[string]int // repo/branch -> calls
	CommitCalls    map[string]int // repo -> calls
	NotModified    map[string]int // repo -> 304 answers
	RepoCalls      map[string]int // repo -> calls
	RepoNotMod     map[string]int // repo -> 304 answers
	LastAuthHeader string
}

// NewFakeGitHub starts a fake GitHub and stops it when the test ends.
func NewFakeGitHub(t *testing.T) *FakeGitHub {
	t.Helper()

	f := &FakeGitHub{
		Manifests:     map[string]map[string]any{},
		Commits:       map[string]FakeCommit{},
		Archived:      map[string]bool{},
		ManifestCalls: map[string]int{},
		CommitCalls:   map[string]int{},
		NotModified:   map[string]int{},
		RepoCalls:     map[string]int{},
		RepoNotMod:    map[string]int{},
	}

	r := chi.NewRouter()
	r.Get("/raw/list.json", f.list)
	r.Get("/raw/{owner}/{repo}/{branch}/manifest.json", f.manifest)
	r.Get("/api/repos/{owner}/{repo}/commits", f.commits)
	r.Get("/api/repos/{owner}/{repo}", f.repository)

	f.Server = httptest.NewServer(r)
	f.RawURL = f.Server.URL + "/raw"
	f.APIURL = f.Server.URL + "/api"
	f.ListURL = f.RawURL + "/list.json"
	t.Cleanup(f.Server.Close)
	return f
}

// AddPlugin registers a plugin with its manifest on branch, and its head
// commit when date is non-zero.
func (f *FakeGitHub) AddPlugin(p FakePlugin, branch string, manifest map[string]any, commit FakeCommit) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Plugins = append(f.Plugins, p)
	if f.Manifests[p.Repo] == nil {
		f.Manifests[p.Repo] = map[string]any{}
	}
	f.Manifests[p.Repo][branch] = manifest
	if !commit.Date.IsZero() {
		f.Commits[p.Repo] = commit
	}
}

// SetCommit replaces the head commit of repo.
func (f *FakeGitHub) SetCommit(repo string, c FakeCommit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commits[repo] = c
}

// RemovePlugin drops a plugin from the published list.
func (f *FakeGitHub) RemovePlugin(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.Plugins[:0]
	for _, p := range f.Plugins {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.Plugins = kept
}

// RepoTag is the ETag the repository endpoint currently serves for repo.
func (f *FakeGitHub) RepoTag(repo string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repoETag(repo)
}

// The tag changes whenever the archived flag does.
func (f *FakeGitHub) repoETag(repo string) string {
	return fmt.Sprintf(`"%s-%t"`, repo, f.Archived[repo])
}

// SetArchived flips the archived flag of repo.
func (f *FakeGitHub) SetArchived(repo string, archived bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Archived[repo] = archived
}

// Calls returns a snapshot of the commit and 304 counters for repo.
func (f *FakeGitHub) Calls(repo string) (commits, notModified int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CommitCalls[repo], f.NotModified[repo]
}

func (f *FakeGitHub) list(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.Plugins)
}

func (f *FakeGitHub) manifest(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
	branch := chi.URLParam(r, "branch")
	f.ManifestCalls[repo+"/"+branch]++

	m, ok := f.Manifests[repo][branch]
	if !ok {
		http.Error(w, "404: Not Found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (f *FakeGitHub) commits(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
	f.CommitCalls[repo]++
	f.LastAuthHeader = r.Header.Get("Authorization")

	if f.rateLimited(w) {
		return
	}
	if f.FailCommits {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
		return
	}

	c, ok := f.Commits[repo]
	if !ok {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == c.ETag {
		f.NotModified[repo]++
		w.Header().Set("ETag", c.ETag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", c.ETag)
	w.Header().Set("X-RateLimit-Remaining", "4999")
	writeJSON(w, http.StatusOK, []map[string]any{{
		"sha": "deadbeef",
		"commit": map[string]any{
			"author": map[string]any{"date": c.Date.UTC().Format(time.RFC3339)},
		},
	}})
}

func (f *FakeGitHub) repository(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	repo := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
	f.RepoCalls[repo]++
	if f.rateLimited(w) {
		return
	}

	etag := f.repoETag(repo)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		f.RepoNotMod[repo]++
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"full_name": repo,
		"archived":  f.Archived[repo],
	})
}

func (f *FakeGitHub) rateLimited(w http.ResponseWriter) bool {
	if !f.RateLimited {
		return false
	}
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	writeJSON(w, http.StatusForbidden, map[string]string{"message": "API rate limit exceeded"})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("testutil: encode response: %v", err))
	}
}
