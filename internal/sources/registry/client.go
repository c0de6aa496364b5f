// Package registry reads the community plugin registry: the published list,
// per-plugin manifests and repository revision history.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/utils"
	"github.com/MrSnakeDoc/catalogsync/internal/version"
)

const (
	DefaultRawURL  = "https://raw.githubusercontent.com"
	DefaultAPIURL  = "https://api.github.com"
	DefaultListURL = DefaultRawURL + "/obsidianmd/obsidian-releases/master/community-plugins.json"
)

// DefaultBranches are tried in order when fetching a manifest.
var DefaultBranches = []string{"master", "main"}

var (
	// ErrNotFound is returned when the upstream answers 404.
	ErrNotFound = errors.New("not found upstream")
	// ErrRateLimited is returned when the API quota is exhausted.
	ErrRateLimited = errors.New("github rate limit exceeded")
)

// RateLimitError carries the instant the quota resets.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s (resets at %s)", ErrRateLimited, e.Reset.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// StatusError is any other non-2xx upstream answer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Entry is one item of the published plugin list.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Repo        string `json:"repo"`
}

// Manifest holds the manifest fields the catalog cares about.
type Manifest struct {
	DesktopOnly bool
	FundingURL  string
}

type manifestDoc struct {
	IsDesktopOnly bool            `json:"isDesktopOnly"`
	FundingURL    json.RawMessage `json:"fundingUrl"`
}

// Revision is the outcome of a conditional revision lookup.
type Revision struct {
	// Unchanged is true when the upstream answered 304 to the supplied tag.
	Unchanged bool
	Tag       string
	// LastActivity is zero when the repository has no commits.
	LastActivity time.Time
}

type commitDoc struct {
	Commit struct {
		Author struct {
			Date string `json:"date"`
		} `json:"author"`
		Committer struct {
			Date string `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// Options configures a Client. Zero values fall back to the public endpoints.
type Options struct {
	ListURL  string
	RawURL   string
	APIURL   string
	Token    string
	Branches []string
	Timeout  time.Duration

	HTTPClient *http.Client
}

// Client talks to GitHub raw content and the GitHub REST API.
type Client struct {
	http     *http.Client
	listURL  string
	rawURL   string
	apiURL   string
	token    string
	branches []string
	log      logger.Logger
}

// NewClient builds a client from opts.
func NewClient(opts Options, log logger.Logger) *Client {
	c := &Client{
		http:     opts.HTTPClient,
		listURL:  opts.ListURL,
		rawURL:   strings.TrimRight(opts.RawURL, "/"),
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		token:    opts.Token,
		branches: opts.Branches,
		log:      log,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.listURL == "" {
		c.listURL = DefaultListURL
	}
	if c.rawURL == "" {
		c.rawURL = DefaultRawURL
	}
	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}
	if len(c.branches) == 0 {
		c.branches = DefaultBranches
	}
	return c
}

// FetchList returns the published plugin list in upstream order.
func (c *Client) FetchList(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := c.getJSON(ctx, c.listURL, false, &entries); err != nil {
		return nil, fmt.Errorf("fetch plugin list: %w", err)
	}
	return entries, nil
}

// FetchManifest reads manifest.json of repo, trying each configured branch in
// order. The last error is returned when every branch fails.
func (c *Client) FetchManifest(ctx context.Context, repo string) (Manifest, error) {
	var lastErr error
	for i, branch := range c.branches {
		url := fmt.Sprintf("%s/%s/%s/manifest.json", c.rawURL, repo, branch)

		var doc manifestDoc
		err := c.getJSON(ctx, url, false, &doc)
		if err == nil {
			return Manifest{DesktopOnly: doc.IsDesktopOnly, FundingURL: c.fundingURL(repo, doc.FundingURL)}, nil
		}
		lastErr = err
		if i < len(c.branches)-1 {
			c.log.Debug("manifest lookup failed, trying next branch",
				logger.String("repo", repo),
				logger.String("branch", branch),
				logger.Error(err))
		}
	}
	return Manifest{}, fmt.Errorf("manifest of %s on %s: %w", repo, strings.Join(c.branches, ","), lastErr)
}

// fundingURL accepts either a string or an object of named links, in which
// case the first string value in document order is used. Anything else means
// no funding link.
func (c *Client) fundingURL(repo string, raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		c.log.Warn("ignoring fundingUrl, not a string or an object",
			logger.String("repo", repo))
		return ""
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			break
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			break
		}
		var link string
		if string(value) == "null" || json.Unmarshal(value, &link) != nil {
			c.log.Warn("ignoring non-string fundingUrl entry",
				logger.String("repo", repo),
				logger.String("key", fmt.Sprint(key)))
			continue
		}
		return link
	}
	return ""
}

// FetchRevision reads the head commit of repo. When etag is non-empty the
// request is conditional and a 304 yields Revision{Unchanged: true}.
func (c *Client) FetchRevision(ctx context.Context, repo, etag string) (Revision, error) {
	url := fmt.Sprintf("%s/repos/%s/commits?per_page=1", c.apiURL, repo)

	var commits []commitDoc
	tag, unchanged, err := c.getConditional(ctx, url, repo, etag, &commits)
	if err != nil {
		return Revision{}, err
	}
	if unchanged {
		return Revision{Unchanged: true, Tag: etag}, nil
	}

	rev := Revision{Tag: tag}
	if len(commits) == 0 {
		return rev, nil
	}
	date := commits[0].Commit.Author.Date
	if date == "" {
		date = commits[0].Commit.Committer.Date
	}
	if rev.LastActivity, err = domain.ParseTimestamp(date); err != nil {
		return Revision{}, fmt.Errorf("commit date of %s: %w", repo, err)
	}
	return rev, nil
}

// RepoStatus is the outcome of a conditional repository lookup.
type RepoStatus struct {
	// Unchanged is true when the upstream answered 304; Archived is then unknown.
	Unchanged bool
	Tag       string
	Archived  bool
}

// FetchArchived reads the archived flag of repo. Like FetchRevision, a
// non-empty etag makes the request conditional.
func (c *Client) FetchArchived(ctx context.Context, repo, etag string) (RepoStatus, error) {
	var doc struct {
		Archived bool `json:"archived"`
	}
	url := fmt.Sprintf("%s/repos/%s", c.apiURL, repo)
	tag, unchanged, err := c.getConditional(ctx, url, repo, etag, &doc)
	if err != nil {
		return RepoStatus{}, fmt.Errorf("repository %s: %w", repo, err)
	}
	if unchanged {
		return RepoStatus{Unchanged: true, Tag: etag}, nil
	}
	return RepoStatus{Tag: tag, Archived: doc.Archived}, nil
}

// getConditional issues an API GET with If-None-Match and decodes a 200 body
// into v. It returns the response ETag and whether the answer was a 304.
func (c *Client) getConditional(ctx context.Context, url, repo, etag string, v any) (string, bool, error) {
	req, err := c.newRequest(ctx, url, true)
	if err != nil {
		return "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("GET %s: %w", url, err)
	}
	defer utils.DrainClose(resp.Body)
	c.logQuota(resp, repo)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return etag, true, nil
	case resp.StatusCode != http.StatusOK:
		return "", false, c.statusError(resp, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return "", false, fmt.Errorf("decode %s: %w", url, err)
	}
	return resp.Header.Get("ETag"), false, nil
}

func (c *Client) newRequest(ctx context.Context, url string, api bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, url string, api bool, v any) error {
	req, err := c.newRequest(ctx, url, api)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer utils.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response, url string) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", url, ErrNotFound)
	case http.StatusForbidden, http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests {
			rl := &RateLimitError{}
			if sec, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
				rl.Reset = time.Unix(sec, 0)
			}
			return rl
		}
	}
	return &StatusError{URL: url, StatusCode: resp.StatusCode}
}

func (c *Client) logQuota(resp *http.Response, repo string) {
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		c.log.Debug("github quota",
			logger.String("repo", repo),
			logger.String("remaining", remaining))
	}
}
