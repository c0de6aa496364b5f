// Package notion implements the catalog store on top of a Notion database.
package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
	"github.com/MrSnakeDoc/catalogsync/internal/version"
)

const (
	// DefaultBaseURL is the public Notion API root.
	DefaultBaseURL = "https://api.notion.com/v1"
	// MaxPageSize is the largest page the query endpoint accepts.
	MaxPageSize = 100
)

// Options configures a Store.
type Options struct {
	BaseURL    string // another API root, for proxies and tests
	Token      string
	DatabaseID string
	PageSize   int
	Timeout    time.Duration
	HTTPClient *http.Client // optional, overrides Timeout
}

// Store talks to one Notion database.
type Store struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
	pageSize   int
	logger     logger.Logger
}

// New creates a Notion-backed store.
func New(opts Options, log logger.Logger) (*Store, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("notion token is required")
	}
	if opts.DatabaseID == "" {
		return nil, fmt.Errorf("notion database id is required")
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}

	httpClient, err := newHTTPClient(opts)
	if err != nil {
		return nil, err
	}

	return &Store{
		client:     notionapi.NewClient(notionapi.Token(opts.Token), notionapi.WithHTTPClient(httpClient)),
		databaseID: notionapi.DatabaseID(opts.DatabaseID),
		pageSize:   opts.PageSize,
		logger:     log,
	}, nil
}

// Query implements store.Store.
func (s *Store) Query(ctx context.Context, cursor string) (store.Page, error) {
	resp, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		StartCursor: notionapi.Cursor(cursor),
		PageSize:    s.pageSize,
	})
	if err != nil {
		return store.Page{}, fmt.Errorf("failed to query notion database %s: %w", s.databaseID, err)
	}

	out := store.Page{
		Records:    make([]domain.Record, 0, len(resp.Results)),
		HasMore:    resp.HasMore,
		NextCursor: resp.NextCursor.String(),
	}
	for _, pg := range resp.Results {
		if pg.Archived {
			continue
		}
		rec, err := projectRecord(pg)
		if err != nil {
			return store.Page{}, err
		}
		out.Records = append(out.Records, rec)
	}

	s.logger.Debug("queried notion database",
		logger.Int("results", len(out.Records)),
		logger.Bool("has_more", out.HasMore))
	return out, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, rec domain.Record) (string, error) {
	pg, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.databaseID,
		},
		Properties: recordProperties(rec),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create notion page for %s: %w", rec.ID, err)
	}
	return pg.ID.String(), nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, recordID string, patch domain.RecordPatch) error {
	_, err := s.client.Page.Update(ctx, notionapi.PageID(recordID), &notionapi.PageUpdateRequest{
		Properties: patchProperties(patch),
	})
	if err != nil {
		return fmt.Errorf("failed to update notion page %s: %w", recordID, err)
	}
	return nil
}

// Archive implements store.Store.
func (s *Store) Archive(ctx context.Context, recordID string) error {
	_, err := s.client.Page.Update(ctx, notionapi.PageID(recordID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{},
		Archived:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to archive notion page %s: %w", recordID, err)
	}
	return nil
}

func newHTTPClient(opts Options) (*http.Client, error) {
	var client http.Client
	if opts.HTTPClient != nil {
		client = *opts.HTTPClient
	} else {
		client.Timeout = opts.Timeout
		if client.Timeout <= 0 {
			client.Timeout = 30 * time.Second
		}
	}

	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	t := &transport{next: next}

	if opts.BaseURL != "" && strings.TrimRight(opts.BaseURL, "/") != DefaultBaseURL {
		base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
		if err != nil || base.Host == "" {
			return nil, fmt.Errorf("invalid notion base url %q", opts.BaseURL)
		}
		t.base = base
	}
	client.Transport = t
	return &client, nil
}

// transport tags requests with the catalog user agent and, when base is set,
// sends them to base instead of the public API root.
type transport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set("User-Agent", version.UserAgent())
	if t.base != nil {
		out.URL.Scheme = t.base.Scheme
		out.URL.Host = t.base.Host
		out.URL.Path = t.base.Path + strings.TrimPrefix(req.URL.Path, "/v1")
		out.URL.RawPath = ""
		out.Host = ""
	}
	return t.next.RoundTrip(out)
}
