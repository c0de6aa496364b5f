package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/testutil"
)

func newTestClient(gh *testutil.FakeGitHub) *Client {
	return NewClient(Options{
		ListURL: gh.ListURL,
		RawURL:  gh.RawURL,
		APIURL:  gh.APIURL,
		Token:   "ghp_test",
		Timeout: 5 * time.Second,
	}, logger.Nop())
}

var commitDate = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestFetchList(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	gh.AddPlugin(testutil.FakePlugin{ID: "a", Name: "A", Author: "x", Description: "d", Repo: "x/a"}, "master", map[string]any{}, testutil.FakeCommit{})
	gh.AddPlugin(testutil.FakePlugin{ID: "b", Name: "B", Author: "y", Description: "e", Repo: "y/b"}, "master", map[string]any{}, testutil.FakeCommit{})

	entries, err := newTestClient(gh).FetchList(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ID: "a", Name: "A", Author: "x", Description: "d", Repo: "x/a"}, entries[0])
	assert.Equal(t, "b", entries[1].ID)
}

func TestFetchManifestFallsBackToSecondBranch(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	gh.AddPlugin(testutil.FakePlugin{ID: "a", Repo: "x/a"}, "main",
		map[string]any{"isDesktopOnly": true, "fundingUrl": "https://ko-fi.com/x"}, testutil.FakeCommit{})

	m, err := newTestClient(gh).FetchManifest(context.Background(), "x/a")
	require.NoError(t, err)
	assert.True(t, m.DesktopOnly)
	assert.Equal(t, "https://ko-fi.com/x", m.FundingURL)
	assert.Equal(t, 1, gh.ManifestCalls["x/a/master"])
	assert.Equal(t, 1, gh.ManifestCalls["x/a/main"])
}

func TestFetchManifestFailsAfterFallback(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)

	_, err := newTestClient(gh).FetchManifest(context.Background(), "x/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, gh.ManifestCalls["x/missing/master"])
	assert.Equal(t, 1, gh.ManifestCalls["x/missing/main"])
}

func TestFundingURL(t *testing.T) {
	c := NewClient(Options{}, logger.Nop())
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"absent", ``, ""},
		{"null", `null`, ""},
		{"string", `"https://buymeacoffee.com/x"`, "https://buymeacoffee.com/x"},
		{"object keeps document order", `{"Patreon":"https://patreon.com/x","Buy me a coffee":"https://bmc.com/x"}`, "https://patreon.com/x"},
		{"empty object", `{}`, ""},
		{"non-string values skipped", `{"Other":["y"],"Open":null,"Ko-fi":"https://ko-fi.com/x"}`, "https://ko-fi.com/x"},
		{"no string value", `{"Other":{"nested":"y"}}`, ""},
		{"number", `42`, ""},
		{"array", `["https://a"]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.fundingURL("x/a", json.RawMessage(tt.raw)))
		})
	}
}

func TestFetchManifestToleratesOddFunding(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	gh.AddPlugin(testutil.FakePlugin{ID: "a", Repo: "x/a"}, "master",
		map[string]any{"fundingUrl": json.RawMessage(`{"Ko-fi":"https://ko-fi.com/a","Other":["y"]}`)}, testutil.FakeCommit{})
	gh.AddPlugin(testutil.FakePlugin{ID: "b", Repo: "x/b"}, "master",
		map[string]any{"fundingUrl": json.RawMessage(`{"Other":["y"]}`)}, testutil.FakeCommit{})

	c := newTestClient(gh)
	a, err := c.FetchManifest(context.Background(), "x/a")
	require.NoError(t, err)
	assert.Equal(t, "https://ko-fi.com/a", a.FundingURL)

	b, err := c.FetchManifest(context.Background(), "x/b")
	require.NoError(t, err)
	assert.Empty(t, b.FundingURL)
}

func TestFetchRevisionConditional(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	gh.AddPlugin(testutil.FakePlugin{ID: "a", Repo: "x/a"}, "master", map[string]any{},
		testutil.FakeCommit{ETag: `W/"v1"`, Date: commitDate})
	c := newTestClient(gh)
	ctx := context.Background()

	fresh, err := c.FetchRevision(ctx, "x/a", "")
	require.NoError(t, err)
	assert.False(t, fresh.Unchanged)
	assert.Equal(t, `W/"v1"`, fresh.Tag)
	assert.True(t, fresh.LastActivity.Equal(commitDate))
	assert.Equal(t, "Bearer ghp_test", gh.LastAuthHeader)

	again, err := c.FetchRevision(ctx, "x/a", fresh.Tag)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, fresh.Tag, again.Tag)

	calls, notModified := gh.Calls("x/a")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, notModified)
}

func TestFetchRevisionWithoutCommits(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)

	rev, err := newTestClient(gh).FetchRevision(context.Background(), "x/empty", "")
	require.NoError(t, err)
	assert.True(t, rev.LastActivity.IsZero())
}

func TestFetchRevisionRateLimited(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	gh.RateLimited = true

	_, err := newTestClient(gh).FetchRevision(context.Background(), "x/a", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.False(t, rl.Reset.IsZero())
}

func TestFetchRevisionServerError(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	gh.FailCommits = true

	_, err := newTestClient(gh).FetchRevision(context.Background(), "x/a", "")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.StatusCode)
}

func TestFetchArchived(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	gh.Archived["x/old"] = true
	c := newTestClient(gh)
	ctx := context.Background()

	old, err := c.FetchArchived(ctx, "x/old", "")
	require.NoError(t, err)
	assert.True(t, old.Archived)
	assert.Equal(t, gh.RepoTag("x/old"), old.Tag)

	fresh, err := c.FetchArchived(ctx, "x/new", "")
	require.NoError(t, err)
	assert.False(t, fresh.Archived)
}

func TestFetchArchivedConditional(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	c := newTestClient(gh)
	ctx := context.Background()

	first, err := c.FetchArchived(ctx, "x/a", "")
	require.NoError(t, err)

	again, err := c.FetchArchived(ctx, "x/a", first.Tag)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, first.Tag, again.Tag)
	assert.Equal(t, 1, gh.RepoNotMod["x/a"])

	gh.SetArchived("x/a", true)
	changed, err := c.FetchArchived(ctx, "x/a", first.Tag)
	require.NoError(t, err)
	assert.False(t, changed.Unchanged)
	assert.True(t, changed.Archived)
	assert.NotEqual(t, first.Tag, changed.Tag)
}
