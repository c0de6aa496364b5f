package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/sources/registry"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
	"github.com/MrSnakeDoc/catalogsync/internal/store/notion"
	"github.com/MrSnakeDoc/catalogsync/internal/testutil"
)

// End to end: registry fake -> ingestor -> syncer -> Notion fake.
func TestRunAgainstNotionAndGitHub(t *testing.T) {
	gh := testutil.NewFakeGitHub(t)
	day := 24 * time.Hour
	gh.AddPlugin(testutil.FakePlugin{ID: "calendar", Name: "Calendar", Author: "Liam Cain", Description: "cal", Repo: "liamcain/obsidian-calendar-plugin"},
		"master", map[string]any{"fundingUrl": "https://buymeacoffee.com/liamcain"},
		testutil.FakeCommit{ETag: `W/"c1"`, Date: now.Add(-3 * day)})
	gh.AddPlugin(testutil.FakePlugin{ID: "dataview", Name: "Dataview", Author: "Michael Brenan", Description: "dv", Repo: "blacksmithgu/obsidian-dataview"},
		"main", map[string]any{"isDesktopOnly": true},
		testutil.FakeCommit{ETag: `W/"d1"`, Date: now.Add(-400 * day)})
	gh.AddPlugin(testutil.FakePlugin{ID: "excalidraw", Name: "Excalidraw", Author: "Zsolt Viczian", Description: "ex", Repo: "zsviczian/obsidian-excalidraw-plugin"},
		"master", map[string]any{"fundingUrl": map[string]string{"Ko-fi": "https://ko-fi.com/zsolt"}},
		testutil.FakeCommit{ETag: `W/"e1"`, Date: now.Add(-time.Hour)})

	nf := testutil.NewFakeNotion(t)
	nf.Schema = notion.SchemaTypes()
	st, err := notion.New(notion.Options{
		BaseURL:    nf.URL,
		Token:      testutil.FakeNotionToken,
		DatabaseID: nf.DatabaseID,
		PageSize:   2,
	}, logger.Nop())
	require.NoError(t, err)

	client := registry.NewClient(registry.Options{ListURL: gh.ListURL, RawURL: gh.RawURL, APIURL: gh.APIURL}, logger.Nop())
	ingestor := registry.NewIngestor(client, true, logger.Nop())
	run := func() Summary {
		t.Helper()
		sum, err := newTestSyncer(st, ingestor, Options{}).Run(context.Background())
		require.NoError(t, err)
		return sum
	}

	// First run fills the empty database.
	sum := run()
	assert.Equal(t, 3, sum.Created)
	assert.Equal(t, 3, nf.Counts().Creates)

	// Second run: nothing changed upstream, so no writes and 304s everywhere.
	sum = run()
	assert.Equal(t, 3, sum.Unchanged)
	assert.Equal(t, 3, sum.RevisionsReused)
	assert.Equal(t, 3, nf.Counts().Creates)
	assert.Zero(t, nf.Counts().Patches)
	commits, notModified := gh.Calls("liamcain/obsidian-calendar-plugin")
	assert.Equal(t, 2, commits)
	assert.Equal(t, 1, notModified)
	assert.Equal(t, 1, gh.RepoNotMod["liamcain/obsidian-calendar-plugin"])

	// A new commit refreshes the date and the tag of one record.
	gh.SetCommit("blacksmithgu/obsidian-dataview", testutil.FakeCommit{ETag: `W/"d2"`, Date: now.Add(-2 * day)})
	sum = run()
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, nf.Counts().Patches)

	// An archived repository turns its record ARCHIVED, and it is not looked up again.
	gh.SetArchived("liamcain/obsidian-calendar-plugin", true)
	sum = run()
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 2, nf.Counts().Patches)
	pages, err := store.FetchAll(context.Background(), st)
	require.NoError(t, err)
	for _, rec := range pages[0].Records {
		if rec.ID == "calendar" {
			assert.Equal(t, domain.StatusArchived, rec.Status)
		}
	}
	repoCalls := gh.RepoCalls["liamcain/obsidian-calendar-plugin"]

	// A plugin dropped from the list is archived.
	gh.RemovePlugin("excalidraw")
	sum = run()
	assert.Equal(t, 1, sum.Archived)
	assert.Equal(t, 1, nf.Counts().Archives)

	sum = run()
	assert.Zero(t, sum.Orphans)
	assert.Equal(t, 2, sum.Unchanged)
	assert.Equal(t, 2, nf.Counts().Patches)
	assert.Equal(t, 2, sum.Records)
	assert.Equal(t, repoCalls, gh.RepoCalls["liamcain/obsidian-calendar-plugin"])
}
