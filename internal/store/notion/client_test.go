package notion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/logger"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
	"github.com/MrSnakeDoc/catalogsync/internal/testutil"
)

func newTestStore(t *testing.T, pageSize int) (*Store, *testutil.FakeNotion) {
	t.Helper()
	fake := testutil.NewFakeNotion(t)
	fake.Schema = SchemaTypes()
	s, err := New(Options{
		BaseURL:    fake.URL,
		Token:      testutil.FakeNotionToken,
		DatabaseID: fake.DatabaseID,
		PageSize:   pageSize,
	}, logger.Nop())
	require.NoError(t, err)
	return s, fake
}

func sampleRecord() domain.Record {
	return domain.Record{
		ID:            "obsidian-git",
		Name:          "Git",
		Author:        "Vinzent",
		Description:   "Backup your vault with git.",
		RepositoryURL: domain.RepositoryURL("Vinzent03/obsidian-git"),
		FundingURL:    "https://ko-fi.com/vinzent",
		Tags:          []domain.Tag{domain.MobileTag},
		LastActivity:  time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
		Status:        domain.StatusActive,
		RevisionTag:   `W/"123"`,
	}
}

func TestCreateThenQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, 10)

	id, err := s.Create(ctx, sampleRecord())
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, fake.Counts().Creates)
	assert.Equal(t, []string{"POST /pages"}, fake.Requests())

	pages, err := store.FetchAll(ctx, s)
	require.NoError(t, err)
	require.Equal(t, 1, store.CountRecords(pages))

	got := pages[0].Records[0]
	want := sampleRecord()
	want.RecordID = id
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Author, got.Author)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.RepositoryURL, got.RepositoryURL)
	assert.Equal(t, want.FundingURL, got.FundingURL)
	assert.Equal(t, want.Tags, got.Tags)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.RevisionTag, got.RevisionTag)
	assert.Equal(t, domain.UniDate(want.LastActivity), domain.UniDate(got.LastActivity))
}

func TestCreateWithEmptyOptionalFields(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, 10)

	id, err := s.Create(ctx, domain.Record{ID: "bare", Name: "Bare", Tags: []domain.Tag{}, Status: domain.StatusStale})
	require.NoError(t, err)

	page, ok := fake.Page(id)
	require.True(t, ok)
	assert.NotContains(t, page.Properties, PropLastCommit, "an empty date is left blank")
	assert.NotContains(t, page.Properties, PropFunding, "an empty url is left blank")
	assert.JSONEq(t, `{"type":"multi_select","multi_select":[]}`, string(page.Properties[PropTags]))

	pages, err := store.FetchAll(ctx, s)
	require.NoError(t, err)
	rec := pages[0].Records[0]
	assert.True(t, rec.LastActivity.IsZero())
	assert.Empty(t, rec.FundingURL)
	assert.Empty(t, rec.RevisionTag)
}

func TestQueryPaginates(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, 2)

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		rec := sampleRecord()
		rec.ID = key
		_, err := s.Create(ctx, rec)
		require.NoError(t, err)
	}

	pages, err := store.FetchAll(ctx, s)
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, 5, store.CountRecords(pages))
	assert.Equal(t, 3, fake.Counts().Queries)
}

func TestUpdateSendsOnlyStagedProperties(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, 10)

	id, err := s.Create(ctx, sampleRecord())
	require.NoError(t, err)
	before, _ := fake.Page(id)

	name := "Obsidian Git"
	status := domain.StatusStale
	require.NoError(t, s.Update(ctx, id, domain.RecordPatch{Name: &name, Status: &status}))

	after, _ := fake.Page(id)
	assert.JSONEq(t, string(before.Properties[PropAuthor]), string(after.Properties[PropAuthor]))
	assert.NotEqual(t, string(before.Properties[PropName]), string(after.Properties[PropName]))

	var sel struct {
		Select struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		} `json:"select"`
	}
	require.NoError(t, json.Unmarshal(after.Properties[PropStatus], &sel))
	assert.Equal(t, "#STALE", sel.Select.Name)
	assert.Equal(t, "yellow", sel.Select.Color)
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, 10)

	id, err := s.Create(ctx, sampleRecord())
	require.NoError(t, err)
	require.NoError(t, s.Archive(ctx, id))

	page, ok := fake.Page(id)
	require.True(t, ok, "archived page is kept")
	assert.True(t, page.Archived)

	pages, err := store.FetchAll(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 0, store.CountRecords(pages))
}

func TestQueryReadsPagesFromDatabase(t *testing.T) {
	s, fake := newTestStore(t, 10)

	_, err := s.Query(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"POST /databases/" + fake.DatabaseID + "/query"}, fake.Requests())
}

func TestQueryFailsOnMissingProperty(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t, 10)
	delete(fake.Schema, PropAuthor)

	full := recordProperties(sampleRecord())
	delete(full, PropAuthor)
	id := fake.SeedPage(full)

	_, err := s.Query(ctx, "")
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, id, pe.RecordID)
	assert.Equal(t, PropAuthor, pe.Property)
	assert.Equal(t, "missing", pe.Reason)
}

func TestQueryFailsOnWrongPropertyType(t *testing.T) {
	s, fake := newTestStore(t, 10)

	props := recordProperties(sampleRecord())
	props[PropRepository] = richTextProp("https://github.com/a/b")
	fake.SeedPage(props)

	_, err := s.Query(context.Background(), "")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PropRepository, pe.Property)
	assert.Equal(t, "expected url, got rich_text", pe.Reason)
}

func TestAPIErrorOnBadToken(t *testing.T) {
	fake := testutil.NewFakeNotion(t)
	s, err := New(Options{BaseURL: fake.URL, Token: "wrong", DatabaseID: fake.DatabaseID}, logger.Nop())
	require.NoError(t, err)

	_, err = s.Query(context.Background(), "")
	var apiErr *notionapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, notionapi.ErrorCode("unauthorized"), apiErr.Code)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{DatabaseID: "x"}, logger.Nop())
	assert.Error(t, err)
	_, err = New(Options{Token: "x"}, logger.Nop())
	assert.Error(t, err)
	_, err = New(Options{Token: "x", DatabaseID: "x", BaseURL: "not a url"}, logger.Nop())
	assert.Error(t, err)
}

func TestLongTextIsSplit(t *testing.T) {
	long := make([]rune, maxTextSegment+10)
	for i := range long {
		long[i] = 'a'
	}
	segments := textValue(string(long))
	require.Len(t, segments, 2)
	assert.Len(t, []rune(segments[0].Text.Content), maxTextSegment)
	assert.Equal(t, string(long), plainText(segments))
}

func TestPatchPropertiesOnlyStaged(t *testing.T) {
	tag := `"e2"`
	props := patchProperties(domain.RecordPatch{RevisionTag: &tag, Tags: []domain.Tag{}})
	assert.Len(t, props, 2)
	assert.Contains(t, props, PropETag)
	assert.Contains(t, props, PropTags)
	assert.Empty(t, patchProperties(domain.RecordPatch{}))
}
