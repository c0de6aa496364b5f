package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/catalogsync/internal/domain"
	"github.com/MrSnakeDoc/catalogsync/internal/store"
)

func newTestStore(t *testing.T, pageSize int) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "test", pageSize), mr
}

func TestCreateAndQuery(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, 10)

	last := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	id, err := s.Create(ctx, domain.Record{
		ID:            "dataview",
		Name:          "Dataview",
		Author:        "blacksmithgu",
		RepositoryURL: domain.RepositoryURL("blacksmithgu/obsidian-dataview"),
		Tags:          []domain.Tag{domain.MobileTag},
		LastActivity:  last,
		Status:        domain.StatusActive,
		RevisionTag:   `W/"abc"`,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.True(t, mr.Exists("test:record:"+id))
	isMember, err := mr.SIsMember("test:records:active", id)
	require.NoError(t, err)
	assert.True(t, isMember)

	pages, err := store.FetchAll(ctx, s)
	require.NoError(t, err)
	require.Equal(t, 1, store.CountRecords(pages))

	got := pages[0].Records[0]
	assert.Equal(t, id, got.RecordID)
	assert.Equal(t, "dataview", got.ID)
	assert.True(t, got.LastActivity.Equal(last))
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, []domain.Tag{domain.MobileTag}, got.Tags)
}

func TestQueryDrainsAllRecords(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 2)

	want := map[string]bool{}
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Create(ctx, domain.Record{ID: key})
		require.NoError(t, err)
		want[key] = true
	}

	pages, err := store.FetchAll(ctx, s)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, p := range pages {
		for _, r := range p.Records {
			seen[r.ID] = true
		}
	}
	assert.Equal(t, want, seen)
}

func TestUpdateMergesPatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 10)

	id, err := s.Create(ctx, domain.Record{ID: "p", Name: "Old", Author: "me"})
	require.NoError(t, err)

	name := "New"
	status := domain.StatusStale
	require.NoError(t, s.Update(ctx, id, domain.RecordPatch{Name: &name, Status: &status}))

	rec, archived, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, archived)
	assert.Equal(t, "New", rec.Name)
	assert.Equal(t, "me", rec.Author)
	assert.Equal(t, domain.StatusStale, rec.Status)
}

func TestArchiveKeepsDocument(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 10)

	id, err := s.Create(ctx, domain.Record{ID: "gone", Name: "Gone"})
	require.NoError(t, err)
	require.NoError(t, s.Archive(ctx, id))

	page, err := s.Query(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, page.Records)

	rec, archived, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, archived)
	assert.Equal(t, "Gone", rec.Name)
}

func TestMissingRecord(t *testing.T) {
	s, _ := newTestStore(t, 10)
	err := s.Archive(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestKeys(t *testing.T) {
	k := NewKeys("")
	assert.Equal(t, "catalog:record:42", k.Record("42"))

	k = NewKeys("plugins")
	assert.Equal(t, "plugins:records:active", k.Active())
	assert.Equal(t, "plugins:records:archived", k.Archived())
}
