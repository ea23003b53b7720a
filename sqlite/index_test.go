package sqlite_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Item Search
// A built index answers exact and fuzzy searches, lists items in path
// order and pages through results with cursors tied to the index build.

func sampleDoc() *cratedoc.DocArtifact {
	items := []*cratedoc.Item{
		{ID: "1", Name: "HashMap", Kind: "struct", Path: "coll::map::HashMap", Module: "coll::map", Visibility: "public",
			Signature: "pub struct HashMap<K, V>", Docs: "A hash map implemented with quadratic probing.",
			Span: &cratedoc.Span{File: "src/map.rs", BeginLine: 10, BeginCol: 1, EndLine: 40, EndCol: 2}},
		{ID: "2", Name: "HashSet", Kind: "struct", Path: "coll::set::HashSet", Module: "coll::set", Visibility: "public",
			Docs: "A set backed by a map."},
		{ID: "3", Name: "Map", Kind: "trait", Path: "coll::Map", Module: "coll", Visibility: "public",
			Docs: "Common map operations."},
		{ID: "4", Name: "insert", Kind: "function", Path: "coll::map::HashMap::insert", Module: "coll::map", Visibility: "public",
			Docs: "Inserts a key-value pair into the map."},
		{ID: "5", Name: "parse_config", Kind: "function", Path: "coll::config::parse_config", Module: "coll::config", Visibility: "public",
			Docs: "Reads settings."},
	}
	doc := &cratedoc.DocArtifact{Crate: "coll", Version: "1.0.0", Root: "0", Items: map[string]*cratedoc.Item{}}
	for _, item := range items {
		doc.Items[item.ID] = item
	}
	return doc
}

func buildIndex(t *testing.T, doc *cratedoc.DocArtifact, docHash string) (*sqlite.IndexService, string) {
	t.Helper()
	svc := sqlite.NewIndexService()
	svc.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, svc.Build(t.Context(), path, docHash, doc))
	return svc, path
}

func hitIDs(page *cratedoc.SearchPage) []string {
	ids := []string{}
	for _, h := range page.Hits {
		ids = append(ids, h.Item.ID)
	}
	return ids
}

func TestIndexService_Build(t *testing.T) {
	t.Parallel()

	t.Run("writes the index in place without leftovers", func(t *testing.T) {
		t.Parallel()

		_, path := buildIndex(t, sampleDoc(), "h1")

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "index.db", entries[0].Name())
	})

	t.Run("replaces an existing index", func(t *testing.T) {
		t.Parallel()

		svc, path := buildIndex(t, sampleDoc(), "h1")

		require.NoError(t, svc.Build(t.Context(), path, "h2", sampleDoc()))

		hash, err := svc.Status(t.Context(), path)
		require.NoError(t, err)
		assert.Equal(t, "h2", hash)
	})

	t.Run("rejects oversized artifacts", func(t *testing.T) {
		t.Parallel()

		doc := &cratedoc.DocArtifact{Crate: "huge", Items: map[string]*cratedoc.Item{}}
		for i := 0; i <= cratedoc.MaxIndexedItems; i++ {
			id := fmt.Sprint(i)
			doc.Items[id] = &cratedoc.Item{ID: id}
		}
		path := filepath.Join(t.TempDir(), "index.db")

		err := sqlite.NewIndexService().Build(t.Context(), path, "h", doc)

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
		assert.NoFileExists(t, path)
	})
}

func TestIndexService_Status(t *testing.T) {
	t.Parallel()

	t.Run("reports the artifact hash", func(t *testing.T) {
		t.Parallel()

		svc, path := buildIndex(t, sampleDoc(), "abc123")

		hash, err := svc.Status(t.Context(), path)

		require.NoError(t, err)
		assert.Equal(t, "abc123", hash)
	})

	t.Run("missing index is not found", func(t *testing.T) {
		t.Parallel()

		_, err := sqlite.NewIndexService().Status(t.Context(), filepath.Join(t.TempDir(), "index.db"))

		assert.Equal(t, cratedoc.ENOTFOUND, cratedoc.ErrorCode(err))
	})
}

func TestIndexService_Search(t *testing.T) {
	t.Parallel()

	svc, path := buildIndex(t, sampleDoc(), "h1")

	t.Run("exact mode ranks exact then prefix then substring", func(t *testing.T) {
		t.Parallel()

		page, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "map", Mode: cratedoc.SearchExact})

		require.NoError(t, err)
		assert.Equal(t, []string{"3", "1"}, hitIDs(page))
		assert.Equal(t, 2, page.Total)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("exact mode without matches is empty", func(t *testing.T) {
		t.Parallel()

		page, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "vector", Mode: cratedoc.SearchExact})

		require.NoError(t, err)
		assert.Empty(t, page.Hits)
		assert.Zero(t, page.Total)
	})

	t.Run("exact mode applies kind and path filters", func(t *testing.T) {
		t.Parallel()

		page, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "hash", Mode: cratedoc.SearchExact, Kind: "struct", PathPrefix: "coll::set"})

		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, hitIDs(page))
	})

	t.Run("fuzzy mode weighs names above paths above docs", func(t *testing.T) {
		t.Parallel()

		page, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "map"})

		// Then HashMap and Map match by name, insert by path and HashSet by docs
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "3", "4", "2"}, hitIDs(page))
	})

	t.Run("fuzzy mode tolerates typos", func(t *testing.T) {
		t.Parallel()

		page, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "insrt"})

		require.NoError(t, err)
		require.NotEmpty(t, page.Hits)
		assert.Equal(t, "4", page.Hits[0].Item.ID)
	})

	t.Run("fuzzy token order does not matter", func(t *testing.T) {
		t.Parallel()

		a, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "parse config"})
		require.NoError(t, err)
		b, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "config parse"})
		require.NoError(t, err)

		assert.Equal(t, hitIDs(a), hitIDs(b))
		assert.Equal(t, "5", a.Hits[0].Item.ID)
	})

	t.Run("preview hits are subsets of full hits", func(t *testing.T) {
		t.Parallel()

		full, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "HashMap", Mode: cratedoc.SearchExact})
		require.NoError(t, err)
		preview, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "HashMap", Mode: cratedoc.SearchExact, Preview: true})
		require.NoError(t, err)

		require.Len(t, full.Hits, 1)
		require.Len(t, preview.Hits, 1)
		assert.Equal(t, &cratedoc.Item{ID: "1", Name: "HashMap", Kind: "struct"}, preview.Hits[0].Item)
		assert.Equal(t, sampleDoc().Items["1"], full.Hits[0].Item)
	})

	t.Run("cursors page through results", func(t *testing.T) {
		t.Parallel()

		q := cratedoc.SearchQuery{Pattern: "map", Limit: 1}
		first, err := svc.Search(t.Context(), path, q)
		require.NoError(t, err)
		require.NotEmpty(t, first.NextCursor)

		q.Cursor = first.NextCursor
		second, err := svc.Search(t.Context(), path, q)
		require.NoError(t, err)

		all, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "map"})
		require.NoError(t, err)
		assert.Equal(t, hitIDs(all)[:2], append(hitIDs(first), hitIDs(second)...))
	})

	t.Run("cursor from another query is rejected", func(t *testing.T) {
		t.Parallel()

		first, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "map", Limit: 1})
		require.NoError(t, err)

		_, err = svc.Search(t.Context(), path, cratedoc.SearchQuery{Pattern: "hash", Limit: 1, Cursor: first.NextCursor})

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})

	t.Run("invalid queries are rejected", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Search(t.Context(), path, cratedoc.SearchQuery{})

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})
}

func TestIndexService_Search_CursorAcrossRebuild(t *testing.T) {
	t.Parallel()

	// Given a cursor from the first build
	svc, path := buildIndex(t, sampleDoc(), "h1")
	q := cratedoc.SearchQuery{Pattern: "map", Limit: 1}
	first, err := svc.Search(t.Context(), path, q)
	require.NoError(t, err)

	// When the index is rebuilt from a different artifact
	require.NoError(t, svc.Build(t.Context(), path, "h2", sampleDoc()))

	// Then the old cursor is rejected
	q.Cursor = first.NextCursor
	_, err = svc.Search(t.Context(), path, q)
	assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
}

func TestIndexService_Search_RebuildIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, a := buildIndex(t, sampleDoc(), "h1")
	_, b := buildIndex(t, sampleDoc(), "h1")

	for _, pattern := range []string{"map", "hash set", "insert pair"} {
		pa, err := svc.Search(t.Context(), a, cratedoc.SearchQuery{Pattern: pattern})
		require.NoError(t, err)
		pb, err := svc.Search(t.Context(), b, cratedoc.SearchQuery{Pattern: pattern})
		require.NoError(t, err)
		assert.Equal(t, pa, pb, pattern)
	}
}

func TestIndexService_ListItems(t *testing.T) {
	t.Parallel()

	svc, path := buildIndex(t, sampleDoc(), "h1")

	t.Run("orders by path", func(t *testing.T) {
		t.Parallel()

		page, err := svc.ListItems(t.Context(), path, cratedoc.ItemFilter{})

		require.NoError(t, err)
		var paths []string
		for _, item := range page.Items {
			paths = append(paths, item.Path)
		}
		assert.Equal(t, []string{
			"coll::Map", "coll::config::parse_config", "coll::map::HashMap",
			"coll::map::HashMap::insert", "coll::set::HashSet",
		}, paths)
		assert.Equal(t, 5, page.Total)
		assert.False(t, page.HasMore)
	})

	t.Run("filters by kind with pagination", func(t *testing.T) {
		t.Parallel()

		page, err := svc.ListItems(t.Context(), path, cratedoc.ItemFilter{Kind: "struct", Limit: 1})

		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "HashMap", page.Items[0].Name)
		assert.Equal(t, 2, page.Total)
		assert.True(t, page.HasMore)

		next, err := svc.ListItems(t.Context(), path, cratedoc.ItemFilter{Kind: "struct", Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, "HashSet", next.Items[0].Name)
		assert.False(t, next.HasMore)
	})

	t.Run("preview drops detail", func(t *testing.T) {
		t.Parallel()

		page, err := svc.ListItems(t.Context(), path, cratedoc.ItemFilter{PathPrefix: "coll::map::HashMap::", Preview: true})

		require.NoError(t, err)
		assert.Equal(t, []*cratedoc.Item{{ID: "4", Name: "insert", Kind: "function"}}, page.Items)
	})

	t.Run("negative offset is invalid", func(t *testing.T) {
		t.Parallel()

		_, err := svc.ListItems(t.Context(), path, cratedoc.ItemFilter{Offset: -1})

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})
}

func TestIndexService_GetItem(t *testing.T) {
	t.Parallel()

	svc, path := buildIndex(t, sampleDoc(), "h1")

	t.Run("returns the full record", func(t *testing.T) {
		t.Parallel()

		item, err := svc.GetItem(t.Context(), path, "1")

		require.NoError(t, err)
		assert.Equal(t, sampleDoc().Items["1"], item)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		t.Parallel()

		_, err := svc.GetItem(t.Context(), path, "nope")

		assert.Equal(t, cratedoc.ENOTFOUND, cratedoc.ErrorCode(err))
	})
}
