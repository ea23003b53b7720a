package query_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/fs"
	"github.com/fwojciec/cratedoc/materialize"
	"github.com/fwojciec/cratedoc/mock"
	"github.com/fwojciec/cratedoc/query"
	"github.com/fwojciec/cratedoc/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Query Façade
// Users and agents ask about a crate by name; the service fetches, builds
// and indexes it on first use and answers within token budgets.

const libRS = "// demo crate\n" +
	"\n" +
	"/// A hash map.\n" +
	"pub struct HashMap {\n" +
	"    len: usize,\n" +
	"}\n" +
	"\n" +
	"pub fn insert() {}\n"

var longDocs = strings.Repeat("A hash map implemented with quadratic probing. ", 20)

func sampleDoc(crate string) *cratedoc.DocArtifact {
	return &cratedoc.DocArtifact{Crate: crate, Version: "1.0.0", FormatVersion: 39, Root: "0", Items: map[string]*cratedoc.Item{
		"0": {ID: "0", Name: crate, Kind: "module", Path: crate},
		"1": {ID: "1", Name: "HashMap", Kind: "struct", Path: crate + "::HashMap", Docs: longDocs,
			Span: &cratedoc.Span{File: "src/lib.rs", BeginLine: 4, EndLine: 6}},
		"2": {ID: "2", Name: "insert", Kind: "function", Path: crate + "::insert", Docs: "Inserts a value.",
			Span: &cratedoc.Span{File: "src/lib.rs", BeginLine: 8, EndLine: 8}},
		"3": {ID: "3", Name: "Marker", Kind: "trait", Path: crate + "::Marker"},
	}}
}

var (
	core = cratedoc.MemberID{Name: "core", Path: "crates/core"}
	cli  = cratedoc.MemberID{Name: "cli", Path: "crates/cli"}
)

// harness wires a Service over a real store, materializer and index with
// faked acquisition and toolchain.
type harness struct {
	store *fs.Store
	svc   *query.Service

	acquisitions atomic.Int32
	docCalls     atomic.Int32
	depCalls     atomic.Int32

	// Set before calling the service.
	hash       string
	workspace  bool
	failDocs   string
	failDeps   atomic.Int32
	acquireErr error
	gate       chan struct{}
	started    chan struct{}
	startOnce  sync.Once
	docGate    chan struct{}
	docStarted chan struct{}
	docOnce    sync.Once
}

func newHarness(t *testing.T, opts ...query.Option) *harness {
	t.Helper()
	h := &harness{store: fs.NewStore(t.TempDir()), hash: "hash-1"}

	acquirer := &mock.SourceAcquirer{
		PrepareFn: func(_ context.Context, req cratedoc.AcquireRequest) (cratedoc.CacheKey, error) {
			key := cratedoc.CacheKey{Name: req.Name, Version: req.Version, Origin: req.Origin}
			if req.Origin.Kind == cratedoc.OriginLocal && key.Version == "" {
				key.Version = "0.1.0"
			}
			return key, nil
		},
		AcquireFn: func(_ context.Context, key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error) {
			h.acquisitions.Add(1)
			if h.started != nil {
				h.startOnce.Do(func() { close(h.started) })
			}
			if h.gate != nil {
				<-h.gate
			}
			if h.acquireErr != nil {
				return nil, h.acquireErr
			}
			dirs := []string{"."}
			if h.workspace {
				dirs = []string{core.Path, cli.Path}
			}
			for _, d := range dirs {
				base := filepath.Join(dir, filepath.FromSlash(d))
				if err := os.MkdirAll(filepath.Join(base, "src"), 0o755); err != nil {
					return nil, err
				}
				if err := os.WriteFile(filepath.Join(base, "Cargo.toml"), []byte("[package]\n"), 0o644); err != nil {
					return nil, err
				}
				if err := os.WriteFile(filepath.Join(base, "src", "lib.rs"), []byte(libRS), 0o644); err != nil {
					return nil, err
				}
			}
			if key.Version == "" {
				key.Version = "0.0.0-main"
			}
			return &cratedoc.Acquisition{Key: key, Dir: dir, ContentHash: h.hash, SizeBytes: int64(len(libRS))}, nil
		},
	}
	resolver := &mock.WorkspaceResolver{
		ResolveFn: func(_ context.Context, root string) (*cratedoc.Workspace, error) {
			if h.workspace {
				return &cratedoc.Workspace{IsWorkspace: true, Members: []cratedoc.MemberID{core, cli}}, nil
			}
			return &cratedoc.Workspace{Package: "demo", Version: "1.0.0"}, nil
		},
	}
	docs := &mock.DocGenerator{
		ToolchainFn: func() string { return "nightly-test" },
		GenerateDocsFn: func(_ context.Context, req cratedoc.DocRequest) (*cratedoc.DocArtifact, error) {
			h.docCalls.Add(1)
			if h.docStarted != nil {
				h.docOnce.Do(func() { close(h.docStarted) })
			}
			if h.docGate != nil {
				<-h.docGate
			}
			name := req.Package
			if name == "" {
				name = "demo"
			}
			if name == h.failDocs {
				return nil, cratedoc.WithDetail(cratedoc.Errorf(cratedoc.EBUILD, "rustdoc failed"), "error[E0425]")
			}
			return sampleDoc(name), nil
		},
	}
	deps := &mock.DependencyResolver{
		ResolveDependenciesFn: func(_ context.Context, dir, pkg string) (*cratedoc.DependencyArtifact, error) {
			h.depCalls.Add(1)
			if h.failDeps.Load() > 0 {
				h.failDeps.Add(-1)
				return nil, cratedoc.Errorf(cratedoc.ERESOLVE, "cargo metadata failed")
			}
			return &cratedoc.DependencyArtifact{Crate: "demo", Version: "1.0.0", Dependencies: []*cratedoc.Dependency{
				{Name: "serde", Requirement: "^1", Resolved: "1.0.200", Kind: cratedoc.DependencyNormal, Direct: true},
				{Name: "serde_derive", Resolved: "1.0.200", Kind: cratedoc.DependencyNormal},
				{Name: "insta", Requirement: "^1", Resolved: "1.39.0", Kind: cratedoc.DependencyDev, Direct: true},
			}}, nil
		},
	}

	h.svc = query.NewService(h.store, acquirer, resolver, materialize.NewMaterializer(h.store, docs, deps), sqlite.NewIndexService(), opts...)
	return h
}

func registryRef(name, version string) cratedoc.UnitRef {
	origin := cratedoc.RegistryOrigin()
	return cratedoc.UnitRef{Name: name, Version: version, Origin: &origin}
}

func TestService_Cache(t *testing.T) {
	t.Parallel()

	t.Run("acquires and materializes a crate once", func(t *testing.T) {
		t.Parallel()

		// Given an empty cache
		h := newHarness(t)
		req := cratedoc.CacheRequest{Name: "demo", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()}

		// When the crate is cached twice
		first, err := h.svc.Cache(t.Context(), req)
		require.NoError(t, err)
		second, err := h.svc.Cache(t.Context(), req)
		require.NoError(t, err)

		// Then it was fetched and documented once
		assert.True(t, first.Acquired)
		assert.False(t, second.Acquired)
		assert.Equal(t, int32(1), h.acquisitions.Load())
		assert.Equal(t, int32(1), h.docCalls.Load())

		// And the second call reports the member as skipped
		require.Len(t, second.Results, 1)
		assert.Equal(t, cratedoc.StatusSkipped, second.Results[0].Status)
		assert.Equal(t, []string{"demo"}, second.Entry.Documented)
	})

	t.Run("concurrent requests share one acquisition", func(t *testing.T) {
		t.Parallel()

		// Given an acquisition that blocks until released
		h := newHarness(t)
		h.gate = make(chan struct{})
		h.started = make(chan struct{})
		req := cratedoc.CacheRequest{Name: "demo", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()}

		// When several callers cache the same crate at once
		const callers = 5
		var wg sync.WaitGroup
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = h.svc.Cache(t.Context(), req)
			}()
		}
		<-h.started
		time.Sleep(20 * time.Millisecond)
		close(h.gate)
		wg.Wait()

		// Then every caller succeeds off a single fetch
		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), h.acquisitions.Load())
		assert.Equal(t, int32(1), h.docCalls.Load())
	})

	t.Run("update re-acquires", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		req := cratedoc.CacheRequest{Name: "demo", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()}
		_, err := h.svc.Cache(t.Context(), req)
		require.NoError(t, err)

		req.Update = true
		res, err := h.svc.Cache(t.Context(), req)
		require.NoError(t, err)

		assert.True(t, res.Acquired)
		assert.Equal(t, int32(2), h.acquisitions.Load())
	})

	t.Run("single crate build failure is an error", func(t *testing.T) {
		t.Parallel()

		// Given a crate whose documentation does not build
		h := newHarness(t)
		h.failDocs = "demo"

		// When it is cached
		_, err := h.svc.Cache(t.Context(), cratedoc.CacheRequest{Name: "demo", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()})

		// Then the build error surfaces with its stage and diagnostic
		require.Error(t, err)
		assert.Equal(t, cratedoc.EBUILD, cratedoc.ErrorCode(err))
		assert.Equal(t, cratedoc.StageMaterialize, cratedoc.ErrorStage(err))
		assert.Equal(t, "error[E0425]", cratedoc.ErrorDetail(err))
	})

	t.Run("acquisition failure keeps retryability", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.acquireErr = cratedoc.Errorf(cratedoc.ENETWORK, "connection reset")

		_, err := h.svc.Cache(t.Context(), cratedoc.CacheRequest{Name: "demo", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()})

		require.Error(t, err)
		assert.Equal(t, cratedoc.StageAcquire, cratedoc.ErrorStage(err))
		assert.True(t, cratedoc.IsRetryable(err))
		entries, err := h.svc.ListEntries(t.Context())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unchanged local source is not rebuilt", func(t *testing.T) {
		t.Parallel()

		// Given a cached local crate
		h := newHarness(t)
		req := cratedoc.CacheRequest{Name: "demo", Origin: cratedoc.Origin{Kind: cratedoc.OriginLocal, Path: "/src/demo"}}
		_, err := h.svc.Cache(t.Context(), req)
		require.NoError(t, err)

		// When it is cached again with identical content
		res, err := h.svc.Cache(t.Context(), req)
		require.NoError(t, err)

		// Then the tree is re-read but nothing is rebuilt
		assert.True(t, res.Unchanged)
		assert.Equal(t, int32(2), h.acquisitions.Load())
		assert.Equal(t, int32(1), h.docCalls.Load())

		// When the content changes
		h.hash = "hash-2"
		res, err = h.svc.Cache(t.Context(), req)
		require.NoError(t, err)

		// Then documentation is regenerated
		assert.False(t, res.Unchanged)
		assert.True(t, res.Acquired)
		assert.Equal(t, int32(2), h.docCalls.Load())
	})
}

func TestService_Cache_Workspace(t *testing.T) {
	t.Parallel()

	t.Run("without members only lists them", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.workspace = true

		res, err := h.svc.Cache(t.Context(), cratedoc.CacheRequest{Name: "ws", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()})

		require.NoError(t, err)
		assert.Equal(t, []cratedoc.MemberID{core, cli}, res.Members)
		assert.Empty(t, res.Results)
		assert.Equal(t, int32(0), h.docCalls.Load())
	})

	t.Run("failing member is reported without failing the request", func(t *testing.T) {
		t.Parallel()

		// Given a workspace whose cli member does not build
		h := newHarness(t)
		h.workspace = true
		h.failDocs = "cli"

		// When all members are cached
		res, err := h.svc.Cache(t.Context(), cratedoc.CacheRequest{
			Name: "ws", Version: "1.0.0", Origin: cratedoc.RegistryOrigin(), Members: []string{cratedoc.AllMembers},
		})

		// Then each member has its own status
		require.NoError(t, err)
		require.Len(t, res.Results, 2)
		assert.Equal(t, cratedoc.StatusOK, res.Results[0].Status)
		assert.Equal(t, cratedoc.StatusFailed, res.Results[1].Status)
		require.NotNil(t, res.Results[1].Docs)
		assert.Equal(t, cratedoc.EBUILD, res.Results[1].Docs.Code)
		assert.Equal(t, []string{"core"}, res.Entry.Documented)

		// And the healthy member is queryable
		ref := registryRef("ws", "1.0.0")
		ref.Member = "core"
		item, err := h.svc.GetItem(t.Context(), cratedoc.ItemRequest{UnitRef: ref, ID: "1"})
		require.NoError(t, err)
		assert.Equal(t, "core::HashMap", item.Path)
	})

	t.Run("origin and version requests build a member once", func(t *testing.T) {
		t.Parallel()

		// Given a repository workspace cached without members
		h := newHarness(t)
		h.workspace = true
		origin := cratedoc.Origin{Kind: cratedoc.OriginRepository, Locator: "https://github.com/demo/demo", Ref: "main"}
		first, err := h.svc.Cache(t.Context(), cratedoc.CacheRequest{Name: "demo", Origin: origin})
		require.NoError(t, err)
		version := first.Entry.Key.Version
		h.docGate = make(chan struct{})
		h.docStarted = make(chan struct{})

		// When one caller names only the origin and another the resolved
		// version while the first is still documenting
		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = h.svc.Cache(t.Context(), cratedoc.CacheRequest{Name: "demo", Origin: origin, Members: []string{"core"}})
		}()
		<-h.docStarted
		go func() {
			defer wg.Done()
			_, errs[1] = h.svc.Cache(t.Context(), cratedoc.CacheRequest{Name: "demo", Version: version, Origin: origin, Members: []string{"core"}})
		}()
		time.Sleep(20 * time.Millisecond)
		close(h.docGate)
		wg.Wait()

		// Then the member is documented once
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Equal(t, "0.0.0-main", version)
		assert.Equal(t, int32(1), h.docCalls.Load())
	})

	t.Run("unknown member lists the valid ones", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.workspace = true

		_, err := h.svc.Cache(t.Context(), cratedoc.CacheRequest{
			Name: "ws", Version: "1.0.0", Origin: cratedoc.RegistryOrigin(), Members: []string{"nope"},
		})

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
		assert.Contains(t, cratedoc.ErrorMessage(err), "core, cli")
	})

	t.Run("queries need a member", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.workspace = true

		_, err := h.svc.ListItems(t.Context(), cratedoc.ListItemsRequest{UnitRef: registryRef("ws", "1.0.0")})

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
		assert.Contains(t, cratedoc.ErrorMessage(err), "choose a member")
	})
}

func TestService_Entries(t *testing.T) {
	t.Parallel()

	t.Run("versions are listed newest first", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		for _, v := range []string{"1.2.0", "0.9.0", "1.10.0"} {
			_, err := h.svc.Cache(t.Context(), cratedoc.CacheRequest{Name: "demo", Version: v, Origin: cratedoc.RegistryOrigin()})
			require.NoError(t, err)
		}

		versions, err := h.svc.ListVersions(t.Context(), "demo")
		require.NoError(t, err)

		var got []string
		for _, v := range versions {
			got = append(got, v.Key.Version)
		}
		assert.Equal(t, []string{"1.10.0", "1.2.0", "0.9.0"}, got)

		// And a reference without a version picks the newest
		res, err := h.svc.ListItems(t.Context(), cratedoc.ListItemsRequest{UnitRef: cratedoc.UnitRef{Name: "demo"}})
		require.NoError(t, err)
		assert.Equal(t, "1.10.0", res.Key.Version)
	})

	t.Run("unknown crate without version is not found", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		_, err := h.svc.Search(t.Context(), cratedoc.SearchRequest{UnitRef: cratedoc.UnitRef{Name: "demo"}, Query: cratedoc.SearchQuery{Pattern: "map"}})

		assert.Equal(t, cratedoc.ENOTFOUND, cratedoc.ErrorCode(err))
		assert.Equal(t, int32(0), h.acquisitions.Load())
	})

	t.Run("evicted entries are gone until asked for again", func(t *testing.T) {
		t.Parallel()

		// Given a cached crate
		h := newHarness(t)
		ref := registryRef("demo", "1.0.0")
		_, err := h.svc.GetItem(t.Context(), cratedoc.ItemRequest{UnitRef: ref, ID: "1"})
		require.NoError(t, err)

		// When it is evicted
		require.NoError(t, h.svc.Evict(t.Context(), ref))

		// Then a second eviction finds nothing
		assert.Equal(t, cratedoc.ENOTFOUND, cratedoc.ErrorCode(h.svc.Evict(t.Context(), ref)))
		entries, err := h.svc.ListEntries(t.Context())
		require.NoError(t, err)
		assert.Empty(t, entries)

		// And the next query fetches it again
		_, err = h.svc.GetItem(t.Context(), cratedoc.ItemRequest{UnitRef: ref, ID: "1"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), h.acquisitions.Load())
	})
}
