package slog_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/mock"
	cdslog "github.com/fwojciec/cratedoc/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Operation Logging
// Every slow step leaves one structured log line with its duration and
// outcome.

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var demoKey = cratedoc.CacheKey{Name: "demo", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()}

func TestLoggingAcquirer_Acquire(t *testing.T) {
	t.Parallel()

	t.Run("logs version and size", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.SourceAcquirer{
			AcquireFn: func(_ context.Context, key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error) {
				return &cratedoc.Acquisition{Key: key, Dir: dir, SizeBytes: 2048}, nil
			},
		}

		acq, err := cdslog.NewLoggingAcquirer(inner, newLogger(&buf)).Acquire(t.Context(), demoKey, "/tmp/stage")

		require.NoError(t, err)
		assert.Equal(t, demoKey, acq.Key)
		out := buf.String()
		assert.Contains(t, out, "msg=acquire")
		assert.Contains(t, out, "version=1.0.0")
		assert.Contains(t, out, "bytes=2048")
		assert.Contains(t, out, "duration=")
	})

	t.Run("logs retryability of failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.SourceAcquirer{
			AcquireFn: func(context.Context, cratedoc.CacheKey, string) (*cratedoc.Acquisition, error) {
				return nil, cratedoc.Errorf(cratedoc.ENETWORK, "connection reset")
			},
		}

		_, err := cdslog.NewLoggingAcquirer(inner, newLogger(&buf)).Acquire(t.Context(), demoKey, "/tmp/stage")

		require.Error(t, err)
		assert.Contains(t, buf.String(), "retryable=true")
	})
}

func TestLoggingRegistryClient_Download(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.RegistryClient{
		DownloadFn: func(context.Context, string, string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("tarball")), nil
		},
	}

	body, err := cdslog.NewLoggingRegistryClient(inner, newLogger(&buf)).Download(t.Context(), "serde", "1.0.200")

	require.NoError(t, err)
	defer body.Close()
	out := buf.String()
	assert.Contains(t, out, "registry download")
	assert.Contains(t, out, "crate=serde")
	assert.Contains(t, out, "version=1.0.200")
}

func TestLoggingRepositoryClient_Snapshot(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.RepositoryClient{
		SnapshotFn: func(context.Context, string, string, string) (*cratedoc.Snapshot, error) {
			return &cratedoc.Snapshot{Revision: "abc123"}, nil
		},
	}

	_, err := cdslog.NewLoggingRepositoryClient(inner, newLogger(&buf)).Snapshot(t.Context(), "https://example.com/r.git", "main", "/tmp/clone")

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "revision=abc123")
}

func TestLoggingDocGenerator_GenerateDocs(t *testing.T) {
	t.Parallel()

	t.Run("logs item count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.DocGenerator{
			GenerateDocsFn: func(context.Context, cratedoc.DocRequest) (*cratedoc.DocArtifact, error) {
				return &cratedoc.DocArtifact{Items: map[string]*cratedoc.Item{"0": {ID: "0"}, "1": {ID: "1"}}}, nil
			},
			ToolchainFn: func() string { return "nightly" },
		}
		g := cdslog.NewLoggingDocGenerator(inner, newLogger(&buf))

		_, err := g.GenerateDocs(t.Context(), cratedoc.DocRequest{Dir: "/src", Package: "core"})

		require.NoError(t, err)
		assert.Equal(t, "nightly", g.Toolchain())
		assert.Contains(t, buf.String(), "items=2")
		assert.Contains(t, buf.String(), "package=core")
	})

	t.Run("logs build diagnostics at debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.DocGenerator{
			GenerateDocsFn: func(context.Context, cratedoc.DocRequest) (*cratedoc.DocArtifact, error) {
				return nil, cratedoc.WithDetail(cratedoc.Errorf(cratedoc.EBUILD, "rustdoc failed"), "error[E0425]")
			},
		}

		_, err := cdslog.NewLoggingDocGenerator(inner, newLogger(&buf)).GenerateDocs(t.Context(), cratedoc.DocRequest{Package: "core"})

		require.Error(t, err)
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "E0425")
	})
}

func TestLoggingDependencyResolver_ResolveDependencies(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.DependencyResolver{
		ResolveDependenciesFn: func(context.Context, string, string) (*cratedoc.DependencyArtifact, error) {
			return &cratedoc.DependencyArtifact{Dependencies: []*cratedoc.Dependency{{Name: "serde"}}}, nil
		},
	}

	_, err := cdslog.NewLoggingDependencyResolver(inner, newLogger(&buf)).ResolveDependencies(t.Context(), "/src", "")

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "count=1")
}

func TestLoggingStructureAnalyzer_AnalyzeStructure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.StructureAnalyzer{
		AnalyzeStructureFn: func(context.Context, string, string) (*cratedoc.ModuleTree, error) {
			return nil, cratedoc.Errorf(cratedoc.ETOOLCHAIN, "cargo-modules not installed")
		},
	}

	_, err := cdslog.NewLoggingStructureAnalyzer(inner, newLogger(&buf)).AnalyzeStructure(t.Context(), "/src", "core")

	assert.Equal(t, cratedoc.ETOOLCHAIN, cratedoc.ErrorCode(err))
	assert.Contains(t, buf.String(), "analyze structure")
	assert.Contains(t, buf.String(), "cargo-modules not installed")
}

func TestLoggingMaterializer_Materialize(t *testing.T) {
	t.Parallel()

	// Given a materialization where one member fails
	var buf bytes.Buffer
	ok := cratedoc.MemberID{Name: "core", Path: "crates/core"}
	bad := cratedoc.MemberID{Name: "cli", Path: "crates/cli"}
	inner := &mock.Materializer{
		MaterializeFn: func(context.Context, *cratedoc.CacheEntry, []cratedoc.MemberID) []*cratedoc.MemberResult {
			return []*cratedoc.MemberResult{
				{Member: ok, DocHash: "h"},
				{Member: bad, DocErr: cratedoc.Errorf(cratedoc.EBUILD, "rustdoc failed")},
			}
		},
	}
	entry := &cratedoc.CacheEntry{Key: demoKey, IsWorkspace: true, Members: []cratedoc.MemberID{ok, bad}}

	// When it runs through the decorator
	results := cdslog.NewLoggingMaterializer(inner, newLogger(&buf)).Materialize(t.Context(), entry, entry.Members)

	// Then results pass through unchanged
	require.Len(t, results, 2)

	// And the failing member is logged as a warning
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "level=INFO")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], "member=cli")
	assert.Contains(t, lines[2], "members=2")
}

func TestLoggingIndexService(t *testing.T) {
	t.Parallel()

	t.Run("logs builds", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.IndexService{
			BuildFn: func(context.Context, string, string, *cratedoc.DocArtifact) error { return nil },
		}
		doc := &cratedoc.DocArtifact{Items: map[string]*cratedoc.Item{"0": {ID: "0"}}}

		err := cdslog.NewLoggingIndexService(inner, newLogger(&buf)).Build(t.Context(), "/cache/index.db", "h", doc)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "index build")
		assert.Contains(t, buf.String(), "items=1")
	})

	t.Run("logs searches at debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.IndexService{
			SearchFn: func(context.Context, string, cratedoc.SearchQuery) (*cratedoc.SearchPage, error) {
				return &cratedoc.SearchPage{Total: 7}, nil
			},
		}

		_, err := cdslog.NewLoggingIndexService(inner, newLogger(&buf)).Search(t.Context(), "/cache/index.db", cratedoc.SearchQuery{Pattern: "map"})

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "total=7")
	})
}
