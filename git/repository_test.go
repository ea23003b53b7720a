package git_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/git"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Repository Snapshots
// Branches, tags and commits of a repository are checked out into
// snapshot directories.

type fixture struct {
	dir    string
	first  plumbing.Hash
	second plumbing.Hash
}

// newFixture creates a repository with two commits on master, a tag on
// the first and a branch "dev" on the first.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commit := func(content string) plumbing.Hash {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(content), 0o644))
		_, err := wt.Add("Cargo.toml")
		require.NoError(t, err)
		hash, err := wt.Commit("update", &gogit.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(1700000000, 0)},
		})
		require.NoError(t, err)
		return hash
	}

	f := &fixture{dir: dir}
	f.first = commit("[package]\nname = \"x\"\nversion = \"0.1.0\"\n")
	_, err = repo.CreateTag("v0.1.0", f.first, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("dev"), f.first)))
	f.second = commit("[package]\nname = \"x\"\nversion = \"0.2.0\"\n")
	return f
}

func manifest(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)
	return string(data)
}

func TestRepositoryClient_Snapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	client := &git.RepositoryClient{}

	t.Run("default branch", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		snap, err := client.Snapshot(t.Context(), f.dir, "", dir)

		require.NoError(t, err)
		assert.Equal(t, f.second.String(), snap.Revision)
		assert.Contains(t, manifest(t, dir), "0.2.0")
	})

	t.Run("named branch", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		snap, err := client.Snapshot(t.Context(), f.dir, "dev", dir)

		require.NoError(t, err)
		assert.Equal(t, f.first.String(), snap.Revision)
	})

	t.Run("tag after branch lookup fails", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		snap, err := client.Snapshot(t.Context(), f.dir, "v0.1.0", dir)

		require.NoError(t, err)
		assert.Equal(t, f.first.String(), snap.Revision)
		assert.Contains(t, manifest(t, dir), "0.1.0")
	})

	t.Run("commit hash", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		snap, err := client.Snapshot(t.Context(), f.dir, f.first.String(), dir)

		require.NoError(t, err)
		assert.Equal(t, f.first.String(), snap.Revision)
		assert.Contains(t, manifest(t, dir), "0.1.0")
	})

	t.Run("unknown ref is not found", func(t *testing.T) {
		t.Parallel()

		_, err := client.Snapshot(t.Context(), f.dir, "no-such-branch", t.TempDir())

		assert.Equal(t, cratedoc.ENOTFOUND, cratedoc.ErrorCode(err))
	})

	t.Run("missing repository is not found", func(t *testing.T) {
		t.Parallel()

		_, err := client.Snapshot(t.Context(), filepath.Join(t.TempDir(), "missing"), "", t.TempDir())

		assert.Equal(t, cratedoc.ENOTFOUND, cratedoc.ErrorCode(err))
		assert.False(t, cratedoc.IsRetryable(err))
	})
}
