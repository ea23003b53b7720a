package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/cratedoc/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTree(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"Cargo.toml":           "[package]",
		"src/lib.rs":           "pub fn a() {}",
		".git/HEAD":            "ref: refs/heads/main",
		"target/debug/foo":     "binary",
		"crates/x/target/y.rs": "kept",
	})
	dst := filepath.Join(t.TempDir(), "copy")

	require.NoError(t, fs.CopyTree(src, dst))

	assert.FileExists(t, filepath.Join(dst, "Cargo.toml"))
	assert.FileExists(t, filepath.Join(dst, "src", "lib.rs"))
	assert.FileExists(t, filepath.Join(dst, "crates", "x", "target", "y.rs"))
	assert.NoDirExists(t, filepath.Join(dst, ".git"))
	assert.NoDirExists(t, filepath.Join(dst, "target"))
}

func TestCopyTree_FollowsFileLinks(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	outside := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(outside, []byte("readme"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(src, "README.md")))
	dst := filepath.Join(t.TempDir(), "copy")

	require.NoError(t, fs.CopyTree(src, dst))

	info, err := os.Lstat(filepath.Join(dst, "README.md"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

func TestHashTree(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"Cargo.toml": "[package]\nname = \"foo\"",
		"src/lib.rs": "pub fn a() {}",
	}
	a := t.TempDir()
	b := t.TempDir()
	writeTree(t, a, files)
	writeTree(t, b, files)

	hashA, sizeA, err := fs.HashTree(a)
	require.NoError(t, err)
	hashB, _, err := fs.HashTree(b)
	require.NoError(t, err)

	// Identical trees hash identically wherever they live
	assert.Equal(t, hashA, hashB)
	assert.Equal(t, int64(len(files["Cargo.toml"])+len(files["src/lib.rs"])), sizeA)

	// Content changes change the hash
	require.NoError(t, os.WriteFile(filepath.Join(b, "src", "lib.rs"), []byte("pub fn b() {}"), 0644))
	hashB, _, err = fs.HashTree(b)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)

	// VCS metadata does not
	writeTree(t, a, map[string]string{".git/HEAD": "x"})
	again, _, err := fs.HashTree(a)
	require.NoError(t, err)
	assert.Equal(t, hashA, again)
}
