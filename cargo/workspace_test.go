package cargo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/cargo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Workspace Resolution
// Source trees are classified as single packages or workspaces with an
// ordered member list.

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func pkgManifest(name string) string {
	return "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\n"
}

func TestWorkspaceResolver_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("single package yields no members", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFiles(t, root, map[string]string{"Cargo.toml": pkgManifest("serde")})

		ws, err := cargo.NewWorkspaceResolver().Resolve(t.Context(), root)

		require.NoError(t, err)
		assert.False(t, ws.IsWorkspace)
		assert.Equal(t, "serde", ws.Package)
		assert.Equal(t, "0.1.0", ws.Version)
		assert.Empty(t, ws.Members)
	})

	t.Run("virtual workspace expands globs in sorted order", func(t *testing.T) {
		t.Parallel()

		// Given a virtual manifest with a glob and a literal member
		root := t.TempDir()
		writeFiles(t, root, map[string]string{
			"Cargo.toml":           "[workspace]\nmembers = [\"tools/cli\", \"crates/*\"]\n",
			"tools/cli/Cargo.toml": pkgManifest("cli"),
			"crates/b/Cargo.toml":  pkgManifest("b"),
			"crates/a/Cargo.toml":  pkgManifest("a"),
			"crates/notes/README":  "not a crate",
			"crates/a/src/lib.rs":  "",
		})

		// When I resolve it
		ws, err := cargo.NewWorkspaceResolver().Resolve(t.Context(), root)

		// Then members keep declaration order with globs sorted
		require.NoError(t, err)
		assert.True(t, ws.IsWorkspace)
		assert.Empty(t, ws.Package)
		assert.Equal(t, []cratedoc.MemberID{
			{Name: "cli", Path: "tools/cli"},
			{Name: "a", Path: "crates/a"},
			{Name: "b", Path: "crates/b"},
		}, ws.Members)
	})

	t.Run("root package is listed first", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFiles(t, root, map[string]string{
			"Cargo.toml":        "[package]\nname = \"tokio\"\nversion.workspace = true\n\n[workspace]\nmembers = [\"macros\"]\n\n[workspace.package]\nversion = \"1.40.0\"\n",
			"macros/Cargo.toml": pkgManifest("tokio-macros"),
		})

		ws, err := cargo.NewWorkspaceResolver().Resolve(t.Context(), root)

		require.NoError(t, err)
		assert.Equal(t, "1.40.0", ws.Version)
		require.Len(t, ws.Members, 2)
		assert.Equal(t, cratedoc.MemberID{Name: "tokio", Path: "."}, ws.Members[0])
		assert.True(t, ws.Members[0].IsRoot())
		assert.Equal(t, "macros", ws.Members[1].Path)
	})

	t.Run("excluded paths are skipped", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFiles(t, root, map[string]string{
			"Cargo.toml":            "[workspace]\nmembers = [\"crates/*\"]\nexclude = [\"crates/old\"]\n",
			"crates/new/Cargo.toml": pkgManifest("new"),
			"crates/old/Cargo.toml": pkgManifest("old"),
		})

		ws, err := cargo.NewWorkspaceResolver().Resolve(t.Context(), root)

		require.NoError(t, err)
		assert.Equal(t, []string{"new"}, memberNames(ws.Members))
	})

	t.Run("literal member without manifest is malformed", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFiles(t, root, map[string]string{
			"Cargo.toml":     "[workspace]\nmembers = [\"missing\"]\n",
			"missing/README": "",
		})

		_, err := cargo.NewWorkspaceResolver().Resolve(t.Context(), root)

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
		assert.Contains(t, cratedoc.ErrorMessage(err), "malformed workspace")
	})

	t.Run("escaping member path is malformed", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFiles(t, root, map[string]string{"Cargo.toml": "[workspace]\nmembers = [\"../outside\"]\n"})

		_, err := cargo.NewWorkspaceResolver().Resolve(t.Context(), root)

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})

	t.Run("missing root manifest is invalid", func(t *testing.T) {
		t.Parallel()

		_, err := cargo.NewWorkspaceResolver().Resolve(t.Context(), t.TempDir())

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})
}

func memberNames(members []cratedoc.MemberID) []string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	return names
}

func TestParseManifest(t *testing.T) {
	t.Parallel()

	t.Run("missing version defaults to 0.0.0", func(t *testing.T) {
		t.Parallel()

		m, err := cargo.ParseManifest([]byte("[package]\nname = \"x\"\n"))

		require.NoError(t, err)
		assert.Equal(t, "0.0.0", m.PackageVersion(nil))
	})

	t.Run("inherited version resolves against the workspace", func(t *testing.T) {
		t.Parallel()

		ws, err := cargo.ParseManifest([]byte("[workspace]\nmembers = [\"a\"]\n[workspace.package]\nversion = \"2.0.0\"\n"))
		require.NoError(t, err)
		m, err := cargo.ParseManifest([]byte("[package]\nname = \"a\"\nversion = { workspace = true }\n"))
		require.NoError(t, err)

		assert.Equal(t, "2.0.0", m.PackageVersion(ws))
	})

	t.Run("rejects manifests without package or workspace", func(t *testing.T) {
		t.Parallel()

		_, err := cargo.ParseManifest([]byte("[dependencies]\nserde = \"1\"\n"))

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})

	t.Run("rejects malformed toml", func(t *testing.T) {
		t.Parallel()

		_, err := cargo.ParseManifest([]byte("[package\nname="))

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})

	t.Run("rejects unnamed packages", func(t *testing.T) {
		t.Parallel()

		_, err := cargo.ParseManifest([]byte("[package]\nversion = \"1.0.0\"\n"))

		assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
	})
}
