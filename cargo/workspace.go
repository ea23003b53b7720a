package cargo

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// Ensure WorkspaceResolver implements cratedoc.WorkspaceResolver at compile time.
var _ cratedoc.WorkspaceResolver = (*WorkspaceResolver)(nil)

// WorkspaceResolver classifies source trees by their root manifest.
type WorkspaceResolver struct{}

// NewWorkspaceResolver creates a new WorkspaceResolver.
func NewWorkspaceResolver() *WorkspaceResolver {
	return &WorkspaceResolver{}
}

// Resolve implements cratedoc.WorkspaceResolver.
//
// Members keep their declared order. Glob patterns expand to the matching
// directories that contain a manifest, sorted lexically; literal member
// paths must contain one.
func (r *WorkspaceResolver) Resolve(ctx context.Context, root string) (*cratedoc.Workspace, error) {
	m, err := ReadManifest(root)
	if err != nil {
		return nil, err
	}

	ws := &cratedoc.Workspace{Version: m.PackageVersion(m)}
	if m.Package != nil {
		ws.Package = m.Package.Name
	}
	if !m.IsWorkspace() {
		return ws, nil
	}
	ws.IsWorkspace = true

	seen := make(map[string]bool)
	if m.Package != nil {
		ws.Members = append(ws.Members, cratedoc.MemberID{Name: m.Package.Name, Path: cratedoc.RootMemberPath})
		seen[cratedoc.RootMemberPath] = true
	}

	excluded := make(map[string]bool)
	for _, ex := range m.Workspace.Exclude {
		excluded[path.Clean(ex)] = true
	}

	for _, pattern := range m.Workspace.Members {
		if err := cratedoc.ValidateRelPath(pattern); err != nil {
			return nil, cratedoc.WrapError(cratedoc.EINVALID, err, "malformed workspace: member %q: %s", pattern, cratedoc.ErrorMessage(err))
		}
		paths, err := expandMember(root, pattern)
		if err != nil {
			return nil, err
		}
		for _, rel := range paths {
			if seen[rel] || isExcluded(excluded, rel) {
				continue
			}
			seen[rel] = true

			mm, err := ReadManifest(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return nil, cratedoc.WrapError(cratedoc.EINVALID, err, "malformed workspace: member %q: %s", rel, cratedoc.ErrorMessage(err))
			}
			if mm.Package == nil {
				return nil, cratedoc.Errorf(cratedoc.EINVALID, "malformed workspace: member %q has no [package]", rel)
			}
			ws.Members = append(ws.Members, cratedoc.MemberID{Name: mm.Package.Name, Path: rel})
		}
	}
	return ws, nil
}

// expandMember resolves one members entry to slash-separated paths
// relative to root.
func expandMember(root, pattern string) ([]string, error) {
	clean := path.Clean(pattern)
	if !strings.ContainsAny(clean, "*?[") {
		return []string{clean}, nil
	}

	matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EINVALID, err, "malformed workspace: bad member pattern %q", pattern)
	}
	var paths []string
	for _, match := range matches {
		if _, err := os.Stat(filepath.Join(match, ManifestFile)); err != nil {
			continue
		}
		rel, err := filepath.Rel(root, match)
		if err != nil {
			continue
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	sort.Strings(paths)
	return paths, nil
}

// isExcluded reports whether rel is, or lies under, an excluded path.
func isExcluded(excluded map[string]bool, rel string) bool {
	for p := rel; p != "." && p != "/"; p = path.Dir(p) {
		if excluded[p] {
			return true
		}
	}
	return false
}
