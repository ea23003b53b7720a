package cargo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/cratedoc"
	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the name of a package manifest.
const ManifestFile = "Cargo.toml"

// defaultVersion is used for packages that declare no version.
const defaultVersion = "0.0.0"

// Manifest is the subset of Cargo.toml the cache needs.
type Manifest struct {
	Package   *PackageSection   `toml:"package"`
	Lib       *LibSection       `toml:"lib"`
	Workspace *WorkspaceSection `toml:"workspace"`
}

// LibSection is the [lib] table.
type LibSection struct {
	Name string `toml:"name"`
}

// PackageSection is the [package] table.
type PackageSection struct {
	Name string `toml:"name"`
	// Version is a string or an inherited {workspace = true} table.
	Version any `toml:"version"`
}

// WorkspaceSection is the [workspace] table.
type WorkspaceSection struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
	Package *struct {
		Version string `toml:"version"`
	} `toml:"package"`
}

// IsWorkspace reports whether the manifest declares member packages.
func (m *Manifest) IsWorkspace() bool {
	return m.Workspace != nil && len(m.Workspace.Members) > 0
}

// IsVirtual reports whether the manifest has a [workspace] but no package.
func (m *Manifest) IsVirtual() bool {
	return m.Workspace != nil && m.Package == nil
}

// PackageVersion returns the declared package version. Versions inherited
// from the workspace resolve against ws, which may be nil.
func (m *Manifest) PackageVersion(ws *Manifest) string {
	if m.Package == nil {
		if v := ws.workspaceVersion(); v != "" {
			return v
		}
		return m.workspaceVersion()
	}
	switch v := m.Package.Version.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if inherit, _ := v["workspace"].(bool); inherit {
			if wv := ws.workspaceVersion(); wv != "" {
				return wv
			}
			if wv := m.workspaceVersion(); wv != "" {
				return wv
			}
		}
	}
	return defaultVersion
}

// CrateName returns the name of the library crate: the [lib] name when
// set, otherwise the package name with dashes replaced.
func (m *Manifest) CrateName() string {
	if m.Lib != nil && m.Lib.Name != "" {
		return m.Lib.Name
	}
	if m.Package == nil {
		return ""
	}
	return strings.ReplaceAll(m.Package.Name, "-", "_")
}

func (m *Manifest) workspaceVersion() string {
	if m == nil || m.Workspace == nil || m.Workspace.Package == nil {
		return ""
	}
	return m.Workspace.Package.Version
}

// ReadManifest parses the Cargo.toml in dir.
// Returns EINVALID if it is missing or malformed.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cratedoc.Errorf(cratedoc.EINVALID, "no %s found in %s", ManifestFile, dir)
		}
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read %s", path)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest contents.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EINVALID, err, "malformed %s: %s", ManifestFile, err)
	}
	if m.Package == nil && m.Workspace == nil {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "%s declares neither [package] nor [workspace]", ManifestFile)
	}
	if m.Package != nil && m.Package.Name == "" {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "%s [package] has no name", ManifestFile)
	}
	return &m, nil
}
