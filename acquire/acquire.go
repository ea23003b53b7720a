// Package acquire turns origin descriptors into staged source trees.
package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/fs"
)

// Ensure Acquirer implements cratedoc.SourceAcquirer at compile time.
var _ cratedoc.SourceAcquirer = (*Acquirer)(nil)

// syntheticPrefix marks versions derived from a repository ref.
const syntheticPrefix = "0.0.0-"

// Acquirer routes acquisitions to the client for the origin kind.
type Acquirer struct {
	Registry   cratedoc.RegistryClient
	Repository cratedoc.RepositoryClient
	Resolver   cratedoc.WorkspaceResolver

	// HomeDir expands "~" in local paths. Defaults to os.UserHomeDir.
	HomeDir func() (string, error)
}

// NewAcquirer creates an Acquirer with the given collaborators.
func NewAcquirer(registry cratedoc.RegistryClient, repository cratedoc.RepositoryClient, resolver cratedoc.WorkspaceResolver) *Acquirer {
	return &Acquirer{
		Registry:   registry,
		Repository: repository,
		Resolver:   resolver,
		HomeDir:    os.UserHomeDir,
	}
}

// Prepare implements cratedoc.SourceAcquirer.
func (a *Acquirer) Prepare(ctx context.Context, req cratedoc.AcquireRequest) (cratedoc.CacheKey, error) {
	if err := req.Origin.Validate(); err != nil {
		return cratedoc.CacheKey{}, err
	}
	key := cratedoc.CacheKey{Name: strings.TrimSpace(req.Name), Version: strings.TrimSpace(req.Version), Origin: req.Origin}

	switch req.Origin.Kind {
	case cratedoc.OriginRegistry:
		if key.Name == "" {
			return cratedoc.CacheKey{}, cratedoc.Errorf(cratedoc.EINVALID, "crate name required")
		}
		version, err := NormalizeVersion(key.Version)
		if err != nil {
			return cratedoc.CacheKey{}, err
		}
		key.Version = version
	case cratedoc.OriginRepository:
		if key.Name == "" {
			return cratedoc.CacheKey{}, cratedoc.Errorf(cratedoc.EINVALID, "crate name required for repository origins")
		}
	case cratedoc.OriginLocal:
		return a.prepareLocal(ctx, key)
	}
	return key, nil
}

// prepareLocal resolves the path and takes missing names and versions
// from the manifest. A provided version must match the manifest.
func (a *Acquirer) prepareLocal(ctx context.Context, key cratedoc.CacheKey) (cratedoc.CacheKey, error) {
	dir, err := a.expandPath(key.Origin.Path)
	if err != nil {
		return cratedoc.CacheKey{}, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cratedoc.CacheKey{}, cratedoc.Errorf(cratedoc.ENOTFOUND, "local path %s does not exist", dir)
		}
		return cratedoc.CacheKey{}, cratedoc.WrapError(cratedoc.EIO, err, "failed to stat %s", dir)
	}
	if !info.IsDir() {
		return cratedoc.CacheKey{}, cratedoc.Errorf(cratedoc.EINVALID, "local path %s is not a directory", dir)
	}
	key.Origin.Path = dir

	ws, err := a.Resolver.Resolve(ctx, dir)
	if err != nil {
		return cratedoc.CacheKey{}, err
	}
	if key.Name == "" {
		key.Name = ws.Package
		if key.Name == "" {
			key.Name = filepath.Base(dir)
		}
	}
	switch {
	case key.Version == "":
		key.Version = ws.Version
	case key.Version != ws.Version:
		return cratedoc.CacheKey{}, cratedoc.Errorf(cratedoc.EINVALID, "version %s does not match %s declared in %s", key.Version, ws.Version, dir)
	}
	return key, nil
}

// expandPath expands "~" and environment variables and makes p absolute.
func (a *Acquirer) expandPath(p string) (string, error) {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		homeDir := a.HomeDir
		if homeDir == nil {
			homeDir = os.UserHomeDir
		}
		home, err := homeDir()
		if err != nil {
			return "", cratedoc.WrapError(cratedoc.EINVALID, err, "cannot expand %s", p)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", cratedoc.WrapError(cratedoc.EINVALID, err, "invalid path %s", p)
	}
	return abs, nil
}

// Acquire implements cratedoc.SourceAcquirer.
func (a *Acquirer) Acquire(ctx context.Context, key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error) {
	var (
		acq *cratedoc.Acquisition
		err error
	)
	switch key.Origin.Kind {
	case cratedoc.OriginRegistry:
		acq, err = a.acquireRegistry(ctx, key, dir)
	case cratedoc.OriginRepository:
		acq, err = a.acquireRepository(ctx, key, dir)
	case cratedoc.OriginLocal:
		acq, err = a.acquireLocal(key, dir)
	default:
		err = cratedoc.Errorf(cratedoc.EINVALID, "unknown origin kind %q", key.Origin.Kind)
	}
	if err != nil {
		return nil, err
	}

	hash, size, err := fs.HashTree(dir)
	if err != nil {
		return nil, err
	}
	acq.Dir = dir
	acq.ContentHash = hash
	acq.SizeBytes = size
	return acq, nil
}

func (a *Acquirer) acquireRegistry(ctx context.Context, key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error) {
	if a.Registry == nil {
		return nil, cratedoc.Errorf(cratedoc.EINTERNAL, "no registry client configured")
	}
	body, err := a.Registry.Download(ctx, key.Name, key.Version)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if err := fs.ExtractCrate(body, dir); err != nil {
		return nil, err
	}
	return &cratedoc.Acquisition{Key: key}, nil
}

// acquireRepository clones next to dir and copies the selected subtree
// without version control metadata.
func (a *Acquirer) acquireRepository(ctx context.Context, key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error) {
	if a.Repository == nil {
		return nil, cratedoc.Errorf(cratedoc.EINTERNAL, "no repository client configured")
	}
	clone, err := os.MkdirTemp(filepath.Dir(dir), ".clone-")
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to create clone directory")
	}
	defer os.RemoveAll(clone)

	snap, err := a.Repository.Snapshot(ctx, key.Origin.Locator, key.Origin.Ref, clone)
	if err != nil {
		return nil, err
	}

	src := clone
	if key.Origin.Subpath != "" {
		src = filepath.Join(clone, filepath.FromSlash(key.Origin.Subpath))
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			return nil, cratedoc.Errorf(cratedoc.ENOTFOUND, "subpath %s not found in %s", key.Origin.Subpath, key.Origin)
		}
	}
	if _, err := os.Stat(filepath.Join(src, "Cargo.toml")); err != nil {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "%s has no Cargo.toml", key.Origin)
	}
	if err := fs.CopyTree(src, dir); err != nil {
		return nil, err
	}

	if key.Version == "" {
		ws, err := a.Resolver.Resolve(ctx, dir)
		if err != nil {
			return nil, err
		}
		key.Version = RepositoryVersion(ws.Version, key.Origin.Ref, snap.Revision)
	}
	return &cratedoc.Acquisition{Key: key, Revision: snap.Revision}, nil
}

func (a *Acquirer) acquireLocal(key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error) {
	src := key.Origin.Path
	if _, err := os.Stat(filepath.Join(src, "Cargo.toml")); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cratedoc.Errorf(cratedoc.EINVALID, "no Cargo.toml found in %s", src)
		}
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read %s", src)
	}
	if err := fs.CopyTree(src, dir); err != nil {
		return nil, err
	}
	return &cratedoc.Acquisition{Key: key}, nil
}

// NormalizeVersion returns the canonical form of a registry version.
// Returns EINVALID when v is empty or not a semantic version.
func NormalizeVersion(v string) (string, error) {
	if v == "" {
		return "", cratedoc.Errorf(cratedoc.EINVALID, "registry crates require a version")
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return "", cratedoc.WrapError(cratedoc.EINVALID, err, "invalid version %q", v)
	}
	return sv.String(), nil
}

// RepositoryVersion picks the version of a repository snapshot: the
// declared manifest version, else one derived from the ref or revision.
func RepositoryVersion(declared, ref, revision string) string {
	if declared != "" && declared != "0.0.0" {
		return declared
	}
	if ref != "" {
		return syntheticPrefix + strings.ReplaceAll(ref, "/", "-")
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if revision == "" {
		return "0.0.0"
	}
	return syntheticPrefix + revision
}
