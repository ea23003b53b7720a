package cratedoc

import (
	"context"
	"io"
)

// AcquireRequest names a crate version at an origin.
type AcquireRequest struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Origin  Origin `json:"origin"`
}

// Acquisition describes a source tree placed in a staging directory.
type Acquisition struct {
	// Key is the final key, with the version resolved from the source.
	Key         CacheKey `json:"key"`
	Dir         string   `json:"dir"`
	ContentHash string   `json:"contentHash"`
	SizeBytes   int64    `json:"sizeBytes"`
	Revision    string   `json:"revision,omitempty"`
}

// SourceAcquirer turns an origin descriptor into a staged source tree.
// It never retries; failures report whether a retry may succeed.
type SourceAcquirer interface {
	// Prepare computes the cache key before any network work. Keys whose
	// version is only known after fetching are returned with an empty
	// version and reserve the whole origin.
	Prepare(ctx context.Context, req AcquireRequest) (CacheKey, error)

	// Acquire fills dir with the source tree of key.
	Acquire(ctx context.Context, key CacheKey, dir string) (*Acquisition, error)
}

// RegistryClient downloads published crate archives.
type RegistryClient interface {
	// Download returns the gzipped tarball of name@version.
	// Returns ENOTFOUND if the version was never published.
	Download(ctx context.Context, name, version string) (io.ReadCloser, error)
}

// Snapshot describes a checked-out repository.
type Snapshot struct {
	Revision string `json:"revision"`
}

// RepositoryClient fetches repository snapshots.
type RepositoryClient interface {
	// Snapshot checks out ref of the repository at locator into dir.
	// An empty ref selects the default branch.
	Snapshot(ctx context.Context, locator, ref, dir string) (*Snapshot, error)
}
