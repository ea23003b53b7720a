package mock

import (
	"context"
	"io"

	"github.com/fwojciec/cratedoc"
)

var (
	_ cratedoc.SourceAcquirer   = (*SourceAcquirer)(nil)
	_ cratedoc.RegistryClient   = (*RegistryClient)(nil)
	_ cratedoc.RepositoryClient = (*RepositoryClient)(nil)
)

// SourceAcquirer is a mock implementation of cratedoc.SourceAcquirer.
type SourceAcquirer struct {
	PrepareFn func(ctx context.Context, req cratedoc.AcquireRequest) (cratedoc.CacheKey, error)
	AcquireFn func(ctx context.Context, key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error)
}

func (a *SourceAcquirer) Prepare(ctx context.Context, req cratedoc.AcquireRequest) (cratedoc.CacheKey, error) {
	return a.PrepareFn(ctx, req)
}

func (a *SourceAcquirer) Acquire(ctx context.Context, key cratedoc.CacheKey, dir string) (*cratedoc.Acquisition, error) {
	return a.AcquireFn(ctx, key, dir)
}

// RegistryClient is a mock implementation of cratedoc.RegistryClient.
type RegistryClient struct {
	DownloadFn func(ctx context.Context, name, version string) (io.ReadCloser, error)
}

func (c *RegistryClient) Download(ctx context.Context, name, version string) (io.ReadCloser, error) {
	return c.DownloadFn(ctx, name, version)
}

// RepositoryClient is a mock implementation of cratedoc.RepositoryClient.
type RepositoryClient struct {
	SnapshotFn func(ctx context.Context, locator, ref, dir string) (*cratedoc.Snapshot, error)
}

func (c *RepositoryClient) Snapshot(ctx context.Context, locator, ref, dir string) (*cratedoc.Snapshot, error) {
	return c.SnapshotFn(ctx, locator, ref, dir)
}
