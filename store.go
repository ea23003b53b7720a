package cratedoc

import "context"

// Lock is an exclusive reservation of a cache key.
type Lock interface {
	// Release gives up the reservation. It is safe to call more than once.
	Release() error
}

// Store owns the on-disk cache layout.
//
// Mutating methods reserve the key themselves unless the context already
// holds its reservation, so they may be called both inside and outside of
// a Reserve scope.
type Store interface {
	// Reserve blocks until the caller holds key exclusively across
	// goroutines and processes. The returned context marks the key as held
	// and must be passed to nested calls. Returns ELOCKTIMEOUT when the
	// reservation cannot be obtained in time.
	Reserve(ctx context.Context, key CacheKey) (context.Context, Lock, error)

	// Stage creates an empty staging directory on the cache volume.
	Stage(ctx context.Context) (string, error)

	// Discard removes a staging directory that will not be committed.
	Discard(dir string) error

	// CommitSource moves a populated staging directory into place as the
	// source tree of entry.Key and records entry. On failure no entry is
	// left behind and the staging directory is removed.
	CommitSource(ctx context.Context, entry *CacheEntry, staging string) error

	// ReadEntry returns the entry for key.
	// Returns ENOTFOUND if the key is not cached.
	ReadEntry(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// UpdateEntry rewrites the record of an existing entry.
	UpdateEntry(ctx context.Context, entry *CacheEntry) error

	// WriteDocArtifact atomically replaces the member's DocArtifact,
	// invalidates its search index and returns the hash of what was written.
	WriteDocArtifact(ctx context.Context, key CacheKey, member MemberID, doc *DocArtifact) (string, error)

	// ReadDocArtifact returns ENOTFOUND if no DocArtifact exists.
	ReadDocArtifact(ctx context.Context, key CacheKey, member MemberID) (*DocArtifact, error)

	// WriteDependencyArtifact atomically replaces the member's dependencies.
	WriteDependencyArtifact(ctx context.Context, key CacheKey, member MemberID, deps *DependencyArtifact) error

	// ReadDependencyArtifact returns ENOTFOUND if no artifact exists.
	ReadDependencyArtifact(ctx context.Context, key CacheKey, member MemberID) (*DependencyArtifact, error)

	WriteMetadata(ctx context.Context, key CacheKey, member MemberID, meta *Metadata) error
	ReadMetadata(ctx context.Context, key CacheKey, member MemberID) (*Metadata, error)

	// ListEntries returns a summary of every cached entry.
	ListEntries(ctx context.Context) ([]*EntrySummary, error)
	// ListVersions returns summaries of the entries of one crate without
	// measuring their disk usage.
	ListVersions(ctx context.Context, name string) ([]*EntrySummary, error)

	// Evict removes the entry and every derived artifact and index.
	// Returns ENOTFOUND if the key is not cached.
	Evict(ctx context.Context, key CacheKey) error

	// UnitDir returns the directory holding the member's artifacts.
	UnitDir(key CacheKey, member MemberID) string

	// IndexPath returns the location of the member's search index.
	IndexPath(key CacheKey, member MemberID) string

	// TargetDir returns the build scratch directory of the entry.
	TargetDir(key CacheKey) string
}
