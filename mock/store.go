package mock

import (
	"context"

	"github.com/fwojciec/cratedoc"
)

var (
	_ cratedoc.Store = (*Store)(nil)
	_ cratedoc.Lock  = (*Lock)(nil)
)

// Store is a mock implementation of cratedoc.Store.
type Store struct {
	ReserveFn                 func(ctx context.Context, key cratedoc.CacheKey) (context.Context, cratedoc.Lock, error)
	StageFn                   func(ctx context.Context) (string, error)
	DiscardFn                 func(dir string) error
	CommitSourceFn            func(ctx context.Context, entry *cratedoc.CacheEntry, staging string) error
	ReadEntryFn               func(ctx context.Context, key cratedoc.CacheKey) (*cratedoc.CacheEntry, error)
	UpdateEntryFn             func(ctx context.Context, entry *cratedoc.CacheEntry) error
	WriteDocArtifactFn        func(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, doc *cratedoc.DocArtifact) (string, error)
	ReadDocArtifactFn         func(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.DocArtifact, error)
	WriteDependencyArtifactFn func(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, deps *cratedoc.DependencyArtifact) error
	ReadDependencyArtifactFn  func(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.DependencyArtifact, error)
	WriteMetadataFn           func(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, meta *cratedoc.Metadata) error
	ReadMetadataFn            func(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.Metadata, error)
	ListEntriesFn             func(ctx context.Context) ([]*cratedoc.EntrySummary, error)
	ListVersionsFn            func(ctx context.Context, name string) ([]*cratedoc.EntrySummary, error)
	EvictFn                   func(ctx context.Context, key cratedoc.CacheKey) error
	UnitDirFn                 func(key cratedoc.CacheKey, member cratedoc.MemberID) string
	IndexPathFn               func(key cratedoc.CacheKey, member cratedoc.MemberID) string
	TargetDirFn               func(key cratedoc.CacheKey) string
}

func (s *Store) Reserve(ctx context.Context, key cratedoc.CacheKey) (context.Context, cratedoc.Lock, error) {
	return s.ReserveFn(ctx, key)
}

func (s *Store) Stage(ctx context.Context) (string, error) {
	return s.StageFn(ctx)
}

func (s *Store) Discard(dir string) error {
	return s.DiscardFn(dir)
}

func (s *Store) CommitSource(ctx context.Context, entry *cratedoc.CacheEntry, staging string) error {
	return s.CommitSourceFn(ctx, entry, staging)
}

func (s *Store) ReadEntry(ctx context.Context, key cratedoc.CacheKey) (*cratedoc.CacheEntry, error) {
	return s.ReadEntryFn(ctx, key)
}

func (s *Store) UpdateEntry(ctx context.Context, entry *cratedoc.CacheEntry) error {
	return s.UpdateEntryFn(ctx, entry)
}

func (s *Store) WriteDocArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, doc *cratedoc.DocArtifact) (string, error) {
	return s.WriteDocArtifactFn(ctx, key, member, doc)
}

func (s *Store) ReadDocArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.DocArtifact, error) {
	return s.ReadDocArtifactFn(ctx, key, member)
}

func (s *Store) WriteDependencyArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, deps *cratedoc.DependencyArtifact) error {
	return s.WriteDependencyArtifactFn(ctx, key, member, deps)
}

func (s *Store) ReadDependencyArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.DependencyArtifact, error) {
	return s.ReadDependencyArtifactFn(ctx, key, member)
}

func (s *Store) WriteMetadata(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, meta *cratedoc.Metadata) error {
	return s.WriteMetadataFn(ctx, key, member, meta)
}

func (s *Store) ReadMetadata(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.Metadata, error) {
	return s.ReadMetadataFn(ctx, key, member)
}

func (s *Store) ListEntries(ctx context.Context) ([]*cratedoc.EntrySummary, error) {
	return s.ListEntriesFn(ctx)
}

func (s *Store) ListVersions(ctx context.Context, name string) ([]*cratedoc.EntrySummary, error) {
	return s.ListVersionsFn(ctx, name)
}

func (s *Store) Evict(ctx context.Context, key cratedoc.CacheKey) error {
	return s.EvictFn(ctx, key)
}

func (s *Store) UnitDir(key cratedoc.CacheKey, member cratedoc.MemberID) string {
	return s.UnitDirFn(key, member)
}

func (s *Store) IndexPath(key cratedoc.CacheKey, member cratedoc.MemberID) string {
	return s.IndexPathFn(key, member)
}

func (s *Store) TargetDir(key cratedoc.CacheKey) string {
	return s.TargetDirFn(key)
}

// Lock is a mock implementation of cratedoc.Lock.
type Lock struct {
	ReleaseFn func() error
}

func (l *Lock) Release() error {
	if l.ReleaseFn == nil {
		return nil
	}
	return l.ReleaseFn()
}
