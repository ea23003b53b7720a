// Package fs provides the on-disk cache store and filesystem helpers.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/google/uuid"
)

// Ensure Store implements cratedoc.Store at compile time.
var _ cratedoc.Store = (*Store)(nil)

// Defaults for lock waits.
const (
	DefaultLockTimeout  = 5 * time.Minute
	DefaultPollInterval = 100 * time.Millisecond
)

// File names inside an entry directory.
const (
	entryFile      = "entry.json"
	sourceDir      = "source"
	targetDir      = "target"
	membersDir     = "members"
	docsFile       = "docs.json"
	depsFile       = "dependencies.json"
	metadataFile   = "metadata.json"
	indexFile      = "index.db"
	cratesDir      = "crates"
	stagingDir     = "staging"
	tmpInfix       = ".tmp-"
	trashInfix     = ".old-"
	lockSuffix     = ".lock"
	originLockHead = "."
)

// Store implements cratedoc.Store on a directory tree.
//
// Layout under the root:
//
//	crates/<name>/<version>/<origin>/          entry directory
//	crates/<name>/<version>/<origin>.lock      key lock
//	crates/<name>/.<origin>.lock               origin reservation lock
//	staging/<uuid>/                            staged source trees
type Store struct {
	root string

	// LockTimeout bounds how long Reserve waits.
	LockTimeout time.Duration
	// PollInterval is the retry delay for cross-process lock attempts.
	PollInterval time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewStore returns a store rooted at root.
func NewStore(root string) *Store {
	return &Store{
		root:         root,
		LockTimeout:  DefaultLockTimeout,
		PollInterval: DefaultPollInterval,
		Now:          time.Now,
		locks:        make(map[string]*keyLock),
	}
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) entryDir(key cratedoc.CacheKey) string {
	return filepath.Join(s.root, cratesDir, key.Name, key.Version, key.Origin.Slug())
}

func (s *Store) lockPath(key cratedoc.CacheKey) string {
	if key.Version == "" {
		return filepath.Join(s.root, cratesDir, key.Name, originLockHead+key.Origin.Slug()+lockSuffix)
	}
	return s.entryDir(key) + lockSuffix
}

// UnitDir implements cratedoc.Store.
func (s *Store) UnitDir(key cratedoc.CacheKey, member cratedoc.MemberID) string {
	if member.IsRoot() {
		return s.entryDir(key)
	}
	return filepath.Join(s.entryDir(key), membersDir, member.Slug())
}

// IndexPath implements cratedoc.Store.
func (s *Store) IndexPath(key cratedoc.CacheKey, member cratedoc.MemberID) string {
	return filepath.Join(s.UnitDir(key, member), indexFile)
}

// TargetDir implements cratedoc.Store.
func (s *Store) TargetDir(key cratedoc.CacheKey) string {
	return filepath.Join(s.entryDir(key), targetDir)
}

// Stage implements cratedoc.Store.
func (s *Store) Stage(ctx context.Context) (string, error) {
	base := filepath.Join(s.root, stagingDir)
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", cratedoc.WrapError(cratedoc.EIO, err, "failed to create staging directory")
	}
	dir := filepath.Join(base, uuid.NewString())
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", cratedoc.WrapError(cratedoc.EIO, err, "failed to create staging directory")
	}
	return dir, nil
}

// Discard implements cratedoc.Store.
func (s *Store) Discard(dir string) error {
	rel, err := filepath.Rel(filepath.Join(s.root, stagingDir), dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return cratedoc.Errorf(cratedoc.EINVALID, "%q is not a staging directory", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to remove staging directory")
	}
	return nil
}

// CommitSource implements cratedoc.Store.
//
// The new entry is assembled in a sibling temp directory and renamed into
// place. A previous entry is moved aside first and restored if the final
// rename fails.
func (s *Store) CommitSource(ctx context.Context, entry *cratedoc.CacheEntry, staging string) (err error) {
	key := entry.Key
	tmp := s.entryDir(key) + tmpInfix + uuid.NewString()
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := key.Validate(); err != nil {
		return err
	}
	_, lock, err := s.Reserve(ctx, key)
	if err != nil {
		return err
	}
	defer lock.Release()

	final := s.entryDir(key)
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to prepare entry for %s", key)
	}
	if err := os.Rename(staging, filepath.Join(tmp, sourceDir)); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to move staged source for %s", key)
	}

	now := s.Now().UTC()
	entry.SourceRoot = filepath.Join(final, sourceDir)
	entry.RefreshedAt = now
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if size, err := DirSize(filepath.Join(tmp, sourceDir)); err == nil {
		entry.SizeBytes = size
	}
	if err := writeJSON(filepath.Join(tmp, entryFile), entry); err != nil {
		return err
	}

	var trash string
	if _, statErr := os.Stat(final); statErr == nil {
		trash = final + trashInfix + uuid.NewString()
		if err := os.Rename(final, trash); err != nil {
			return cratedoc.WrapError(cratedoc.EIO, err, "failed to replace entry for %s", key)
		}
	}
	if err := os.Rename(tmp, final); err != nil {
		if trash != "" {
			_ = os.Rename(trash, final)
		}
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to commit entry for %s", key)
	}
	if trash != "" {
		_ = os.RemoveAll(trash)
	}
	return nil
}

// ReadEntry implements cratedoc.Store.
func (s *Store) ReadEntry(ctx context.Context, key cratedoc.CacheKey) (*cratedoc.CacheEntry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var entry cratedoc.CacheEntry
	if err := readJSON(filepath.Join(s.entryDir(key), entryFile), &entry); err != nil {
		if cratedoc.ErrorCode(err) == cratedoc.ENOTFOUND {
			return nil, cratedoc.Errorf(cratedoc.ENOTFOUND, "%s is not cached", key)
		}
		return nil, err
	}
	return &entry, nil
}

// UpdateEntry implements cratedoc.Store.
func (s *Store) UpdateEntry(ctx context.Context, entry *cratedoc.CacheEntry) error {
	_, lock, err := s.Reserve(ctx, entry.Key)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := s.requireEntry(entry.Key); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.entryDir(entry.Key), entryFile), entry)
}

func (s *Store) requireEntry(key cratedoc.CacheKey) error {
	if _, err := os.Stat(filepath.Join(s.entryDir(key), entryFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cratedoc.Errorf(cratedoc.ENOTFOUND, "%s is not cached", key)
		}
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to stat entry for %s", key)
	}
	return nil
}

// ListEntries implements cratedoc.Store. Directories without a readable
// entry record, such as interrupted commits, are skipped.
func (s *Store) ListEntries(ctx context.Context) ([]*cratedoc.EntrySummary, error) {
	pattern := filepath.Join(s.root, cratesDir, "*", "*", "*", entryFile)
	return s.list(pattern, func(entry *cratedoc.CacheEntry) *cratedoc.EntrySummary {
		sum := s.summarize(entry)
		if size, err := DirSize(s.entryDir(entry.Key)); err == nil {
			sum.SizeBytes = size
		}
		return sum
	})
}

// ListVersions implements cratedoc.Store. Sizes are the ones recorded at
// acquisition; nothing is measured.
func (s *Store) ListVersions(ctx context.Context, name string) ([]*cratedoc.EntrySummary, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\*?[`) {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "crate name %q is not valid", name)
	}
	pattern := filepath.Join(s.root, cratesDir, name, "*", "*", entryFile)
	return s.list(pattern, s.summarize)
}

func (s *Store) list(pattern string, summarize func(*cratedoc.CacheEntry) *cratedoc.EntrySummary) ([]*cratedoc.EntrySummary, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to list cache entries")
	}

	var summaries []*cratedoc.EntrySummary
	for _, p := range paths {
		dir := filepath.Dir(p)
		if strings.Contains(filepath.Base(dir), tmpInfix) || strings.Contains(filepath.Base(dir), trashInfix) {
			continue
		}
		var entry cratedoc.CacheEntry
		if err := readJSON(p, &entry); err != nil {
			continue
		}
		summaries = append(summaries, summarize(&entry))
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].Key, summaries[j].Key
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Origin.Slug() < b.Origin.Slug()
	})
	return summaries, nil
}

func (s *Store) summarize(entry *cratedoc.CacheEntry) *cratedoc.EntrySummary {
	sum := entry.Summary()
	for _, m := range entry.Units() {
		if _, err := os.Stat(filepath.Join(s.UnitDir(entry.Key, m), docsFile)); err == nil {
			sum.Documented = append(sum.Documented, m.Name)
		}
	}
	return sum
}

// Evict implements cratedoc.Store.
func (s *Store) Evict(ctx context.Context, key cratedoc.CacheKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, lock, err := s.Reserve(ctx, key)
	if err != nil {
		return err
	}
	defer lock.Release()

	final := s.entryDir(key)
	if _, err := os.Stat(final); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cratedoc.Errorf(cratedoc.ENOTFOUND, "%s is not cached", key)
		}
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to stat entry for %s", key)
	}

	trash := final + trashInfix + uuid.NewString()
	if err := os.Rename(final, trash); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to evict %s", key)
	}
	if err := os.RemoveAll(trash); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to remove evicted files of %s", key)
	}
	return nil
}

// writeJSON atomically replaces path with the JSON encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return cratedoc.WrapError(cratedoc.EINTERNAL, err, "failed to encode %s", filepath.Base(path))
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to create %s", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+tmpInfix+"*")
	if err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to create temp file for %s", filepath.Base(path))
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to write %s", filepath.Base(path))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to sync %s", filepath.Base(path))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to close %s", filepath.Base(path))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to replace %s", filepath.Base(path))
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cratedoc.Errorf(cratedoc.ENOTFOUND, "%s not found", filepath.Base(path))
		}
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to read %s", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "corrupt %s", path)
	}
	return nil
}
