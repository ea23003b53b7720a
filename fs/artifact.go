package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/cratedoc"
)

// WriteDocArtifact implements cratedoc.Store.
func (s *Store) WriteDocArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, doc *cratedoc.DocArtifact) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", cratedoc.WrapError(cratedoc.EINTERNAL, err, "failed to encode documentation of %s", member.Name)
	}
	docHash := HashBytes(data)

	err = s.writeUnitFile(ctx, key, member, docsFile, data, func(dir string) error {
		return removeIndex(filepath.Join(dir, indexFile))
	})
	if err != nil {
		return "", err
	}
	return docHash, nil
}

// ReadDocArtifact implements cratedoc.Store.
func (s *Store) ReadDocArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.DocArtifact, error) {
	var doc cratedoc.DocArtifact
	if err := s.readUnitFile(key, member, docsFile, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteDependencyArtifact implements cratedoc.Store.
func (s *Store) WriteDependencyArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, deps *cratedoc.DependencyArtifact) error {
	data, err := json.Marshal(deps)
	if err != nil {
		return cratedoc.WrapError(cratedoc.EINTERNAL, err, "failed to encode dependencies of %s", member.Name)
	}
	return s.writeUnitFile(ctx, key, member, depsFile, data, nil)
}

// ReadDependencyArtifact implements cratedoc.Store.
func (s *Store) ReadDependencyArtifact(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.DependencyArtifact, error) {
	var deps cratedoc.DependencyArtifact
	if err := s.readUnitFile(key, member, depsFile, &deps); err != nil {
		return nil, err
	}
	return &deps, nil
}

// WriteMetadata implements cratedoc.Store.
func (s *Store) WriteMetadata(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, meta *cratedoc.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return cratedoc.WrapError(cratedoc.EINTERNAL, err, "failed to encode metadata of %s", member.Name)
	}
	return s.writeUnitFile(ctx, key, member, metadataFile, data, nil)
}

// ReadMetadata implements cratedoc.Store.
func (s *Store) ReadMetadata(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID) (*cratedoc.Metadata, error) {
	var meta cratedoc.Metadata
	if err := s.readUnitFile(key, member, metadataFile, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// writeUnitFile replaces one artifact file of a member under the key lock.
// before runs after the lock is taken and before the file is replaced.
func (s *Store) writeUnitFile(ctx context.Context, key cratedoc.CacheKey, member cratedoc.MemberID, name string, data []byte, before func(dir string) error) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, lock, err := s.Reserve(ctx, key)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := s.requireEntry(key); err != nil {
		return err
	}
	dir := s.UnitDir(key, member)
	if before != nil {
		if err := before(dir); err != nil {
			return err
		}
	}
	return writeFileAtomic(filepath.Join(dir, name), data)
}

func (s *Store) readUnitFile(key cratedoc.CacheKey, member cratedoc.MemberID, name string, v any) error {
	if err := key.Validate(); err != nil {
		return err
	}
	err := readJSON(filepath.Join(s.UnitDir(key, member), name), v)
	if cratedoc.ErrorCode(err) == cratedoc.ENOTFOUND {
		return cratedoc.Errorf(cratedoc.ENOTFOUND, "no %s for member %q of %s", name, member.Name, key)
	}
	return err
}

// removeIndex deletes a search index and its journal files.
func removeIndex(path string) error {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cratedoc.WrapError(cratedoc.EIO, err, "failed to invalidate index %s", p)
		}
	}
	return nil
}

// HashBytes returns the hex xxhash of data.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
