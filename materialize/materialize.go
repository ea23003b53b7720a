// Package materialize generates and stores the documentation and
// dependency artifacts of cached entries.
package materialize

import (
	"context"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/fs"
	"golang.org/x/sync/errgroup"
)

// Ensure Materializer implements cratedoc.Materializer at compile time.
var _ cratedoc.Materializer = (*Materializer)(nil)

// DefaultConcurrency bounds how many members build at once.
const DefaultConcurrency = 4

// Materializer runs the doc and dependency collaborators for each member
// and persists their output through the store.
type Materializer struct {
	Store cratedoc.Store
	Docs  cratedoc.DocGenerator
	Deps  cratedoc.DependencyResolver

	Concurrency int
	Now         func() time.Time
}

// NewMaterializer creates a Materializer with default concurrency.
func NewMaterializer(store cratedoc.Store, docs cratedoc.DocGenerator, deps cratedoc.DependencyResolver) *Materializer {
	return &Materializer{
		Store:       store,
		Docs:        docs,
		Deps:        deps,
		Concurrency: DefaultConcurrency,
		Now:         time.Now,
	}
}

// Materialize implements cratedoc.Materializer. A failing member never
// stops its siblings.
func (m *Materializer) Materialize(ctx context.Context, entry *cratedoc.CacheEntry, members []cratedoc.MemberID) []*cratedoc.MemberResult {
	results := make([]*cratedoc.MemberResult, len(members))

	var g errgroup.Group
	if m.Concurrency > 0 {
		g.SetLimit(m.Concurrency)
	}
	for i, member := range members {
		g.Go(func() error {
			results[i] = m.materializeMember(ctx, entry, member)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *Materializer) materializeMember(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) *cratedoc.MemberResult {
	result := &cratedoc.MemberResult{Member: member}

	docsFresh, docHash := m.docsFresh(ctx, entry, member)
	depsPresent := false
	if docsFresh {
		_, err := m.Store.ReadDependencyArtifact(ctx, entry.Key, member)
		depsPresent = err == nil
	}
	if docsFresh && depsPresent {
		result.Skipped = true
		result.DocHash = docHash
		return result
	}

	if docsFresh {
		result.DocHash = docHash
	} else {
		result.DocHash, result.DocErr = m.GenerateDocs(ctx, entry, member)
	}
	result.DepErr = m.ResolveDependencies(ctx, entry, member)
	return result
}

// docsFresh reports whether the member's DocArtifact was generated from
// the entry's current source tree with the current toolchain.
func (m *Materializer) docsFresh(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) (bool, string) {
	meta, err := m.Store.ReadMetadata(ctx, entry.Key, member)
	if err != nil || !meta.Fresh(entry.ContentHash, m.Docs.Toolchain()) {
		return false, ""
	}
	if _, err := m.Store.ReadDocArtifact(ctx, entry.Key, member); err != nil {
		return false, ""
	}
	return true, meta.DocHash
}

// GenerateDocs implements cratedoc.Materializer.
func (m *Materializer) GenerateDocs(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) (string, error) {
	dir := entry.MemberDir(member)
	doc, err := m.Docs.GenerateDocs(ctx, cratedoc.DocRequest{
		Dir:       dir,
		Package:   entry.BuildPackage(member),
		TargetDir: m.Store.TargetDir(entry.Key),
	})
	if err != nil {
		return "", err
	}

	hash, err := m.Store.WriteDocArtifact(ctx, entry.Key, member, doc)
	if err != nil {
		return "", err
	}

	size, err := fs.DirSize(dir)
	if err != nil {
		return "", err
	}
	meta := &cratedoc.Metadata{
		GeneratedAt: m.now().UTC(),
		SourceBytes: size,
		Toolchain:   m.Docs.Toolchain(),
		ContentHash: entry.ContentHash,
		DocHash:     hash,
	}
	if err := m.Store.WriteMetadata(ctx, entry.Key, member, meta); err != nil {
		return "", err
	}
	return hash, nil
}

// ResolveDependencies implements cratedoc.Materializer.
func (m *Materializer) ResolveDependencies(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) error {
	deps, err := m.Deps.ResolveDependencies(ctx, entry.MemberDir(member), entry.BuildPackage(member))
	if err != nil {
		return err
	}
	return m.Store.WriteDependencyArtifact(ctx, entry.Key, member, deps)
}

func (m *Materializer) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
