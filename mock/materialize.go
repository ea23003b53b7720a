package mock

import (
	"context"

	"github.com/fwojciec/cratedoc"
)

var (
	_ cratedoc.DocGenerator       = (*DocGenerator)(nil)
	_ cratedoc.DependencyResolver = (*DependencyResolver)(nil)
	_ cratedoc.StructureAnalyzer  = (*StructureAnalyzer)(nil)
	_ cratedoc.Materializer       = (*Materializer)(nil)
)

// DocGenerator is a mock implementation of cratedoc.DocGenerator.
type DocGenerator struct {
	GenerateDocsFn func(ctx context.Context, req cratedoc.DocRequest) (*cratedoc.DocArtifact, error)
	ToolchainFn    func() string
}

func (g *DocGenerator) GenerateDocs(ctx context.Context, req cratedoc.DocRequest) (*cratedoc.DocArtifact, error) {
	return g.GenerateDocsFn(ctx, req)
}

func (g *DocGenerator) Toolchain() string {
	return g.ToolchainFn()
}

// DependencyResolver is a mock implementation of cratedoc.DependencyResolver.
type DependencyResolver struct {
	ResolveDependenciesFn func(ctx context.Context, dir, pkg string) (*cratedoc.DependencyArtifact, error)
}

func (r *DependencyResolver) ResolveDependencies(ctx context.Context, dir, pkg string) (*cratedoc.DependencyArtifact, error) {
	return r.ResolveDependenciesFn(ctx, dir, pkg)
}

// StructureAnalyzer is a mock implementation of cratedoc.StructureAnalyzer.
type StructureAnalyzer struct {
	AnalyzeStructureFn func(ctx context.Context, dir, pkg string) (*cratedoc.ModuleTree, error)
}

func (a *StructureAnalyzer) AnalyzeStructure(ctx context.Context, dir, pkg string) (*cratedoc.ModuleTree, error) {
	return a.AnalyzeStructureFn(ctx, dir, pkg)
}

// Materializer is a mock implementation of cratedoc.Materializer.
type Materializer struct {
	MaterializeFn         func(ctx context.Context, entry *cratedoc.CacheEntry, members []cratedoc.MemberID) []*cratedoc.MemberResult
	GenerateDocsFn        func(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) (string, error)
	ResolveDependenciesFn func(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) error
}

func (m *Materializer) Materialize(ctx context.Context, entry *cratedoc.CacheEntry, members []cratedoc.MemberID) []*cratedoc.MemberResult {
	return m.MaterializeFn(ctx, entry, members)
}

func (m *Materializer) GenerateDocs(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) (string, error) {
	return m.GenerateDocsFn(ctx, entry, member)
}

func (m *Materializer) ResolveDependencies(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) error {
	return m.ResolveDependenciesFn(ctx, entry, member)
}
