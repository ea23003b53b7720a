package cratedoc

import "context"

// DocRequest describes one documentation build.
type DocRequest struct {
	// Dir is the member directory the generator runs in.
	Dir string
	// Package selects the member package, empty for the root package.
	Package string
	// TargetDir receives build outputs.
	TargetDir string
}

// DocGenerator produces structured documentation from crate source.
type DocGenerator interface {
	// GenerateDocs returns ETOOLCHAIN when the required channel is not
	// installed and EBUILD, with the diagnostic as detail, when the build
	// fails.
	GenerateDocs(ctx context.Context, req DocRequest) (*DocArtifact, error)

	// Toolchain identifies the generator channel.
	Toolchain() string
}

// DependencyResolver computes the dependency graph of a member.
type DependencyResolver interface {
	// ResolveDependencies runs in dir. Returns ERESOLVE on failure.
	ResolveDependencies(ctx context.Context, dir, pkg string) (*DependencyArtifact, error)
}

// StructureAnalyzer reports the module hierarchy of a member.
type StructureAnalyzer interface {
	// AnalyzeStructure returns ETOOLCHAIN or EBUILD on failure.
	AnalyzeStructure(ctx context.Context, dir, pkg string) (*ModuleTree, error)
}

// MemberResult reports the outcome of materializing one member.
type MemberResult struct {
	Member MemberID
	// Skipped is set when existing artifacts matched the source tree.
	Skipped bool
	DocHash string
	DocErr  error
	DepErr  error
}

// OK reports whether both artifacts are available.
func (r *MemberResult) OK() bool {
	return r.DocErr == nil && r.DepErr == nil
}

// Err returns the first failure of the member, if any.
func (r *MemberResult) Err() error {
	if r.DocErr != nil {
		return r.DocErr
	}
	return r.DepErr
}

// Materializer generates and stores member artifacts.
type Materializer interface {
	// Materialize processes every member independently and reports one
	// result per member in the given order.
	Materialize(ctx context.Context, entry *CacheEntry, members []MemberID) []*MemberResult

	// GenerateDocs regenerates the member's DocArtifact and metadata.
	GenerateDocs(ctx context.Context, entry *CacheEntry, member MemberID) (string, error)

	// ResolveDependencies regenerates the member's DependencyArtifact.
	ResolveDependencies(ctx context.Context, entry *CacheEntry, member MemberID) error
}
