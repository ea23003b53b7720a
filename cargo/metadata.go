package cargo

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/fwojciec/cratedoc"
)

// Ensure DependencyResolver implements cratedoc.DependencyResolver at compile time.
var _ cratedoc.DependencyResolver = (*DependencyResolver)(nil)

// DependencyResolver reads the dependency graph from cargo metadata.
type DependencyResolver struct {
	runner *Runner
}

// NewDependencyResolver creates a new DependencyResolver.
func NewDependencyResolver(runner *Runner) *DependencyResolver {
	return &DependencyResolver{runner: runner}
}

type cargoMetadata struct {
	Packages []*metadataPackage `json:"packages"`
	Resolve  *struct {
		Root  *string         `json:"root"`
		Nodes []*metadataNode `json:"nodes"`
	} `json:"resolve"`
}

type metadataPackage struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Version      string                `json:"version"`
	ManifestPath string                `json:"manifest_path"`
	Dependencies []*metadataDependency `json:"dependencies"`
}

type metadataDependency struct {
	Name     string   `json:"name"`
	Rename   *string  `json:"rename"`
	Req      string   `json:"req"`
	Kind     *string  `json:"kind"`
	Optional bool     `json:"optional"`
	Features []string `json:"features"`
	Target   *string  `json:"target"`
}

type metadataNode struct {
	ID           string         `json:"id"`
	Dependencies []string       `json:"dependencies"`
	Deps         []*metadataDep `json:"deps"`
}

type metadataDep struct {
	Name     string `json:"name"`
	Pkg      string `json:"pkg"`
	DepKinds []struct {
		Kind   *string `json:"kind"`
		Target *string `json:"target"`
	} `json:"dep_kinds"`
}

// kindRank orders dependency kinds from least to most restrictive.
var kindRank = map[cratedoc.DependencyKind]int{
	cratedoc.DependencyNormal: 0,
	cratedoc.DependencyBuild:  1,
	cratedoc.DependencyDev:    2,
}

func declaredKind(kind *string) cratedoc.DependencyKind {
	if kind == nil || *kind == "" {
		return cratedoc.DependencyNormal
	}
	return cratedoc.DependencyKind(*kind)
}

// leastRestrictive returns whichever of a and b reaches more builds.
func leastRestrictive(a, b cratedoc.DependencyKind) cratedoc.DependencyKind {
	if a == "" || kindRank[b] < kindRank[a] {
		return b
	}
	return a
}

// ResolveDependencies implements cratedoc.DependencyResolver.
func (r *DependencyResolver) ResolveDependencies(ctx context.Context, dir, pkg string) (*cratedoc.DependencyArtifact, error) {
	manifest := filepath.Join(dir, ManifestFile)
	res, err := r.runner.run(ctx, dir, map[string]string{"CARGO_TERM_COLOR": "never"},
		"cargo", "metadata", "--format-version", "1", "--manifest-path", manifest)
	if err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return nil, cerr
		}
		if isMissingBinary(err) {
			return nil, cratedoc.WrapError(cratedoc.ETOOLCHAIN, err, "cargo is not installed; install Rust with rustup")
		}
		return nil, cratedoc.WithDetail(cratedoc.WrapError(cratedoc.ERESOLVE, err, "cargo metadata failed"), stderrOf(res, err))
	}
	return ParseMetadata([]byte(res.Stdout), pkg, manifest)
}

// ParseMetadata flattens cargo metadata output into the dependencies of
// one package. The package is selected by name, then by manifest path,
// then by the resolve root.
func ParseMetadata(data []byte, pkg, manifest string) (*cratedoc.DependencyArtifact, error) {
	var md cargoMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, cratedoc.WrapError(cratedoc.ERESOLVE, err, "unreadable cargo metadata: %s", err)
	}

	byID := make(map[string]*metadataPackage, len(md.Packages))
	for _, p := range md.Packages {
		byID[p.ID] = p
	}
	self := selectPackage(&md, byID, pkg, manifest)
	if self == nil {
		return nil, cratedoc.Errorf(cratedoc.ERESOLVE, "package %q not found in cargo metadata", pkg)
	}

	nodes := make(map[string]*metadataNode)
	if md.Resolve != nil {
		for _, n := range md.Resolve.Nodes {
			nodes[n.ID] = n
		}
	}

	out := &cratedoc.DependencyArtifact{Crate: self.Name, Version: self.Version}
	direct := make(map[string]bool)
	declared := make(map[string]cratedoc.DependencyKind)
	for _, d := range self.Dependencies {
		dep := &cratedoc.Dependency{
			Name:        d.Name,
			Requirement: d.Req,
			Kind:        declaredKind(d.Kind),
			Optional:    d.Optional,
			Direct:      true,
			Features:    d.Features,
		}
		if d.Target != nil {
			dep.Target = *d.Target
		}
		direct[d.Name] = true
		declared[d.Name] = leastRestrictive(declared[d.Name], dep.Kind)
		out.Dependencies = append(out.Dependencies, dep)
	}

	// Direct edges of the resolve graph with the kind each is reached by.
	resolved := make(map[string]string)
	edges := make(map[string]cratedoc.DependencyKind)
	if n := nodes[self.ID]; n != nil {
		if len(n.Deps) > 0 {
			for _, d := range n.Deps {
				p := byID[d.Pkg]
				if p == nil {
					continue
				}
				var kind cratedoc.DependencyKind
				for _, k := range d.DepKinds {
					kind = leastRestrictive(kind, declaredKind(k.Kind))
				}
				if kind == "" {
					kind = cratedoc.DependencyNormal
				}
				edges[d.Pkg] = leastRestrictive(edges[d.Pkg], kind)
				resolved[p.Name] = p.Version
			}
		} else {
			for _, id := range n.Dependencies {
				p := byID[id]
				if p == nil {
					continue
				}
				kind, ok := declared[p.Name]
				if !ok {
					kind = cratedoc.DependencyNormal
				}
				edges[id] = leastRestrictive(edges[id], kind)
				resolved[p.Name] = p.Version
			}
		}
	}
	for _, dep := range out.Dependencies {
		dep.Resolved = resolved[dep.Name]
	}

	// Breadth-first walks of the resolve graph for transitive
	// dependencies, one per kind from least to most restrictive, so a
	// crate reachable several ways keeps the least restrictive kind.
	starts := make(map[cratedoc.DependencyKind][]string)
	for id, kind := range edges {
		starts[kind] = append(starts[kind], id)
	}
	seen := map[string]bool{self.ID: true}
	var transitive []*cratedoc.Dependency
	for _, kind := range []cratedoc.DependencyKind{cratedoc.DependencyNormal, cratedoc.DependencyBuild, cratedoc.DependencyDev} {
		queue := starts[kind]
		sort.Strings(queue)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if seen[id] {
				continue
			}
			seen[id] = true
			p := byID[id]
			if p == nil {
				continue
			}
			if !direct[p.Name] {
				transitive = append(transitive, &cratedoc.Dependency{
					Name:     p.Name,
					Resolved: p.Version,
					Kind:     kind,
				})
			}
			if n := nodes[id]; n != nil {
				queue = append(queue, n.Dependencies...)
			}
		}
	}
	sort.SliceStable(transitive, func(i, j int) bool {
		if transitive[i].Name != transitive[j].Name {
			return transitive[i].Name < transitive[j].Name
		}
		return transitive[i].Resolved < transitive[j].Resolved
	})
	out.Dependencies = append(out.Dependencies, transitive...)
	return out, nil
}

func selectPackage(md *cargoMetadata, byID map[string]*metadataPackage, pkg, manifest string) *metadataPackage {
	if pkg != "" {
		for _, p := range md.Packages {
			if p.Name == pkg {
				return p
			}
		}
		return nil
	}
	for _, p := range md.Packages {
		if manifest != "" && filepath.Clean(p.ManifestPath) == filepath.Clean(manifest) {
			return p
		}
	}
	if md.Resolve != nil && md.Resolve.Root != nil {
		return byID[*md.Resolve.Root]
	}
	if len(md.Packages) == 1 {
		return md.Packages[0]
	}
	return nil
}
