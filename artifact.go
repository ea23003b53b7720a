package cratedoc

import (
	"sort"
	"strings"
)

// DocArtifact is the structured documentation of one member.
type DocArtifact struct {
	Crate         string           `json:"crate"`
	Version       string           `json:"version"`
	FormatVersion int              `json:"formatVersion"`
	Root          string           `json:"root"`
	Items         map[string]*Item `json:"items"`
}

// SortedItems returns the items ordered by path, then name, then id.
func (d *DocArtifact) SortedItems() []*Item {
	items := make([]*Item, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Less(items[j])
	})
	return items
}

// Item is one documented item.
type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Signature  string `json:"signature,omitempty"`
	Docs       string `json:"docs,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Module     string `json:"module,omitempty"`
	Span       *Span  `json:"span,omitempty"`
}

// Less orders items by path, name and id.
func (i *Item) Less(o *Item) bool {
	if i.Path != o.Path {
		return i.Path < o.Path
	}
	if i.Name != o.Name {
		return i.Name < o.Name
	}
	return i.ID < o.ID
}

// Preview returns a copy of the item holding only its id, name and kind.
func (i *Item) Preview() *Item {
	return &Item{ID: i.ID, Name: i.Name, Kind: i.Kind}
}

// Span locates an item in the source tree. Lines are 1-based and File is
// relative to the source root or, failing that, the member directory.
type Span struct {
	File      string `json:"file"`
	BeginLine int    `json:"beginLine"`
	BeginCol  int    `json:"beginCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// DependencyKind classifies a dependency edge.
type DependencyKind string

// DependencyKind constants.
const (
	DependencyNormal DependencyKind = "normal"
	DependencyDev    DependencyKind = "dev"
	DependencyBuild  DependencyKind = "build"
)

// DependencyArtifact holds the flattened dependency graph of one member.
type DependencyArtifact struct {
	Crate        string        `json:"crate"`
	Version      string        `json:"version"`
	Dependencies []*Dependency `json:"dependencies"`
}

// Dependency is one direct or transitive dependency.
type Dependency struct {
	Name        string         `json:"name"`
	Requirement string         `json:"requirement,omitempty"`
	Resolved    string         `json:"resolved,omitempty"`
	Kind        DependencyKind `json:"kind"`
	Optional    bool           `json:"optional"`
	Direct      bool           `json:"direct"`
	Features    []string       `json:"features,omitempty"`
	Target      string         `json:"target,omitempty"`
}

// DependencyFilter narrows dependency listings.
type DependencyFilter struct {
	// Name matches case-insensitive substrings of dependency names.
	Name string `json:"name,omitempty"`
	// Kind restricts results to one dependency kind.
	Kind DependencyKind `json:"kind,omitempty"`
	// DirectOnly drops transitive dependencies.
	DirectOnly bool `json:"directOnly,omitempty"`
}

// Filter returns the dependencies matching f.
func (a *DependencyArtifact) Filter(f DependencyFilter) []*Dependency {
	name := strings.ToLower(f.Name)
	var out []*Dependency
	for _, d := range a.Dependencies {
		if name != "" && !strings.Contains(strings.ToLower(d.Name), name) {
			continue
		}
		if f.Kind != "" && d.Kind != f.Kind {
			continue
		}
		if f.DirectOnly && !d.Direct {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ModuleTree is the module hierarchy reported by structural analysis.
type ModuleTree struct {
	Kind       string        `json:"kind"`
	Name       string        `json:"name"`
	Visibility string        `json:"visibility,omitempty"`
	Attributes string        `json:"attributes,omitempty"`
	Children   []*ModuleTree `json:"children,omitempty"`
}
