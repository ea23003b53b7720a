package mcp

import (
	"strings"
	"time"

	"github.com/fwojciec/cratedoc"
)

// EntryOutput describes a cached entry.
type EntryOutput struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Origin      string   `json:"origin"`
	OriginKind  string   `json:"originKind"`
	SizeBytes   int64    `json:"sizeBytes"`
	IsWorkspace bool     `json:"isWorkspace"`
	Members     []string `json:"members,omitempty"`
	Documented  []string `json:"documented,omitempty"`
	RefreshedAt string   `json:"refreshedAt"`
}

func newEntryOutput(e *cratedoc.EntrySummary) EntryOutput {
	out := EntryOutput{
		Name:        e.Key.Name,
		Version:     e.Key.Version,
		Origin:      e.Key.Origin.String(),
		OriginKind:  string(e.Key.Origin.Kind),
		SizeBytes:   e.SizeBytes,
		IsWorkspace: e.IsWorkspace,
		Documented:  e.Documented,
		RefreshedAt: e.RefreshedAt.UTC().Format(time.RFC3339),
	}
	for _, m := range e.Members {
		out.Members = append(out.Members, m.Name)
	}
	return out
}

// EntriesOutput lists cached entries.
type EntriesOutput struct {
	Entries []EntryOutput `json:"entries"`
}

func newEntriesOutput(entries []*cratedoc.EntrySummary) EntriesOutput {
	out := EntriesOutput{Entries: []EntryOutput{}}
	for _, e := range entries {
		out.Entries = append(out.Entries, newEntryOutput(e))
	}
	return out
}

// CacheOutput reports the result of the cache tool.
type CacheOutput struct {
	Entry     EntryOutput              `json:"entry"`
	Members   []cratedoc.MemberID      `json:"members,omitempty"`
	Results   []*cratedoc.MemberStatus `json:"results,omitempty"`
	Unchanged bool                     `json:"unchanged,omitempty"`
	Acquired  bool                     `json:"acquired,omitempty"`
}

// EvictOutput reports an eviction.
type EvictOutput struct {
	Evicted bool `json:"evicted"`
}

// ModuleNode is one module of a flattened structure tree.
type ModuleNode struct {
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Visibility string `json:"visibility,omitempty"`
	Attributes string `json:"attributes,omitempty"`
	Depth      int    `json:"depth"`
}

// StructureOutput lists modules in depth-first order.
type StructureOutput struct {
	Modules []ModuleNode `json:"modules"`
}

func newStructureOutput(tree *cratedoc.ModuleTree) StructureOutput {
	out := StructureOutput{Modules: []ModuleNode{}}
	var walk func(t *cratedoc.ModuleTree, parents []string)
	walk = func(t *cratedoc.ModuleTree, parents []string) {
		path := append(parents[:len(parents):len(parents)], t.Name)
		out.Modules = append(out.Modules, ModuleNode{
			Path:       strings.Join(path, "::"),
			Kind:       t.Kind,
			Visibility: t.Visibility,
			Attributes: t.Attributes,
			Depth:      len(parents),
		})
		for _, c := range t.Children {
			walk(c, path)
		}
	}
	if tree != nil {
		walk(tree, nil)
	}
	return out
}
