package mcp

import "github.com/fwojciec/cratedoc"

// OriginInput selects where a crate comes from. Leaving it empty prefers
// cached entries and falls back to the registry.
type OriginInput struct {
	Git     string `json:"git,omitempty" jsonschema:"repository URL for crates that are not published to the registry"`
	Ref     string `json:"ref,omitempty" jsonschema:"branch or tag or commit of the repository"`
	Subpath string `json:"subpath,omitempty" jsonschema:"directory of the crate inside the repository"`
	Path    string `json:"path,omitempty" jsonschema:"local directory holding the crate"`
}

func (in OriginInput) origin() (*cratedoc.Origin, error) {
	return cratedoc.OriginSpec{Git: in.Git, Ref: in.Ref, Subpath: in.Subpath, Path: in.Path}.Origin()
}

// UnitInput addresses one crate or workspace member.
type UnitInput struct {
	Name    string `json:"name" jsonschema:"crate name"`
	Version string `json:"version,omitempty" jsonschema:"crate version; empty selects the newest cached version"`
	OriginInput
	Member string `json:"member,omitempty" jsonschema:"workspace member name or path"`
}

func (in UnitInput) ref() (cratedoc.UnitRef, error) {
	origin, err := in.origin()
	if err != nil {
		return cratedoc.UnitRef{}, err
	}
	return cratedoc.UnitRef{Name: in.Name, Version: in.Version, Origin: origin, Member: in.Member}, nil
}

// CacheInput is the input of the cache tool.
type CacheInput struct {
	Name    string `json:"name,omitempty" jsonschema:"crate name; local crates default to their manifest name"`
	Version string `json:"version,omitempty" jsonschema:"crate version; required for registry crates"`
	OriginInput
	Members []string `json:"members,omitempty" jsonschema:"workspace members to document; * documents all"`
	Update  bool     `json:"update,omitempty" jsonschema:"fetch registry and repository crates again"`
}

func (in CacheInput) request() (cratedoc.CacheRequest, error) {
	origin, err := in.origin()
	if err != nil {
		return cratedoc.CacheRequest{}, err
	}
	req := cratedoc.CacheRequest{Name: in.Name, Version: in.Version, Origin: cratedoc.RegistryOrigin(), Members: in.Members, Update: in.Update}
	if origin != nil {
		req.Origin = *origin
	}
	return req, nil
}

// ListEntriesInput takes no arguments.
type ListEntriesInput struct{}

// VersionsInput is the input of the list_versions tool.
type VersionsInput struct {
	Name string `json:"name" jsonschema:"crate name"`
}

// SearchInput is the input of the search tool.
type SearchInput struct {
	UnitInput
	Pattern       string `json:"pattern" jsonschema:"text to look for in item names and paths and docs"`
	Mode          string `json:"mode,omitempty" jsonschema:"exact or fuzzy (default fuzzy)"`
	Kind          string `json:"kind,omitempty" jsonschema:"only return items of this kind such as struct or function"`
	PathPrefix    string `json:"pathPrefix,omitempty" jsonschema:"only return items whose path starts with this prefix"`
	Preview       bool   `json:"preview,omitempty" jsonschema:"return only id and name and kind per hit"`
	Limit         int    `json:"limit,omitempty" jsonschema:"hits per page (default 50)"`
	Cursor        string `json:"cursor,omitempty" jsonschema:"nextCursor of the previous page"`
	FuzzyDistance int    `json:"fuzzyDistance,omitempty" jsonschema:"maximum typo distance from 1 to 2"`
}

// ListItemsInput is the input of the list_items tool.
type ListItemsInput struct {
	UnitInput
	Kind       string `json:"kind,omitempty" jsonschema:"only list items of this kind"`
	PathPrefix string `json:"pathPrefix,omitempty" jsonschema:"only list items whose path starts with this prefix"`
	Preview    bool   `json:"preview,omitempty" jsonschema:"return only id and name and kind per item"`
	Offset     int    `json:"offset,omitempty" jsonschema:"number of items to skip"`
	Limit      int    `json:"limit,omitempty" jsonschema:"items per page (default 100)"`
}

// ItemInput addresses one item.
type ItemInput struct {
	UnitInput
	ID string `json:"id" jsonschema:"item id from search or list_items"`
}

// DocsInput is the input of the get_item_docs tool.
type DocsInput struct {
	ItemInput
	Offset int `json:"offset,omitempty" jsonschema:"byte offset to continue from (nextOffset of the previous call)"`
}

// SourceInput is the input of the get_item_source tool.
type SourceInput struct {
	ItemInput
	Context *int `json:"context,omitempty" jsonschema:"lines of context around the item (default 3)"`
	Offset  int  `json:"offset,omitempty" jsonschema:"byte offset to continue from (nextOffset of the previous call)"`
}

// DependenciesInput is the input of the get_dependencies tool.
type DependenciesInput struct {
	UnitInput
	Filter     string `json:"filter,omitempty" jsonschema:"only dependencies whose name contains this text"`
	Kind       string `json:"kind,omitempty" jsonschema:"normal or dev or build"`
	DirectOnly bool   `json:"directOnly,omitempty" jsonschema:"drop transitive dependencies"`
}
