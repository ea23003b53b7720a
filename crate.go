package cratedoc

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// OriginKind identifies where a cached source tree came from.
type OriginKind string

// OriginKind constants.
const (
	OriginRegistry   OriginKind = "registry"
	OriginRepository OriginKind = "repository"
	OriginLocal      OriginKind = "local"
)

// Origin describes the provenance of a cached source tree.
type Origin struct {
	Kind OriginKind `json:"kind"`

	// Locator is the repository URL for repository origins.
	Locator string `json:"locator,omitempty"`
	// Ref is a branch, tag or commit. Empty means the default branch.
	Ref string `json:"ref,omitempty"`
	// Subpath selects a directory inside the repository.
	Subpath string `json:"subpath,omitempty"`

	// Path is the filesystem path for local origins.
	Path string `json:"path,omitempty"`
}

// RegistryOrigin returns the origin of the public registry.
func RegistryOrigin() Origin {
	return Origin{Kind: OriginRegistry}
}

// Validate returns an error if the origin is incomplete or malformed.
func (o Origin) Validate() error {
	switch o.Kind {
	case OriginRegistry:
		return nil
	case OriginRepository:
		if o.Locator == "" {
			return Errorf(EINVALID, "repository origin requires a locator")
		}
		if o.Ref != "" {
			if err := ValidateRef(o.Ref); err != nil {
				return err
			}
		}
		if o.Subpath != "" {
			if err := ValidateRelPath(o.Subpath); err != nil {
				return err
			}
		}
		return nil
	case OriginLocal:
		if o.Path == "" {
			return Errorf(EINVALID, "local origin requires a path")
		}
		return nil
	default:
		return Errorf(EINVALID, "unknown origin kind %q", o.Kind)
	}
}

// Slug returns a stable directory name identifying the origin.
func (o Origin) Slug() string {
	switch o.Kind {
	case OriginRepository:
		return fmt.Sprintf("git-%016x", xxhash.Sum64String(o.Locator+"\x00"+o.Ref+"\x00"+o.Subpath))
	case OriginLocal:
		return fmt.Sprintf("local-%016x", xxhash.Sum64String(o.Path))
	default:
		return string(OriginRegistry)
	}
}

// String returns a human-readable description of the origin.
func (o Origin) String() string {
	switch o.Kind {
	case OriginRepository:
		s := o.Locator
		if o.Ref != "" {
			s += "#" + o.Ref
		}
		if o.Subpath != "" {
			s += ":" + o.Subpath
		}
		return s
	case OriginLocal:
		return o.Path
	default:
		return string(OriginRegistry)
	}
}

// OriginSpec is the flat form of an origin taken from command lines and
// tool inputs.
type OriginSpec struct {
	Registry bool
	Git      string
	Ref      string
	Subpath  string
	Path     string
}

// Origin returns the described origin, or nil when none was given.
func (s OriginSpec) Origin() (*Origin, error) {
	var set int
	for _, ok := range []bool{s.Registry, s.Git != "", s.Path != ""} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, Errorf(EINVALID, "choose one of registry, git and path")
	}
	if s.Git == "" && (s.Ref != "" || s.Subpath != "") {
		return nil, Errorf(EINVALID, "ref and subpath require a git origin")
	}

	var o Origin
	switch {
	case s.Git != "":
		o = Origin{Kind: OriginRepository, Locator: s.Git, Ref: s.Ref, Subpath: s.Subpath}
	case s.Path != "":
		o = Origin{Kind: OriginLocal, Path: s.Path}
	case s.Registry:
		o = RegistryOrigin()
	default:
		return nil, nil
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// ValidateRef returns an error unless ref is a safe git reference name.
func ValidateRef(ref string) error {
	if ref == "" {
		return Errorf(EINVALID, "git reference must not be empty")
	}
	if strings.Contains(ref, "..") {
		return Errorf(EINVALID, "git reference %q must not contain '..'", ref)
	}
	if strings.HasPrefix(ref, ".") || strings.HasPrefix(ref, "/") ||
		strings.HasSuffix(ref, ".") || strings.HasSuffix(ref, "/") {
		return Errorf(EINVALID, "git reference %q must not start or end with '.' or '/'", ref)
	}
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./+", r):
		default:
			return Errorf(EINVALID, "git reference %q contains invalid character %q", ref, r)
		}
	}
	return nil
}

// ValidateRelPath returns an error unless p is a relative path that stays
// inside its root.
func ValidateRelPath(p string) error {
	switch {
	case p == "":
		return Errorf(EINVALID, "path must not be empty")
	case strings.Contains(p, `\`):
		return Errorf(EINVALID, "path %q must use forward slashes", p)
	case path.IsAbs(p) || (len(p) >= 2 && p[1] == ':'):
		return Errorf(EINVALID, "path %q must be relative", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return Errorf(EINVALID, "path %q must not contain '..'", p)
		}
	}
	return nil
}

// CacheKey identifies a cached unit.
//
// A key with an empty Version reserves the origin itself and is only
// valid as a lock scope.
type CacheKey struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Origin  Origin `json:"origin"`
}

// Validate returns an error if the key cannot address a cache entry.
func (k CacheKey) Validate() error {
	if err := validateSegment("crate name", k.Name); err != nil {
		return err
	}
	if err := validateSegment("crate version", k.Version); err != nil {
		return err
	}
	return k.Origin.Validate()
}

// String returns the key as name@version (origin).
func (k CacheKey) String() string {
	if k.Version == "" {
		return fmt.Sprintf("%s (%s)", k.Name, k.Origin)
	}
	return fmt.Sprintf("%s@%s (%s)", k.Name, k.Version, k.Origin)
}

func validateSegment(what, s string) error {
	if s == "" {
		return Errorf(EINVALID, "%s required", what)
	}
	if s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return Errorf(EINVALID, "%s %q is not a valid path segment", what, s)
	}
	return nil
}

// RootMemberPath is the member path of the package at the workspace root.
const RootMemberPath = "."

// MemberID identifies one addressable package of a cache entry.
type MemberID struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// IsRoot reports whether the member is the package at the entry root.
func (m MemberID) IsRoot() bool {
	return m.Path == RootMemberPath || m.Path == ""
}

// Slug returns the directory name holding the member's artifacts.
func (m MemberID) Slug() string {
	return strings.ReplaceAll(m.Path, "/", "-")
}

// CacheEntry represents one cached unit.
type CacheEntry struct {
	Key         CacheKey   `json:"key"`
	SourceRoot  string     `json:"sourceRoot"`
	IsWorkspace bool       `json:"isWorkspace"`
	Package     string     `json:"package,omitempty"`
	Members     []MemberID `json:"members,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	RefreshedAt time.Time  `json:"refreshedAt"`
	SizeBytes   int64      `json:"sizeBytes"`
	ContentHash string     `json:"contentHash"`
	Revision    string     `json:"revision,omitempty"`
}

// Units returns the members whose artifacts can be generated. A
// non-workspace entry is its own single implicit member.
func (e *CacheEntry) Units() []MemberID {
	if !e.IsWorkspace {
		return []MemberID{{Name: e.Key.Name, Path: RootMemberPath}}
	}
	return e.Members
}

// FindMember returns the member with the given name or path.
func (e *CacheEntry) FindMember(name string) (MemberID, bool) {
	for _, m := range e.Units() {
		if m.Name == name || m.Path == name {
			return m, true
		}
	}
	return MemberID{}, false
}

// RootMember returns the workspace member built from the root manifest.
func (e *CacheEntry) RootMember() (MemberID, bool) {
	for _, m := range e.Units() {
		if m.IsRoot() {
			return m, true
		}
	}
	return MemberID{}, false
}

// MemberDir returns the source directory of member.
func (e *CacheEntry) MemberDir(m MemberID) string {
	if m.IsRoot() {
		return e.SourceRoot
	}
	return filepath.Join(e.SourceRoot, filepath.FromSlash(m.Path))
}

// BuildPackage returns the package to select when building member. Only
// workspace members are selected by name.
func (e *CacheEntry) BuildPackage(m MemberID) string {
	if !e.IsWorkspace {
		return ""
	}
	return m.Name
}

// MemberNames returns the names of all members.
func (e *CacheEntry) MemberNames() []string {
	units := e.Units()
	names := make([]string, 0, len(units))
	for _, m := range units {
		names = append(names, m.Name)
	}
	return names
}

// Summary returns the listing form of the entry.
func (e *CacheEntry) Summary() *EntrySummary {
	return &EntrySummary{
		Key:         e.Key,
		SizeBytes:   e.SizeBytes,
		IsWorkspace: e.IsWorkspace,
		Members:     e.Members,
		RefreshedAt: e.RefreshedAt,
	}
}

// Metadata is the record kept next to a member's artifacts.
type Metadata struct {
	GeneratedAt time.Time `json:"generatedAt"`
	SourceBytes int64     `json:"sourceBytes"`
	Toolchain   string    `json:"toolchain"`
	// ContentHash is the source tree hash the artifacts were built from.
	ContentHash string `json:"contentHash"`
	// DocHash identifies the DocArtifact bytes the search index was built from.
	DocHash string `json:"docHash"`
}

// Fresh reports whether the artifacts described by m were generated from
// the given source tree with the given toolchain.
func (m *Metadata) Fresh(contentHash, toolchain string) bool {
	return m != nil && m.DocHash != "" && m.ContentHash == contentHash && m.Toolchain == toolchain
}

// EntrySummary describes a cached entry in listings.
type EntrySummary struct {
	Key         CacheKey   `json:"key"`
	SizeBytes   int64      `json:"sizeBytes"`
	IsWorkspace bool       `json:"isWorkspace"`
	Members     []MemberID `json:"members,omitempty"`
	// Documented lists the members with a DocArtifact.
	Documented  []string  `json:"documented,omitempty"`
	RefreshedAt time.Time `json:"refreshedAt"`
}
