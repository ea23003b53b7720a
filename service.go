package cratedoc

import "context"

// UnitRef addresses a cached unit. A nil Origin selects the most recently
// refreshed cached entry for name@version, or the registry.
type UnitRef struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Origin  *Origin `json:"origin,omitempty"`
	Member  string  `json:"member,omitempty"`
}

// AllMembers selects every member of a workspace.
const AllMembers = "*"

// CacheRequest asks for a crate to be cached.
type CacheRequest struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Origin  Origin `json:"origin"`
	// Members selects workspace members to materialize by name or path.
	Members []string `json:"members,omitempty"`
	// Update re-acquires an existing registry or repository entry.
	Update bool `json:"update,omitempty"`
}

// ErrorReport is the serializable form of an error.
type ErrorReport struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Stage     Stage  `json:"stage,omitempty"`
	Retryable bool   `json:"retryable"`
	Detail    string `json:"detail,omitempty"`
}

// NewErrorReport returns nil for a nil error.
func NewErrorReport(err error) *ErrorReport {
	if err == nil {
		return nil
	}
	return &ErrorReport{
		Code:      ErrorCode(err),
		Message:   ErrorMessage(err),
		Stage:     ErrorStage(err),
		Retryable: IsRetryable(err),
		Detail:    ErrorDetail(err),
	}
}

// Member status values.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// MemberStatus reports the materialization outcome of one member.
type MemberStatus struct {
	Member MemberID     `json:"member"`
	Status string       `json:"status"`
	Docs   *ErrorReport `json:"docs,omitempty"`
	Deps   *ErrorReport `json:"deps,omitempty"`
}

// NewMemberStatus converts a materialization result.
func NewMemberStatus(r *MemberResult) *MemberStatus {
	s := &MemberStatus{
		Member: r.Member,
		Status: StatusOK,
		Docs:   NewErrorReport(r.DocErr),
		Deps:   NewErrorReport(r.DepErr),
	}
	switch {
	case !r.OK():
		s.Status = StatusFailed
	case r.Skipped:
		s.Status = StatusSkipped
	}
	return s
}

// CacheResult describes a cached entry.
type CacheResult struct {
	Entry *EntrySummary `json:"entry"`
	// Members lists the workspace members.
	Members []MemberID      `json:"members,omitempty"`
	Results []*MemberStatus `json:"results,omitempty"`
	// Unchanged is set when a local re-cache found identical content.
	Unchanged bool `json:"unchanged,omitempty"`
	// Acquired is set when the source was fetched by this request.
	Acquired bool `json:"acquired,omitempty"`
}

// SearchRequest searches one member.
type SearchRequest struct {
	UnitRef
	Query SearchQuery `json:"query"`
}

// SearchResult holds one page of hits.
type SearchResult struct {
	Key        CacheKey     `json:"key"`
	Member     MemberID     `json:"member"`
	Hits       []*SearchHit `json:"hits"`
	Total      int          `json:"total"`
	NextCursor string       `json:"nextCursor,omitempty"`
	Truncated  bool         `json:"truncated,omitempty"`
	Hint       string       `json:"hint,omitempty"`
}

// ListItemsRequest lists items of one member.
type ListItemsRequest struct {
	UnitRef
	Filter ItemFilter `json:"filter"`
}

// ListItemsResult holds one page of items.
type ListItemsResult struct {
	Key       CacheKey `json:"key"`
	Member    MemberID `json:"member"`
	Items     []*Item  `json:"items"`
	Total     int      `json:"total"`
	Offset    int      `json:"offset"`
	HasMore   bool     `json:"hasMore"`
	Truncated bool     `json:"truncated,omitempty"`
	Hint      string   `json:"hint,omitempty"`
}

// ItemRequest addresses one item.
type ItemRequest struct {
	UnitRef
	ID string `json:"id"`
}

// DocsRequest reads an item's documentation from Offset bytes on.
type DocsRequest struct {
	UnitRef
	ID     string `json:"id"`
	Offset int    `json:"offset,omitempty"`
}

// DocsResult holds a window of an item's documentation.
type DocsResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Docs       string `json:"docs"`
	Offset     int    `json:"offset"`
	TotalBytes int    `json:"totalBytes"`
	Truncated  bool   `json:"truncated"`
	NextOffset int    `json:"nextOffset,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// SourceRequest reads an item's source with Context surrounding lines.
type SourceRequest struct {
	UnitRef
	ID      string `json:"id"`
	Context int    `json:"context,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// SourceResult holds a source excerpt. Lines are 1-based and inclusive;
// bytes are a half-open range into the file.
type SourceResult struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	StartByte  int64  `json:"startByte"`
	EndByte    int64  `json:"endByte"`
	Source     string `json:"source"`
	Truncated  bool   `json:"truncated"`
	NextOffset int    `json:"nextOffset,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// DependenciesRequest lists dependencies of one member.
type DependenciesRequest struct {
	UnitRef
	Filter DependencyFilter `json:"filter"`
}

// DependenciesResult holds filtered dependencies.
type DependenciesResult struct {
	Key          CacheKey      `json:"key"`
	Member       MemberID      `json:"member"`
	Dependencies []*Dependency `json:"dependencies"`
}

// Service is the query surface over the cache.
type Service interface {
	// Cache ensures the crate is acquired and the selected members are
	// materialized. Workspaces without a member selection only report
	// their members.
	Cache(ctx context.Context, req CacheRequest) (*CacheResult, error)

	ListEntries(ctx context.Context) ([]*EntrySummary, error)

	// ListVersions returns cached versions of name, newest first.
	ListVersions(ctx context.Context, name string) ([]*EntrySummary, error)

	// Evict returns ENOTFOUND if the unit is not cached.
	Evict(ctx context.Context, ref UnitRef) error

	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
	ListItems(ctx context.Context, req ListItemsRequest) (*ListItemsResult, error)
	GetItem(ctx context.Context, req ItemRequest) (*Item, error)
	GetItemDocs(ctx context.Context, req DocsRequest) (*DocsResult, error)
	GetItemSource(ctx context.Context, req SourceRequest) (*SourceResult, error)
	GetDependencies(ctx context.Context, req DependenciesRequest) (*DependenciesResult, error)
	GetStructure(ctx context.Context, ref UnitRef) (*ModuleTree, error)
}
