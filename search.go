package cratedoc

import "context"

// SearchMode selects how a pattern is matched.
type SearchMode string

// SearchMode constants.
const (
	SearchExact SearchMode = "exact"
	SearchFuzzy SearchMode = "fuzzy"
)

// Search limits.
const (
	DefaultSearchLimit   = 50
	MaxSearchLimit       = 1000
	MaxQueryLength       = 1000
	DefaultFuzzyDistance = 1
	MaxFuzzyDistance     = 2
	MaxIndexedItems      = 100000
	DefaultListLimit     = 100
)

// SearchQuery is a query against one member index.
type SearchQuery struct {
	Pattern string     `json:"pattern"`
	Mode    SearchMode `json:"mode,omitempty"`
	// Kind and PathPrefix filter results.
	Kind       string `json:"kind,omitempty"`
	PathPrefix string `json:"pathPrefix,omitempty"`
	// Preview returns only id, name and kind per hit.
	Preview       bool   `json:"preview,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Cursor        string `json:"cursor,omitempty"`
	FuzzyDistance int    `json:"fuzzyDistance,omitempty"`
}

// Validate normalizes defaults and rejects out-of-range queries.
func (q *SearchQuery) Validate() error {
	if q.Pattern == "" {
		return Errorf(EINVALID, "search pattern required")
	}
	if len(q.Pattern) > MaxQueryLength {
		return Errorf(EINVALID, "search pattern exceeds %d characters", MaxQueryLength)
	}
	if q.Mode == "" {
		q.Mode = SearchFuzzy
	}
	if q.Mode != SearchExact && q.Mode != SearchFuzzy {
		return Errorf(EINVALID, "unknown search mode %q", q.Mode)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	if q.FuzzyDistance <= 0 {
		q.FuzzyDistance = DefaultFuzzyDistance
	}
	if q.FuzzyDistance > MaxFuzzyDistance {
		q.FuzzyDistance = MaxFuzzyDistance
	}
	return nil
}

// SearchHit is one ranked result.
type SearchHit struct {
	Item  *Item   `json:"item"`
	Score float64 `json:"score"`
}

// SearchPage is one page of ranked results.
type SearchPage struct {
	Hits  []*SearchHit `json:"hits"`
	Total int          `json:"total"`
	// NextCursor continues the query, empty on the last page.
	NextCursor string `json:"nextCursor,omitempty"`
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Kind       string `json:"kind,omitempty"`
	PathPrefix string `json:"pathPrefix,omitempty"`
	Preview    bool   `json:"preview,omitempty"`
	Offset     int    `json:"offset,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ItemPage is one page of listed items ordered by path then name.
type ItemPage struct {
	Items   []*Item `json:"items"`
	Total   int     `json:"total"`
	Offset  int     `json:"offset"`
	HasMore bool    `json:"hasMore"`
}

// IndexService builds and queries per-member search indices.
//
// An index is derived from a DocArtifact and identified by the artifact
// hash; it can always be rebuilt.
type IndexService interface {
	// Build replaces the index at path with one built from doc.
	Build(ctx context.Context, path, docHash string, doc *DocArtifact) error

	// Status returns the DocArtifact hash the index was built from.
	// Returns ENOTFOUND if no index exists at path.
	Status(ctx context.Context, path string) (string, error)

	Search(ctx context.Context, path string, q SearchQuery) (*SearchPage, error)
	ListItems(ctx context.Context, path string, f ItemFilter) (*ItemPage, error)

	// GetItem returns ENOTFOUND if no item has the id.
	GetItem(ctx context.Context, path, id string) (*Item, error)
}
