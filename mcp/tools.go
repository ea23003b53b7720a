package mcp

import (
	"context"

	"github.com/fwojciec/cratedoc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache",
		Description: "Fetch a crate and build its documentation. Workspaces list their members unless members are given.",
	}, s.handleCache)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_entries",
		Description: "List cached crates",
	}, s.handleListEntries)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_versions",
		Description: "List cached versions of a crate, newest first",
	}, s.handleListVersions)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "evict",
		Description: "Remove a cached crate and everything derived from it",
	}, s.handleEvict)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search items of a crate by name, path and documentation. Crates are fetched on first use.",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_items",
		Description: "List items of a crate in path order",
	}, s.handleListItems)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_item",
		Description: "Get the full record of one item",
	}, s.handleGetItem)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_item_docs",
		Description: "Read the documentation of one item; long docs continue at nextOffset",
	}, s.handleGetItemDocs)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_item_source",
		Description: "Read the source code of one item with surrounding lines",
	}, s.handleGetItemSource)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_dependencies",
		Description: "List the dependencies of a crate",
	}, s.handleGetDependencies)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_structure",
		Description: "Show the module tree of a crate",
	}, s.handleGetStructure)
}

func (s *Server) handleCache(ctx context.Context, _ *mcp.CallToolRequest, in CacheInput) (*mcp.CallToolResult, CacheOutput, error) {
	req, err := in.request()
	if err != nil {
		return nil, CacheOutput{}, wrapError(err)
	}
	res, err := s.svc.Cache(ctx, req)
	if err != nil {
		return nil, CacheOutput{}, wrapError(err)
	}
	return nil, CacheOutput{
		Entry:     newEntryOutput(res.Entry),
		Members:   res.Members,
		Results:   res.Results,
		Unchanged: res.Unchanged,
		Acquired:  res.Acquired,
	}, nil
}

func (s *Server) handleListEntries(ctx context.Context, _ *mcp.CallToolRequest, _ ListEntriesInput) (*mcp.CallToolResult, EntriesOutput, error) {
	entries, err := s.svc.ListEntries(ctx)
	if err != nil {
		return nil, EntriesOutput{}, wrapError(err)
	}
	return nil, newEntriesOutput(entries), nil
}

func (s *Server) handleListVersions(ctx context.Context, _ *mcp.CallToolRequest, in VersionsInput) (*mcp.CallToolResult, EntriesOutput, error) {
	entries, err := s.svc.ListVersions(ctx, in.Name)
	if err != nil {
		return nil, EntriesOutput{}, wrapError(err)
	}
	return nil, newEntriesOutput(entries), nil
}

func (s *Server) handleEvict(ctx context.Context, _ *mcp.CallToolRequest, in UnitInput) (*mcp.CallToolResult, EvictOutput, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, EvictOutput{}, wrapError(err)
	}
	if err := s.svc.Evict(ctx, ref); err != nil {
		return nil, EvictOutput{}, wrapError(err)
	}
	return nil, EvictOutput{Evicted: true}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, cratedoc.SearchResult, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, cratedoc.SearchResult{}, wrapError(err)
	}
	res, err := s.svc.Search(ctx, cratedoc.SearchRequest{UnitRef: ref, Query: cratedoc.SearchQuery{
		Pattern:       in.Pattern,
		Mode:          cratedoc.SearchMode(in.Mode),
		Kind:          in.Kind,
		PathPrefix:    in.PathPrefix,
		Preview:       in.Preview,
		Limit:         in.Limit,
		Cursor:        in.Cursor,
		FuzzyDistance: in.FuzzyDistance,
	}})
	if err != nil {
		return nil, cratedoc.SearchResult{}, wrapError(err)
	}
	return nil, *res, nil
}

func (s *Server) handleListItems(ctx context.Context, _ *mcp.CallToolRequest, in ListItemsInput) (*mcp.CallToolResult, cratedoc.ListItemsResult, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, cratedoc.ListItemsResult{}, wrapError(err)
	}
	res, err := s.svc.ListItems(ctx, cratedoc.ListItemsRequest{UnitRef: ref, Filter: cratedoc.ItemFilter{
		Kind:       in.Kind,
		PathPrefix: in.PathPrefix,
		Preview:    in.Preview,
		Offset:     in.Offset,
		Limit:      in.Limit,
	}})
	if err != nil {
		return nil, cratedoc.ListItemsResult{}, wrapError(err)
	}
	return nil, *res, nil
}

func (s *Server) handleGetItem(ctx context.Context, _ *mcp.CallToolRequest, in ItemInput) (*mcp.CallToolResult, cratedoc.Item, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, cratedoc.Item{}, wrapError(err)
	}
	item, err := s.svc.GetItem(ctx, cratedoc.ItemRequest{UnitRef: ref, ID: in.ID})
	if err != nil {
		return nil, cratedoc.Item{}, wrapError(err)
	}
	return nil, *item, nil
}

func (s *Server) handleGetItemDocs(ctx context.Context, _ *mcp.CallToolRequest, in DocsInput) (*mcp.CallToolResult, cratedoc.DocsResult, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, cratedoc.DocsResult{}, wrapError(err)
	}
	res, err := s.svc.GetItemDocs(ctx, cratedoc.DocsRequest{UnitRef: ref, ID: in.ID, Offset: in.Offset})
	if err != nil {
		return nil, cratedoc.DocsResult{}, wrapError(err)
	}
	return nil, *res, nil
}

func (s *Server) handleGetItemSource(ctx context.Context, _ *mcp.CallToolRequest, in SourceInput) (*mcp.CallToolResult, cratedoc.SourceResult, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, cratedoc.SourceResult{}, wrapError(err)
	}
	lines := s.contextLines
	if in.Context != nil {
		lines = *in.Context
	}
	res, err := s.svc.GetItemSource(ctx, cratedoc.SourceRequest{UnitRef: ref, ID: in.ID, Context: lines, Offset: in.Offset})
	if err != nil {
		return nil, cratedoc.SourceResult{}, wrapError(err)
	}
	return nil, *res, nil
}

func (s *Server) handleGetDependencies(ctx context.Context, _ *mcp.CallToolRequest, in DependenciesInput) (*mcp.CallToolResult, cratedoc.DependenciesResult, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, cratedoc.DependenciesResult{}, wrapError(err)
	}
	res, err := s.svc.GetDependencies(ctx, cratedoc.DependenciesRequest{UnitRef: ref, Filter: cratedoc.DependencyFilter{
		Name:       in.Filter,
		Kind:       cratedoc.DependencyKind(in.Kind),
		DirectOnly: in.DirectOnly,
	}})
	if err != nil {
		return nil, cratedoc.DependenciesResult{}, wrapError(err)
	}
	return nil, *res, nil
}

func (s *Server) handleGetStructure(ctx context.Context, _ *mcp.CallToolRequest, in UnitInput) (*mcp.CallToolResult, StructureOutput, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, StructureOutput{}, wrapError(err)
	}
	tree, err := s.svc.GetStructure(ctx, ref)
	if err != nil {
		return nil, StructureOutput{}, wrapError(err)
	}
	return nil, newStructureOutput(tree), nil
}
