package mock

import (
	"context"

	"github.com/fwojciec/cratedoc"
)

var _ cratedoc.Service = (*Service)(nil)

// Service is a mock implementation of cratedoc.Service.
type Service struct {
	CacheFn           func(ctx context.Context, req cratedoc.CacheRequest) (*cratedoc.CacheResult, error)
	ListEntriesFn     func(ctx context.Context) ([]*cratedoc.EntrySummary, error)
	ListVersionsFn    func(ctx context.Context, name string) ([]*cratedoc.EntrySummary, error)
	EvictFn           func(ctx context.Context, ref cratedoc.UnitRef) error
	SearchFn          func(ctx context.Context, req cratedoc.SearchRequest) (*cratedoc.SearchResult, error)
	ListItemsFn       func(ctx context.Context, req cratedoc.ListItemsRequest) (*cratedoc.ListItemsResult, error)
	GetItemFn         func(ctx context.Context, req cratedoc.ItemRequest) (*cratedoc.Item, error)
	GetItemDocsFn     func(ctx context.Context, req cratedoc.DocsRequest) (*cratedoc.DocsResult, error)
	GetItemSourceFn   func(ctx context.Context, req cratedoc.SourceRequest) (*cratedoc.SourceResult, error)
	GetDependenciesFn func(ctx context.Context, req cratedoc.DependenciesRequest) (*cratedoc.DependenciesResult, error)
	GetStructureFn    func(ctx context.Context, ref cratedoc.UnitRef) (*cratedoc.ModuleTree, error)
}

func (s *Service) Cache(ctx context.Context, req cratedoc.CacheRequest) (*cratedoc.CacheResult, error) {
	return s.CacheFn(ctx, req)
}

func (s *Service) ListEntries(ctx context.Context) ([]*cratedoc.EntrySummary, error) {
	return s.ListEntriesFn(ctx)
}

func (s *Service) ListVersions(ctx context.Context, name string) ([]*cratedoc.EntrySummary, error) {
	return s.ListVersionsFn(ctx, name)
}

func (s *Service) Evict(ctx context.Context, ref cratedoc.UnitRef) error {
	return s.EvictFn(ctx, ref)
}

func (s *Service) Search(ctx context.Context, req cratedoc.SearchRequest) (*cratedoc.SearchResult, error) {
	return s.SearchFn(ctx, req)
}

func (s *Service) ListItems(ctx context.Context, req cratedoc.ListItemsRequest) (*cratedoc.ListItemsResult, error) {
	return s.ListItemsFn(ctx, req)
}

func (s *Service) GetItem(ctx context.Context, req cratedoc.ItemRequest) (*cratedoc.Item, error) {
	return s.GetItemFn(ctx, req)
}

func (s *Service) GetItemDocs(ctx context.Context, req cratedoc.DocsRequest) (*cratedoc.DocsResult, error) {
	return s.GetItemDocsFn(ctx, req)
}

func (s *Service) GetItemSource(ctx context.Context, req cratedoc.SourceRequest) (*cratedoc.SourceResult, error) {
	return s.GetItemSourceFn(ctx, req)
}

func (s *Service) GetDependencies(ctx context.Context, req cratedoc.DependenciesRequest) (*cratedoc.DependenciesResult, error) {
	return s.GetDependenciesFn(ctx, req)
}

func (s *Service) GetStructure(ctx context.Context, ref cratedoc.UnitRef) (*cratedoc.ModuleTree, error) {
	return s.GetStructureFn(ctx, ref)
}
