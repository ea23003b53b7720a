package mock

import (
	"context"

	"github.com/fwojciec/cratedoc"
)

var _ cratedoc.IndexService = (*IndexService)(nil)

// IndexService is a mock implementation of cratedoc.IndexService.
type IndexService struct {
	BuildFn     func(ctx context.Context, path, docHash string, doc *cratedoc.DocArtifact) error
	StatusFn    func(ctx context.Context, path string) (string, error)
	SearchFn    func(ctx context.Context, path string, q cratedoc.SearchQuery) (*cratedoc.SearchPage, error)
	ListItemsFn func(ctx context.Context, path string, f cratedoc.ItemFilter) (*cratedoc.ItemPage, error)
	GetItemFn   func(ctx context.Context, path, id string) (*cratedoc.Item, error)
}

func (s *IndexService) Build(ctx context.Context, path, docHash string, doc *cratedoc.DocArtifact) error {
	return s.BuildFn(ctx, path, docHash, doc)
}

func (s *IndexService) Status(ctx context.Context, path string) (string, error) {
	return s.StatusFn(ctx, path)
}

func (s *IndexService) Search(ctx context.Context, path string, q cratedoc.SearchQuery) (*cratedoc.SearchPage, error) {
	return s.SearchFn(ctx, path, q)
}

func (s *IndexService) ListItems(ctx context.Context, path string, f cratedoc.ItemFilter) (*cratedoc.ItemPage, error) {
	return s.ListItemsFn(ctx, path, f)
}

func (s *IndexService) GetItem(ctx context.Context, path, id string) (*cratedoc.Item, error) {
	return s.GetItemFn(ctx, path, id)
}
