package query

import (
	"context"
	"os"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// Search implements cratedoc.Service.
func (s *Service) Search(ctx context.Context, req cratedoc.SearchRequest) (*cratedoc.SearchResult, error) {
	entry, member, path, err := s.indexed(ctx, req.UnitRef)
	if err != nil {
		return nil, err
	}
	page, err := s.index.Search(ctx, path, req.Query)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}

	items := make([]*cratedoc.Item, 0, len(page.Hits))
	for _, h := range page.Hits {
		items = append(items, h.Item)
	}
	truncated, err := s.cutItems(ctx, items)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}

	res := &cratedoc.SearchResult{
		Key:        entry.Key,
		Member:     member,
		Hits:       page.Hits,
		Total:      page.Total,
		NextCursor: page.NextCursor,
		Truncated:  truncated,
	}
	if truncated {
		res.Hint = itemsHint(s.docBudget)
	}
	return res, nil
}

// ListItems implements cratedoc.Service.
func (s *Service) ListItems(ctx context.Context, req cratedoc.ListItemsRequest) (*cratedoc.ListItemsResult, error) {
	entry, member, path, err := s.indexed(ctx, req.UnitRef)
	if err != nil {
		return nil, err
	}
	page, err := s.index.ListItems(ctx, path, req.Filter)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}
	truncated, err := s.cutItems(ctx, page.Items)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}

	res := &cratedoc.ListItemsResult{
		Key:       entry.Key,
		Member:    member,
		Items:     page.Items,
		Total:     page.Total,
		Offset:    page.Offset,
		HasMore:   page.HasMore,
		Truncated: truncated,
	}
	if truncated {
		res.Hint = itemsHint(s.docBudget)
	}
	return res, nil
}

// GetItem implements cratedoc.Service.
func (s *Service) GetItem(ctx context.Context, req cratedoc.ItemRequest) (*cratedoc.Item, error) {
	_, _, item, err := s.item(ctx, req.UnitRef, req.ID)
	return item, err
}

// GetItemDocs implements cratedoc.Service.
func (s *Service) GetItemDocs(ctx context.Context, req cratedoc.DocsRequest) (*cratedoc.DocsResult, error) {
	_, _, item, err := s.item(ctx, req.UnitRef, req.ID)
	if err != nil {
		return nil, err
	}
	if err := checkOffset(item.Docs, req.Offset); err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}

	window, truncated, err := s.cut(ctx, item.Docs[req.Offset:], s.responseBudget)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}
	res := &cratedoc.DocsResult{
		ID:         item.ID,
		Name:       item.Name,
		Kind:       item.Kind,
		Docs:       window,
		Offset:     req.Offset,
		TotalBytes: len(item.Docs),
		Truncated:  truncated,
	}
	if truncated {
		res.NextOffset = req.Offset + len(window)
		res.Hint = windowHint("documentation", res.NextOffset)
	}
	return res, nil
}

// GetItemSource implements cratedoc.Service.
func (s *Service) GetItemSource(ctx context.Context, req cratedoc.SourceRequest) (*cratedoc.SourceResult, error) {
	if req.Context < 0 {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "context lines must not be negative")
	}
	entry, member, item, err := s.item(ctx, req.UnitRef, req.ID)
	if err != nil {
		return nil, err
	}
	if item.Span == nil {
		return nil, cratedoc.WithStage(cratedoc.Errorf(cratedoc.ENOTFOUND, "item %s has no source location", item.ID), cratedoc.StageAnswer)
	}

	file, rel, err := locateSource(entry, member, item.Span.File)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, cratedoc.WithStage(cratedoc.WrapError(cratedoc.EIO, err, "failed to read %s", rel), cratedoc.StageAnswer)
	}
	ex, err := newExcerpt(data, item.Span.BeginLine, item.Span.EndLine, req.Context)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}

	text := string(data[ex.startByte:ex.endByte])
	if err := checkOffset(text, req.Offset); err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}
	window, truncated, err := s.cut(ctx, text[req.Offset:], s.responseBudget)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}

	startLine := ex.startLine + strings.Count(text[:req.Offset], "\n")
	res := &cratedoc.SourceResult{
		ID:        item.ID,
		File:      rel,
		StartLine: startLine,
		EndLine:   ex.endLine,
		StartByte: int64(ex.startByte + req.Offset),
		Source:    window,
		Truncated: truncated,
	}
	res.EndByte = res.StartByte + int64(len(window))
	if truncated {
		res.EndLine = startLine + strings.Count(strings.TrimSuffix(window, "\n"), "\n")
		res.NextOffset = req.Offset + len(window)
		res.Hint = windowHint("source", res.NextOffset)
	}
	return res, nil
}

// GetDependencies implements cratedoc.Service. A missing dependency
// artifact is regenerated.
func (s *Service) GetDependencies(ctx context.Context, req cratedoc.DependenciesRequest) (*cratedoc.DependenciesResult, error) {
	entry, member, err := s.ensureUnit(ctx, req.UnitRef, true)
	if err != nil {
		return nil, err
	}
	deps, err := s.store.ReadDependencyArtifact(ctx, entry.Key, member)
	if cratedoc.ErrorCode(err) == cratedoc.ENOTFOUND {
		_, err = s.do(ctx, unitFlight("deps", entry.Key, member), func(ctx context.Context) (any, error) {
			ctx, lock, err := s.store.Reserve(ctx, entry.Key)
			if err != nil {
				return nil, err
			}
			defer lock.Release()
			return nil, s.materializer.ResolveDependencies(ctx, entry, member)
		})
		if err != nil {
			return nil, cratedoc.WithStage(err, cratedoc.StageMaterialize)
		}
		deps, err = s.store.ReadDependencyArtifact(ctx, entry.Key, member)
	}
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}

	res := &cratedoc.DependenciesResult{
		Key:          entry.Key,
		Member:       member,
		Dependencies: deps.Filter(req.Filter),
	}
	if res.Dependencies == nil {
		res.Dependencies = []*cratedoc.Dependency{}
	}
	return res, nil
}

// GetStructure implements cratedoc.Service. It needs the source tree
// only, so no documentation is generated.
func (s *Service) GetStructure(ctx context.Context, ref cratedoc.UnitRef) (*cratedoc.ModuleTree, error) {
	if s.structure == nil {
		return nil, cratedoc.Errorf(cratedoc.ETOOLCHAIN, "structure analysis is not configured")
	}
	entry, member, err := s.ensureUnit(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	tree, err := s.structure.AnalyzeStructure(ctx, entry.MemberDir(member), entry.BuildPackage(member))
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}
	return tree, nil
}

// indexed resolves ref and returns the path of its current index.
func (s *Service) indexed(ctx context.Context, ref cratedoc.UnitRef) (*cratedoc.CacheEntry, cratedoc.MemberID, string, error) {
	entry, member, err := s.ensureUnit(ctx, ref, true)
	if err != nil {
		return nil, cratedoc.MemberID{}, "", err
	}
	path, err := s.ensureIndex(ctx, entry, member)
	if err != nil {
		return nil, cratedoc.MemberID{}, "", err
	}
	return entry, member, path, nil
}

func (s *Service) item(ctx context.Context, ref cratedoc.UnitRef, id string) (*cratedoc.CacheEntry, cratedoc.MemberID, *cratedoc.Item, error) {
	if id == "" {
		return nil, cratedoc.MemberID{}, nil, cratedoc.Errorf(cratedoc.EINVALID, "item id required")
	}
	entry, member, path, err := s.indexed(ctx, ref)
	if err != nil {
		return nil, cratedoc.MemberID{}, nil, err
	}
	item, err := s.index.GetItem(ctx, path, id)
	if err != nil {
		return nil, cratedoc.MemberID{}, nil, cratedoc.WithStage(err, cratedoc.StageAnswer)
	}
	return entry, member, item, nil
}
