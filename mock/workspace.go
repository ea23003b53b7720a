package mock

import (
	"context"

	"github.com/fwojciec/cratedoc"
)

var _ cratedoc.WorkspaceResolver = (*WorkspaceResolver)(nil)

// WorkspaceResolver is a mock implementation of cratedoc.WorkspaceResolver.
type WorkspaceResolver struct {
	ResolveFn func(ctx context.Context, root string) (*cratedoc.Workspace, error)
}

func (r *WorkspaceResolver) Resolve(ctx context.Context, root string) (*cratedoc.Workspace, error) {
	return r.ResolveFn(ctx, root)
}
