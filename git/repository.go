// Package git fetches repository snapshots with go-git.
package git

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/fwojciec/cratedoc"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Ensure RepositoryClient implements cratedoc.RepositoryClient at compile time.
var _ cratedoc.RepositoryClient = (*RepositoryClient)(nil)

// DefaultDepth is the history depth of branch and tag snapshots.
const DefaultDepth = 1

var commitHash = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// RepositoryClient clones repositories into snapshot directories.
type RepositoryClient struct {
	// Token authenticates requests to github.com when set.
	Token string
	// Depth limits branch and tag clones. Zero clones full history.
	Depth int
}

// NewRepositoryClient creates a RepositoryClient using token for GitHub.
func NewRepositoryClient(token string) *RepositoryClient {
	return &RepositoryClient{Token: token, Depth: DefaultDepth}
}

// Snapshot implements cratedoc.RepositoryClient.
//
// Branches and tags are cloned at Depth. Commit hashes require the full
// history so they are cloned completely and checked out.
func (c *RepositoryClient) Snapshot(ctx context.Context, locator, ref, dir string) (*cratedoc.Snapshot, error) {
	var (
		repo *gogit.Repository
		err  error
	)
	switch {
	case ref == "":
		repo, err = c.clone(ctx, locator, "", dir)
	case commitHash.MatchString(ref):
		repo, err = c.checkoutCommit(ctx, locator, ref, dir)
	default:
		repo, err = c.clone(ctx, locator, plumbing.NewBranchReferenceName(ref), dir)
		if isMissingRef(err) {
			if err = reset(dir); err == nil {
				repo, err = c.clone(ctx, locator, plumbing.NewTagReferenceName(ref), dir)
			}
		}
	}
	if err != nil {
		return nil, c.classify(ctx, err, locator, ref)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read HEAD of %s", locator)
	}
	return &cratedoc.Snapshot{Revision: head.Hash().String()}, nil
}

func (c *RepositoryClient) clone(ctx context.Context, locator string, ref plumbing.ReferenceName, dir string) (*gogit.Repository, error) {
	opts := &gogit.CloneOptions{
		URL:   locator,
		Auth:  c.auth(locator),
		Depth: c.Depth,
		Tags:  gogit.NoTags,
	}
	if ref != "" {
		opts.ReferenceName = ref
		opts.SingleBranch = true
	}
	return gogit.PlainCloneContext(ctx, dir, false, opts)
}

func (c *RepositoryClient) checkoutCommit(ctx context.Context, locator, ref, dir string) (*gogit.Repository, error) {
	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:  locator,
		Auth: c.auth(locator),
	})
	if err != nil {
		return nil, err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return nil, err
	}
	return repo, nil
}

// auth returns token credentials for GitHub locators.
func (c *RepositoryClient) auth(locator string) transport.AuthMethod {
	if c.Token == "" || !strings.Contains(locator, "github.com") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: c.Token}
}

// classify maps clone failures to the error taxonomy. Missing and private
// repositories look the same to an anonymous client.
func (c *RepositoryClient) classify(ctx context.Context, err error, locator, ref string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	hint := ""
	if c.Token == "" && strings.Contains(locator, "github.com") {
		hint = "; set GITHUB_TOKEN if the repository is private"
	}
	switch {
	case isMissingRef(err):
		return cratedoc.WrapError(cratedoc.ENOTFOUND, err, "ref %q not found in %s", ref, locator)
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return cratedoc.WrapError(cratedoc.ENOTFOUND, err, "repository %s not found%s", locator, hint)
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return cratedoc.WrapError(cratedoc.ENOTFOUND, err, "repository %s is empty", locator)
	case errors.Is(err, transport.ErrInvalidAuthMethod):
		return cratedoc.WrapError(cratedoc.EINVALID, err, "invalid credentials for %s", locator)
	default:
		return cratedoc.WrapError(cratedoc.ENETWORK, err, "failed to fetch %s: %s", locator, err)
	}
}

func isMissingRef(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gogit.NoMatchingRefSpecError{}) ||
		errors.Is(err, plumbing.ErrReferenceNotFound) ||
		errors.Is(err, plumbing.ErrObjectNotFound)
}

// reset empties dir after a failed clone attempt.
func reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to clean %s", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to create %s", dir)
	}
	return nil
}
