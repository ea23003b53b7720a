// Package query implements the cratedoc.Service façade. It resolves unit
// references, acquires and materializes crates on demand, keeps search
// indices current and shapes answers to token budgets.
package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/fwojciec/cratedoc"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Ensure Service implements cratedoc.Service at compile time.
var _ cratedoc.Service = (*Service)(nil)

// Defaults.
const (
	DefaultWorkers        = 4
	DefaultDocBudget      = 250
	DefaultResponseBudget = 25000
	DefaultContextLines   = 3
)

// Service answers queries over the cache, filling it as needed.
type Service struct {
	store        cratedoc.Store
	acquirer     cratedoc.SourceAcquirer
	resolver     cratedoc.WorkspaceResolver
	materializer cratedoc.Materializer
	index        cratedoc.IndexService
	structure    cratedoc.StructureAnalyzer
	tokens       cratedoc.TokenCounter

	docBudget      int
	responseBudget int

	sem   *semaphore.Weighted
	group singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers bounds concurrent acquisitions, materializations and index
// builds.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithDocBudget sets the token budget of each documentation string in
// search and list results.
func WithDocBudget(n int) Option {
	return func(s *Service) {
		s.docBudget = n
	}
}

// WithResponseBudget sets the token budget of documentation and source
// responses.
func WithResponseBudget(n int) Option {
	return func(s *Service) {
		s.responseBudget = n
	}
}

// WithTokenCounter sets the counter used for budgets.
func WithTokenCounter(c cratedoc.TokenCounter) Option {
	return func(s *Service) {
		s.tokens = c
	}
}

// WithStructureAnalyzer enables GetStructure.
func WithStructureAnalyzer(a cratedoc.StructureAnalyzer) Option {
	return func(s *Service) {
		s.structure = a
	}
}

// NewService creates a Service over the given collaborators.
func NewService(
	store cratedoc.Store,
	acquirer cratedoc.SourceAcquirer,
	resolver cratedoc.WorkspaceResolver,
	materializer cratedoc.Materializer,
	index cratedoc.IndexService,
	opts ...Option,
) *Service {
	s := &Service{
		store:          store,
		acquirer:       acquirer,
		resolver:       resolver,
		materializer:   materializer,
		index:          index,
		tokens:         cratedoc.ApproxTokenCounter{},
		docBudget:      DefaultDocBudget,
		responseBudget: DefaultResponseBudget,
		sem:            semaphore.NewWeighted(DefaultWorkers),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// do runs fn once for all concurrent callers sharing flight. fn runs
// detached from the caller's cancellation and holds a worker slot; each
// caller stops waiting when its own context ends.
func (s *Service) do(ctx context.Context, flight string, fn func(ctx context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		if err := s.sem.Acquire(detached, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func keyFlight(op string, key cratedoc.CacheKey, extra ...string) string {
	parts := append([]string{op, key.Name, key.Version, key.Origin.Slug()}, extra...)
	return strings.Join(parts, "\x00")
}

func unitFlight(op string, key cratedoc.CacheKey, member cratedoc.MemberID) string {
	return keyFlight(op, key, member.Path)
}

// cacheOutcome is the shared result of one cache flight.
type cacheOutcome struct {
	entry   *cratedoc.CacheEntry
	results []*cratedoc.MemberResult
	result  *cratedoc.CacheResult
}

// Cache implements cratedoc.Service. A single crate whose documentation
// fails to build is an error; workspace members report failures in the
// per-member results.
func (s *Service) Cache(ctx context.Context, req cratedoc.CacheRequest) (*cratedoc.CacheResult, error) {
	key, err := s.acquirer.Prepare(ctx, cratedoc.AcquireRequest{Name: req.Name, Version: req.Version, Origin: req.Origin})
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAcquire)
	}
	out, err := s.cache(ctx, key, req.Members, req.Update)
	if err != nil {
		return nil, err
	}
	if err := singleFailure(out); err != nil {
		return nil, err
	}
	return out.result, nil
}

func singleFailure(out *cacheOutcome) error {
	if out.entry.IsWorkspace || len(out.results) != 1 {
		return nil
	}
	return out.results[0].DocErr
}

func (s *Service) cache(ctx context.Context, key cratedoc.CacheKey, selection []string, update bool) (*cacheOutcome, error) {
	flight := keyFlight("cache", key, strings.Join(selection, ","), strconv.FormatBool(update))
	v, err := s.do(ctx, flight, func(ctx context.Context) (any, error) {
		return s.runCache(ctx, key, selection, update)
	})
	if err != nil {
		return nil, err
	}
	return v.(*cacheOutcome), nil
}

// runCache holds the key for the whole acquisition and materialization.
func (s *Service) runCache(ctx context.Context, key cratedoc.CacheKey, selection []string, update bool) (*cacheOutcome, error) {
	ctx, lock, err := s.store.Reserve(ctx, key)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageAcquire)
	}
	defer lock.Release()

	out := &cacheOutcome{result: &cratedoc.CacheResult{}}
	ctx, release, err := s.ensureEntry(ctx, key, update, out)
	defer release()
	if err != nil {
		return nil, err
	}
	entry := out.entry

	members, err := selectMembers(entry, selection)
	if err != nil {
		return nil, cratedoc.WithStage(err, cratedoc.StageResolve)
	}
	if entry.IsWorkspace {
		out.result.Members = entry.Members
	}
	if len(members) > 0 {
		out.results = s.materializer.Materialize(ctx, entry, members)
		for _, r := range out.results {
			r.DocErr = cratedoc.WithStage(r.DocErr, cratedoc.StageMaterialize)
			r.DepErr = cratedoc.WithStage(r.DepErr, cratedoc.StageMaterialize)
			out.result.Results = append(out.result.Results, cratedoc.NewMemberStatus(r))
		}
	}

	summary := entry.Summary()
	for _, m := range entry.Units() {
		if _, err := s.store.ReadMetadata(ctx, entry.Key, m); err == nil {
			summary.Documented = append(summary.Documented, m.Name)
		}
	}
	out.result.Entry = summary
	return out, nil
}

// ensureEntry finds or acquires the entry for key. Origin reservations
// take the lock of the discovered version as well; release gives it up.
func (s *Service) ensureEntry(ctx context.Context, key cratedoc.CacheKey, update bool, out *cacheOutcome) (context.Context, func(), error) {
	var locks []cratedoc.Lock
	release := func() {
		for i := len(locks) - 1; i >= 0; i-- {
			_ = locks[i].Release()
		}
	}

	existing, err := s.cachedEntry(ctx, key)
	if err != nil {
		return ctx, release, cratedoc.WithStage(err, cratedoc.StageAcquire)
	}
	if existing != nil && !update && key.Origin.Kind != cratedoc.OriginLocal {
		// A versionless key only locks the origin; builds of the entry
		// hold the versioned key.
		if existing.Key != key {
			vctx, vlock, err := s.store.Reserve(ctx, existing.Key)
			if err != nil {
				return ctx, release, cratedoc.WithStage(err, cratedoc.StageAcquire)
			}
			locks = append(locks, vlock)
			ctx = vctx
		}
		out.entry = existing
		return ctx, release, nil
	}

	staging, err := s.store.Stage(ctx)
	if err != nil {
		return ctx, release, cratedoc.WithStage(err, cratedoc.StageAcquire)
	}
	discard := func() { _ = s.store.Discard(staging) }

	acq, err := s.acquirer.Acquire(ctx, key, staging)
	if err != nil {
		discard()
		return ctx, release, cratedoc.WithStage(err, cratedoc.StageAcquire)
	}

	if acq.Key != key {
		vctx, vlock, err := s.store.Reserve(ctx, acq.Key)
		if err != nil {
			discard()
			return ctx, release, cratedoc.WithStage(err, cratedoc.StageAcquire)
		}
		locks = append(locks, vlock)
		ctx = vctx

		existing, err = s.cachedEntry(ctx, acq.Key)
		if err != nil {
			discard()
			return ctx, release, cratedoc.WithStage(err, cratedoc.StageAcquire)
		}
		if existing != nil && !update {
			discard()
			out.entry = existing
			return ctx, release, nil
		}
	}

	if existing != nil && key.Origin.Kind == cratedoc.OriginLocal && existing.ContentHash == acq.ContentHash {
		discard()
		out.entry = existing
		out.result.Unchanged = true
		return ctx, release, nil
	}

	ws, err := s.resolver.Resolve(ctx, acq.Dir)
	if err != nil {
		discard()
		return ctx, release, cratedoc.WithStage(err, cratedoc.StageResolve)
	}

	entry := &cratedoc.CacheEntry{
		Key:         acq.Key,
		IsWorkspace: ws.IsWorkspace,
		Package:     ws.Package,
		SizeBytes:   acq.SizeBytes,
		ContentHash: acq.ContentHash,
		Revision:    acq.Revision,
	}
	if ws.IsWorkspace {
		entry.Members = ws.Members
	}
	if existing != nil {
		entry.CreatedAt = existing.CreatedAt
	}
	if err := s.store.CommitSource(ctx, entry, acq.Dir); err != nil {
		return ctx, release, cratedoc.WithStage(err, cratedoc.StageAcquire)
	}
	out.entry = entry
	out.result.Acquired = true
	return ctx, release, nil
}

// cachedEntry returns the entry for key, or nil when none is cached. For
// origin reservations it returns the most recently refreshed entry of the
// origin.
func (s *Service) cachedEntry(ctx context.Context, key cratedoc.CacheKey) (*cratedoc.CacheEntry, error) {
	if key.Version == "" {
		summaries, err := s.store.ListVersions(ctx, key.Name)
		if err != nil {
			return nil, err
		}
		latest := mostRecent(summaries, func(e *cratedoc.EntrySummary) bool {
			return e.Key.Name == key.Name && e.Key.Origin == key.Origin
		})
		if latest == nil {
			return nil, nil
		}
		key = latest.Key
	}

	entry, err := s.store.ReadEntry(ctx, key)
	if cratedoc.ErrorCode(err) == cratedoc.ENOTFOUND {
		return nil, nil
	}
	return entry, err
}

// selectMembers picks the members to materialize. Single crates always
// materialize; workspaces only the members asked for.
func selectMembers(entry *cratedoc.CacheEntry, selection []string) ([]cratedoc.MemberID, error) {
	if !entry.IsWorkspace {
		return entry.Units(), nil
	}
	var members []cratedoc.MemberID
	seen := make(map[string]bool)
	for _, name := range selection {
		if name == cratedoc.AllMembers {
			return entry.Members, nil
		}
		m, ok := entry.FindMember(name)
		if !ok {
			return nil, unknownMember(entry, name)
		}
		if !seen[m.Path] {
			seen[m.Path] = true
			members = append(members, m)
		}
	}
	return members, nil
}

func unknownMember(entry *cratedoc.CacheEntry, name string) error {
	return cratedoc.Errorf(cratedoc.EINVALID, "%s has no member %q; members: %s", entry.Key, name, strings.Join(entry.MemberNames(), ", "))
}
