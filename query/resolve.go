package query

import (
	"context"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fwojciec/cratedoc"
)

// ListEntries implements cratedoc.Service.
func (s *Service) ListEntries(ctx context.Context) ([]*cratedoc.EntrySummary, error) {
	return s.store.ListEntries(ctx)
}

// ListVersions implements cratedoc.Service.
func (s *Service) ListVersions(ctx context.Context, name string) ([]*cratedoc.EntrySummary, error) {
	if name == "" {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "crate name required")
	}
	versions, err := s.store.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []*cratedoc.EntrySummary{}
	}
	sortNewestFirst(versions)
	return versions, nil
}

// sortNewestFirst orders entries by descending semantic version. Versions
// that do not parse sort after those that do; refresh time breaks ties.
func sortNewestFirst(entries []*cratedoc.EntrySummary) {
	parsed := make(map[string]*semver.Version, len(entries))
	for _, e := range entries {
		if v, err := semver.NewVersion(e.Key.Version); err == nil {
			parsed[e.Key.Version] = v
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		va, aok := parsed[a.Key.Version]
		vb, bok := parsed[b.Key.Version]
		switch {
		case aok && bok:
			if c := va.Compare(vb); c != 0 {
				return c > 0
			}
		case aok != bok:
			return aok
		case a.Key.Version != b.Key.Version:
			return a.Key.Version > b.Key.Version
		}
		return a.RefreshedAt.After(b.RefreshedAt)
	})
}

func mostRecent(entries []*cratedoc.EntrySummary, match func(*cratedoc.EntrySummary) bool) *cratedoc.EntrySummary {
	var latest *cratedoc.EntrySummary
	for _, e := range entries {
		if match(e) && (latest == nil || e.RefreshedAt.After(latest.RefreshedAt)) {
			latest = e
		}
	}
	return latest
}

// Evict implements cratedoc.Service.
func (s *Service) Evict(ctx context.Context, ref cratedoc.UnitRef) error {
	key, err := s.resolveKey(ctx, ref)
	if err != nil {
		return err
	}
	if key.Version == "" {
		return cratedoc.Errorf(cratedoc.ENOTFOUND, "%s is not cached", key)
	}
	return s.store.Evict(ctx, key)
}

// resolveKey maps a reference to a cache key without acquiring anything.
// References without an origin prefer cached entries and fall back to the
// registry.
func (s *Service) resolveKey(ctx context.Context, ref cratedoc.UnitRef) (cratedoc.CacheKey, error) {
	if ref.Name == "" {
		return cratedoc.CacheKey{}, cratedoc.Errorf(cratedoc.EINVALID, "crate name required")
	}
	registryLatest := ref.Origin != nil && ref.Origin.Kind == cratedoc.OriginRegistry && ref.Version == ""
	if ref.Origin != nil && !registryLatest {
		key, err := s.acquirer.Prepare(ctx, cratedoc.AcquireRequest{Name: ref.Name, Version: ref.Version, Origin: *ref.Origin})
		if err != nil {
			return cratedoc.CacheKey{}, err
		}
		return key, nil
	}

	summaries, err := s.store.ListVersions(ctx, ref.Name)
	if err != nil {
		return cratedoc.CacheKey{}, err
	}
	version := normalizeVersion(ref.Version)
	var candidates []*cratedoc.EntrySummary
	for _, e := range summaries {
		if e.Key.Name != ref.Name {
			continue
		}
		if registryLatest && e.Key.Origin.Kind != cratedoc.OriginRegistry {
			continue
		}
		if ref.Version != "" && e.Key.Version != ref.Version && e.Key.Version != version {
			continue
		}
		candidates = append(candidates, e)
	}

	if len(candidates) > 0 {
		if ref.Version == "" {
			sortNewestFirst(candidates)
			return candidates[0].Key, nil
		}
		return mostRecent(candidates, func(*cratedoc.EntrySummary) bool { return true }).Key, nil
	}
	if ref.Version == "" {
		return cratedoc.CacheKey{}, cratedoc.Errorf(cratedoc.ENOTFOUND, "%s is not cached; give a version to fetch it from the registry", ref.Name)
	}
	return s.acquirer.Prepare(ctx, cratedoc.AcquireRequest{Name: ref.Name, Version: ref.Version, Origin: cratedoc.RegistryOrigin()})
}

func normalizeVersion(v string) string {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return v
	}
	return sv.String()
}

// ensureUnit resolves ref to a cached entry and member, acquiring the
// entry when it is missing. With artifacts set, the member's artifacts are
// generated when absent.
func (s *Service) ensureUnit(ctx context.Context, ref cratedoc.UnitRef, artifacts bool) (*cratedoc.CacheEntry, cratedoc.MemberID, error) {
	key, err := s.resolveKey(ctx, ref)
	if err != nil {
		return nil, cratedoc.MemberID{}, cratedoc.WithStage(err, cratedoc.StageResolve)
	}

	entry, err := s.cachedEntry(ctx, key)
	if err != nil {
		return nil, cratedoc.MemberID{}, cratedoc.WithStage(err, cratedoc.StageAcquire)
	}
	if entry == nil {
		out, err := s.cache(ctx, key, nil, false)
		if err != nil {
			return nil, cratedoc.MemberID{}, err
		}
		if err := singleFailure(out); err != nil {
			return nil, cratedoc.MemberID{}, err
		}
		entry = out.entry
	}

	member, err := selectMember(entry, ref.Member)
	if err != nil {
		return nil, cratedoc.MemberID{}, cratedoc.WithStage(err, cratedoc.StageResolve)
	}
	if artifacts {
		if err := s.ensureArtifacts(ctx, entry, member); err != nil {
			return nil, cratedoc.MemberID{}, err
		}
	}
	return entry, member, nil
}

// selectMember picks the addressed member. Workspaces without a member
// use the root package when they have one.
func selectMember(entry *cratedoc.CacheEntry, name string) (cratedoc.MemberID, error) {
	if name == "" {
		if !entry.IsWorkspace {
			return entry.Units()[0], nil
		}
		if m, ok := entry.RootMember(); ok {
			return m, nil
		}
		return cratedoc.MemberID{}, cratedoc.Errorf(cratedoc.EINVALID, "%s is a workspace; choose a member: %s", entry.Key, strings.Join(entry.MemberNames(), ", "))
	}
	m, ok := entry.FindMember(name)
	if !ok {
		return cratedoc.MemberID{}, unknownMember(entry, name)
	}
	return m, nil
}

// ensureArtifacts materializes member unless its metadata exists.
func (s *Service) ensureArtifacts(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) error {
	_, err := s.store.ReadMetadata(ctx, entry.Key, member)
	if err == nil {
		return nil
	}
	if cratedoc.ErrorCode(err) != cratedoc.ENOTFOUND {
		return cratedoc.WithStage(err, cratedoc.StageMaterialize)
	}

	v, err := s.do(ctx, unitFlight("materialize", entry.Key, member), func(ctx context.Context) (any, error) {
		ctx, lock, err := s.store.Reserve(ctx, entry.Key)
		if err != nil {
			return nil, err
		}
		defer lock.Release()
		return s.materializer.Materialize(ctx, entry, []cratedoc.MemberID{member})[0], nil
	})
	if err != nil {
		return cratedoc.WithStage(err, cratedoc.StageMaterialize)
	}
	return cratedoc.WithStage(v.(*cratedoc.MemberResult).DocErr, cratedoc.StageMaterialize)
}

// ensureIndex returns the path of an index built from the member's current
// DocArtifact, building it first when it is missing or stale.
func (s *Service) ensureIndex(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) (string, error) {
	meta, err := s.store.ReadMetadata(ctx, entry.Key, member)
	if err != nil {
		return "", cratedoc.WithStage(err, cratedoc.StageIndex)
	}
	path := s.store.IndexPath(entry.Key, member)
	if hash, err := s.index.Status(ctx, path); err == nil && hash == meta.DocHash {
		return path, nil
	}

	_, err = s.do(ctx, unitFlight("index", entry.Key, member), func(ctx context.Context) (any, error) {
		ctx, lock, err := s.store.Reserve(ctx, entry.Key)
		if err != nil {
			return nil, err
		}
		defer lock.Release()

		if hash, err := s.index.Status(ctx, path); err == nil && hash == meta.DocHash {
			return nil, nil
		}
		doc, err := s.store.ReadDocArtifact(ctx, entry.Key, member)
		if err != nil {
			return nil, err
		}
		return nil, s.index.Build(ctx, path, meta.DocHash, doc)
	})
	if err != nil {
		return "", cratedoc.WithStage(err, cratedoc.StageIndex)
	}
	return path, nil
}
