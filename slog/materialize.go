package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/cratedoc"
)

var (
	_ cratedoc.Materializer = (*LoggingMaterializer)(nil)
	_ cratedoc.IndexService = (*LoggingIndexService)(nil)
)

// LoggingMaterializer wraps a Materializer with per-member logging.
type LoggingMaterializer struct {
	next   cratedoc.Materializer
	logger *slog.Logger
}

// NewLoggingMaterializer creates a new LoggingMaterializer.
func NewLoggingMaterializer(next cratedoc.Materializer, logger *slog.Logger) *LoggingMaterializer {
	return &LoggingMaterializer{next: next, logger: logger}
}

// Materialize delegates and logs one line per member.
func (m *LoggingMaterializer) Materialize(ctx context.Context, entry *cratedoc.CacheEntry, members []cratedoc.MemberID) []*cratedoc.MemberResult {
	begin := time.Now()
	results := m.next.Materialize(ctx, entry, members)
	for _, r := range results {
		level := slog.LevelInfo
		if !r.OK() {
			level = slog.LevelWarn
		}
		m.logger.Log(ctx, level, "materialize member",
			"key", entry.Key.String(),
			"member", r.Member.Name,
			"skipped", r.Skipped,
			"docErr", r.DocErr,
			"depErr", r.DepErr,
		)
	}
	m.logger.Info("materialize",
		"key", entry.Key.String(),
		"members", len(members),
		"duration", time.Since(begin),
	)
	return results
}

// GenerateDocs delegates to the wrapped materializer.
func (m *LoggingMaterializer) GenerateDocs(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) (string, error) {
	return m.next.GenerateDocs(ctx, entry, member)
}

// ResolveDependencies delegates and logs the call.
func (m *LoggingMaterializer) ResolveDependencies(ctx context.Context, entry *cratedoc.CacheEntry, member cratedoc.MemberID) (err error) {
	defer func(begin time.Time) {
		m.logger.Info("materialize dependencies",
			"key", entry.Key.String(),
			"member", member.Name,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return m.next.ResolveDependencies(ctx, entry, member)
}

// LoggingIndexService wraps an IndexService with logging of builds and
// searches.
type LoggingIndexService struct {
	next   cratedoc.IndexService
	logger *slog.Logger
}

// NewLoggingIndexService creates a new LoggingIndexService.
func NewLoggingIndexService(next cratedoc.IndexService, logger *slog.Logger) *LoggingIndexService {
	return &LoggingIndexService{next: next, logger: logger}
}

// Build delegates and logs the build.
func (s *LoggingIndexService) Build(ctx context.Context, path, docHash string, doc *cratedoc.DocArtifact) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("index build",
			"path", path,
			"items", len(doc.Items),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Build(ctx, path, docHash, doc)
}

func (s *LoggingIndexService) Status(ctx context.Context, path string) (string, error) {
	return s.next.Status(ctx, path)
}

// Search delegates and logs the query.
func (s *LoggingIndexService) Search(ctx context.Context, path string, q cratedoc.SearchQuery) (page *cratedoc.SearchPage, err error) {
	defer func(begin time.Time) {
		var total int
		if page != nil {
			total = page.Total
		}
		s.logger.Debug("index search",
			"path", path,
			"pattern", q.Pattern,
			"mode", q.Mode,
			"total", total,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Search(ctx, path, q)
}

func (s *LoggingIndexService) ListItems(ctx context.Context, path string, f cratedoc.ItemFilter) (*cratedoc.ItemPage, error) {
	return s.next.ListItems(ctx, path, f)
}

func (s *LoggingIndexService) GetItem(ctx context.Context, path, id string) (*cratedoc.Item, error) {
	return s.next.GetItem(ctx, path, id)
}
