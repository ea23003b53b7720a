package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/cratedoc"
)

var (
	_ cratedoc.DocGenerator       = (*LoggingDocGenerator)(nil)
	_ cratedoc.DependencyResolver = (*LoggingDependencyResolver)(nil)
	_ cratedoc.StructureAnalyzer  = (*LoggingStructureAnalyzer)(nil)
)

// LoggingDocGenerator wraps a DocGenerator with logging.
type LoggingDocGenerator struct {
	next   cratedoc.DocGenerator
	logger *slog.Logger
}

// NewLoggingDocGenerator creates a new LoggingDocGenerator.
func NewLoggingDocGenerator(next cratedoc.DocGenerator, logger *slog.Logger) *LoggingDocGenerator {
	return &LoggingDocGenerator{next: next, logger: logger}
}

// GenerateDocs delegates to the wrapped generator and logs the build.
func (g *LoggingDocGenerator) GenerateDocs(ctx context.Context, req cratedoc.DocRequest) (doc *cratedoc.DocArtifact, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"dir", req.Dir,
			"package", req.Package,
			"duration", time.Since(begin),
		}
		if doc != nil {
			attrs = append(attrs, "items", len(doc.Items))
		}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		g.logger.Info("generate docs", attrs...)
		if detail := cratedoc.ErrorDetail(err); detail != "" {
			g.logger.Debug("generate docs diagnostic", "package", req.Package, "detail", detail)
		}
	}(time.Now())
	return g.next.GenerateDocs(ctx, req)
}

// Toolchain delegates to the wrapped generator.
func (g *LoggingDocGenerator) Toolchain() string {
	return g.next.Toolchain()
}

// LoggingDependencyResolver wraps a DependencyResolver with logging.
type LoggingDependencyResolver struct {
	next   cratedoc.DependencyResolver
	logger *slog.Logger
}

// NewLoggingDependencyResolver creates a new LoggingDependencyResolver.
func NewLoggingDependencyResolver(next cratedoc.DependencyResolver, logger *slog.Logger) *LoggingDependencyResolver {
	return &LoggingDependencyResolver{next: next, logger: logger}
}

// ResolveDependencies delegates to the wrapped resolver and logs the call.
func (r *LoggingDependencyResolver) ResolveDependencies(ctx context.Context, dir, pkg string) (deps *cratedoc.DependencyArtifact, err error) {
	defer func(begin time.Time) {
		var count int
		if deps != nil {
			count = len(deps.Dependencies)
		}
		r.logger.Info("resolve dependencies",
			"dir", dir,
			"package", pkg,
			"count", count,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return r.next.ResolveDependencies(ctx, dir, pkg)
}

// LoggingStructureAnalyzer wraps a StructureAnalyzer with logging.
type LoggingStructureAnalyzer struct {
	next   cratedoc.StructureAnalyzer
	logger *slog.Logger
}

// NewLoggingStructureAnalyzer creates a new LoggingStructureAnalyzer.
func NewLoggingStructureAnalyzer(next cratedoc.StructureAnalyzer, logger *slog.Logger) *LoggingStructureAnalyzer {
	return &LoggingStructureAnalyzer{next: next, logger: logger}
}

// AnalyzeStructure delegates to the wrapped analyzer and logs the call.
func (a *LoggingStructureAnalyzer) AnalyzeStructure(ctx context.Context, dir, pkg string) (tree *cratedoc.ModuleTree, err error) {
	defer func(begin time.Time) {
		a.logger.Info("analyze structure",
			"dir", dir,
			"package", pkg,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return a.next.AnalyzeStructure(ctx, dir, pkg)
}
