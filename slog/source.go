// Package slog decorates cratedoc services with structured logging.
package slog

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/cratedoc"
)

var (
	_ cratedoc.SourceAcquirer   = (*LoggingAcquirer)(nil)
	_ cratedoc.RegistryClient   = (*LoggingRegistryClient)(nil)
	_ cratedoc.RepositoryClient = (*LoggingRepositoryClient)(nil)
)

// LoggingAcquirer wraps a SourceAcquirer with logging.
type LoggingAcquirer struct {
	next   cratedoc.SourceAcquirer
	logger *slog.Logger
}

// NewLoggingAcquirer creates a new LoggingAcquirer.
func NewLoggingAcquirer(next cratedoc.SourceAcquirer, logger *slog.Logger) *LoggingAcquirer {
	return &LoggingAcquirer{next: next, logger: logger}
}

// Prepare delegates without logging; it does no I/O worth reporting.
func (a *LoggingAcquirer) Prepare(ctx context.Context, req cratedoc.AcquireRequest) (cratedoc.CacheKey, error) {
	return a.next.Prepare(ctx, req)
}

// Acquire delegates to the wrapped acquirer and logs the operation.
func (a *LoggingAcquirer) Acquire(ctx context.Context, key cratedoc.CacheKey, dir string) (acq *cratedoc.Acquisition, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"key", key.String(),
			"duration", time.Since(begin),
		}
		if acq != nil {
			attrs = append(attrs, "version", acq.Key.Version, "bytes", acq.SizeBytes)
		}
		if err != nil {
			attrs = append(attrs, "err", err, "retryable", cratedoc.IsRetryable(err))
		}
		a.logger.Info("acquire", attrs...)
	}(time.Now())
	return a.next.Acquire(ctx, key, dir)
}

// LoggingRegistryClient wraps a RegistryClient with logging.
type LoggingRegistryClient struct {
	next   cratedoc.RegistryClient
	logger *slog.Logger
}

// NewLoggingRegistryClient creates a new LoggingRegistryClient.
func NewLoggingRegistryClient(next cratedoc.RegistryClient, logger *slog.Logger) *LoggingRegistryClient {
	return &LoggingRegistryClient{next: next, logger: logger}
}

// Download delegates to the wrapped client and logs the request.
func (c *LoggingRegistryClient) Download(ctx context.Context, name, version string) (body io.ReadCloser, err error) {
	defer func(begin time.Time) {
		c.logger.Info("registry download",
			"crate", name,
			"version", version,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return c.next.Download(ctx, name, version)
}

// LoggingRepositoryClient wraps a RepositoryClient with logging.
type LoggingRepositoryClient struct {
	next   cratedoc.RepositoryClient
	logger *slog.Logger
}

// NewLoggingRepositoryClient creates a new LoggingRepositoryClient.
func NewLoggingRepositoryClient(next cratedoc.RepositoryClient, logger *slog.Logger) *LoggingRepositoryClient {
	return &LoggingRepositoryClient{next: next, logger: logger}
}

// Snapshot delegates to the wrapped client and logs the checkout.
func (c *LoggingRepositoryClient) Snapshot(ctx context.Context, locator, ref, dir string) (snap *cratedoc.Snapshot, err error) {
	defer func(begin time.Time) {
		var revision string
		if snap != nil {
			revision = snap.Revision
		}
		c.logger.Info("repository snapshot",
			"locator", locator,
			"ref", ref,
			"revision", revision,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return c.next.Snapshot(ctx, locator, ref, dir)
}
