package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/cratedoc"
)

// Run executes the cache command.
func (c *CacheCmd) Run(deps *Dependencies) error {
	origin, err := c.origin()
	if err != nil {
		return deps.fail(err)
	}
	req := cratedoc.CacheRequest{
		Name:    c.Name,
		Version: c.Version,
		Origin:  cratedoc.RegistryOrigin(),
		Members: c.Members,
		Update:  c.Update,
	}
	if origin != nil {
		req.Origin = *origin
	}

	logf := func(format string, args ...any) {
		fmt.Fprintf(deps.Stderr, format+"\n", args...)
	}
	res, err := Retry(deps.Ctx, c.Name, func(ctx context.Context) (*cratedoc.CacheResult, error) {
		return deps.Service.Cache(ctx, req)
	}, logf, RetryDelays(c.Retries))
	if err != nil {
		return deps.fail(err)
	}

	if deps.JSON {
		if err := deps.writeJSON(res); err != nil {
			return err
		}
		return failedMembers(res)
	}

	entry := res.Entry
	switch {
	case res.Unchanged:
		fmt.Fprintf(deps.Stdout, "Unchanged %s\n", entry.Key)
	case res.Acquired:
		fmt.Fprintf(deps.Stdout, "Cached %s (%s)\n", entry.Key, humanize.Bytes(uint64(entry.SizeBytes)))
	default:
		fmt.Fprintf(deps.Stdout, "Already cached %s (%s)\n", entry.Key, humanize.Bytes(uint64(entry.SizeBytes)))
	}

	if entry.IsWorkspace && len(c.Members) == 0 {
		fmt.Fprintf(deps.Stdout, "Workspace members (%d):\n", len(res.Members))
		for _, m := range res.Members {
			fmt.Fprintf(deps.Stdout, "  %s  %s\n", m.Name, m.Path)
		}
		deps.hint("pass --member NAME, or --member '*' for all, to document members")
		return nil
	}

	for _, r := range res.Results {
		fmt.Fprintf(deps.Stdout, "  %s  %s\n", r.Member.Name, r.Status)
		for _, report := range []*cratedoc.ErrorReport{r.Docs, r.Deps} {
			if report != nil {
				fmt.Fprintf(deps.Stdout, "    %s: %s\n", report.Code, report.Message)
			}
		}
	}
	if err := failedMembers(res); err != nil {
		return deps.fail(err)
	}
	return nil
}

// failedMembers returns an error when some members could not be documented.
func failedMembers(res *cratedoc.CacheResult) error {
	var failed int
	for _, r := range res.Results {
		if r.Status == cratedoc.StatusFailed {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return cratedoc.Errorf(cratedoc.EBUILD, "%d of %d members failed", failed, len(res.Results))
}
