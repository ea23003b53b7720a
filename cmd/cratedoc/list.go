package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/cratedoc"
)

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	entries, err := deps.Service.ListEntries(deps.Ctx)
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(deps.Stdout, "No crates cached. Use 'cratedoc cache' to add one.")
		return nil
	}
	for _, e := range entries {
		printEntry(deps.Stdout, e)
	}
	return nil
}

// Run executes the versions command.
func (c *VersionsCmd) Run(deps *Dependencies) error {
	entries, err := deps.Service.ListVersions(deps.Ctx, c.Name)
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(deps.Stdout, "No cached versions of %s. Use 'cratedoc cache %s' to add one.\n", c.Name, c.Name)
		return nil
	}
	for _, e := range entries {
		printEntry(deps.Stdout, e)
	}
	return nil
}

func printEntry(w io.Writer, e *cratedoc.EntrySummary) {
	fmt.Fprintf(w, "%s  %s  refreshed %s\n", e.Key, humanize.Bytes(uint64(e.SizeBytes)), humanize.Time(e.RefreshedAt))
	if e.IsWorkspace {
		names := make([]string, 0, len(e.Members))
		for _, m := range e.Members {
			names = append(names, m.Name)
		}
		fmt.Fprintf(w, "  members: %s\n", strings.Join(names, ", "))
	}
	if len(e.Documented) > 0 {
		fmt.Fprintf(w, "  documented: %s\n", strings.Join(e.Documented, ", "))
	}
}
