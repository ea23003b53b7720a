package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// Run executes the item command.
func (c *ItemCmd) Run(deps *Dependencies) error {
	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	item, err := deps.Service.GetItem(deps.Ctx, cratedoc.ItemRequest{UnitRef: ref, ID: c.ID})
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(item)
	}

	fmt.Fprintf(deps.Stdout, "%s %s\n", item.Kind, item.Path)
	if item.Visibility != "" {
		fmt.Fprintf(deps.Stdout, "visibility: %s\n", item.Visibility)
	}
	if item.Span != nil {
		fmt.Fprintf(deps.Stdout, "defined at: %s:%d\n", item.Span.File, item.Span.BeginLine)
	}
	if item.Signature != "" {
		fmt.Fprintf(deps.Stdout, "\n%s\n", item.Signature)
	}
	if item.Docs != "" {
		fmt.Fprintf(deps.Stdout, "\n%s\n", strings.TrimRight(item.Docs, "\n"))
	}
	return nil
}

// Run executes the docs command.
func (c *DocsCmd) Run(deps *Dependencies) error {
	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	res, err := deps.Service.GetItemDocs(deps.Ctx, cratedoc.DocsRequest{UnitRef: ref, ID: c.ID, Offset: c.Offset})
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(res)
	}

	if res.Docs == "" && res.Offset == 0 {
		fmt.Fprintf(deps.Stdout, "%s %s has no documentation.\n", res.Kind, res.Name)
		return nil
	}
	fmt.Fprintln(deps.Stdout, strings.TrimRight(res.Docs, "\n"))
	if res.Truncated {
		deps.hint("documentation continues; pass --offset %d", res.NextOffset)
	}
	return nil
}

// Run executes the source command.
func (c *SourceCmd) Run(deps *Dependencies) error {
	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	res, err := deps.Service.GetItemSource(deps.Ctx, cratedoc.SourceRequest{
		UnitRef: ref,
		ID:      c.ID,
		Context: c.Context,
		Offset:  c.Offset,
	})
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(res)
	}

	fmt.Fprintf(deps.Stdout, "%s:%d-%d\n\n%s\n", res.File, res.StartLine, res.EndLine, res.Source)
	if res.Truncated {
		deps.hint("source continues; pass --offset %d", res.NextOffset)
	}
	return nil
}
