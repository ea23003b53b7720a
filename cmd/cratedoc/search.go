package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	q := cratedoc.SearchQuery{
		Pattern:       c.Pattern,
		Mode:          cratedoc.SearchExact,
		Kind:          c.Kind,
		PathPrefix:    c.Prefix,
		Preview:       c.Preview,
		Limit:         c.Limit,
		Cursor:        c.Cursor,
		FuzzyDistance: c.Distance,
	}
	if c.Fuzzy {
		q.Mode = cratedoc.SearchFuzzy
	}

	res, err := deps.Service.Search(deps.Ctx, cratedoc.SearchRequest{UnitRef: ref, Query: q})
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(res)
	}

	if len(res.Hits) == 0 {
		fmt.Fprintf(deps.Stdout, "No items match %q in %s\n", c.Pattern, res.Key)
		return nil
	}
	fmt.Fprintf(deps.Stdout, "%d matches in %s:\n\n", res.Total, res.Key)
	for _, h := range res.Hits {
		printItem(deps.Stdout, h.Item)
	}
	if res.NextCursor != "" {
		deps.hint("more results; pass --cursor %s", res.NextCursor)
	}
	if res.Hint != "" {
		deps.hint("%s", res.Hint)
	}
	return nil
}

// Run executes the items command.
func (c *ItemsCmd) Run(deps *Dependencies) error {
	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	res, err := deps.Service.ListItems(deps.Ctx, cratedoc.ListItemsRequest{
		UnitRef: ref,
		Filter: cratedoc.ItemFilter{
			Kind:       c.Kind,
			PathPrefix: c.Prefix,
			Preview:    c.Preview,
			Offset:     c.Offset,
			Limit:      c.Limit,
		},
	})
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(res)
	}

	fmt.Fprintf(deps.Stdout, "Items %d-%d of %d in %s:\n\n", res.Offset+min(1, len(res.Items)), res.Offset+len(res.Items), res.Total, res.Key)
	for _, item := range res.Items {
		printItem(deps.Stdout, item)
	}
	if res.HasMore {
		deps.hint("more items; pass --offset %d", res.Offset+len(res.Items))
	}
	if res.Hint != "" {
		deps.hint("%s", res.Hint)
	}
	return nil
}

// printItem prints the summary form of an item. Preview items carry only
// an id, a name and a kind.
func printItem(w io.Writer, item *cratedoc.Item) {
	name := item.Path
	if name == "" {
		name = item.Name
	}
	fmt.Fprintf(w, "  [%s] %s %s\n", item.ID, item.Kind, name)
	if item.Signature != "" {
		fmt.Fprintf(w, "     %s\n", item.Signature)
	}
	if item.Docs != "" {
		for _, line := range strings.Split(strings.TrimSpace(item.Docs), "\n") {
			fmt.Fprintf(w, "     %s\n", line)
		}
	}
}
