package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// Run executes the structure command.
func (c *StructureCmd) Run(deps *Dependencies) error {
	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	tree, err := deps.Service.GetStructure(deps.Ctx, ref)
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(tree)
	}
	printTree(deps.Stdout, tree, 0)
	return nil
}

func printTree(w io.Writer, t *cratedoc.ModuleTree, depth int) {
	line := strings.Repeat("  ", depth) + t.Kind + " " + t.Name
	if t.Visibility != "" {
		line += ": " + t.Visibility
	}
	if t.Attributes != "" {
		line += " " + t.Attributes
	}
	fmt.Fprintln(w, line)
	for _, child := range t.Children {
		printTree(w, child, depth+1)
	}
}
