package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/cratedoc"
)

// Run executes the deps command.
func (c *DepsCmd) Run(deps *Dependencies) error {
	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	res, err := deps.Service.GetDependencies(deps.Ctx, cratedoc.DependenciesRequest{
		UnitRef: ref,
		Filter: cratedoc.DependencyFilter{
			Name:       c.Filter,
			Kind:       cratedoc.DependencyKind(c.Kind),
			DirectOnly: c.Direct,
		},
	})
	if err != nil {
		return deps.fail(err)
	}
	if deps.JSON {
		return deps.writeJSON(res)
	}

	if len(res.Dependencies) == 0 {
		fmt.Fprintf(deps.Stdout, "No dependencies of %s match.\n", res.Member.Name)
		return nil
	}
	fmt.Fprintf(deps.Stdout, "Dependencies of %s (%d):\n", res.Member.Name, len(res.Dependencies))
	for _, d := range res.Dependencies {
		printDependency(deps.Stdout, d)
	}
	return nil
}

func printDependency(w io.Writer, d *cratedoc.Dependency) {
	var tags []string
	if d.Kind != cratedoc.DependencyNormal {
		tags = append(tags, string(d.Kind))
	}
	if !d.Direct {
		tags = append(tags, "transitive")
	}
	if d.Optional {
		tags = append(tags, "optional")
	}
	if d.Target != "" {
		tags = append(tags, d.Target)
	}

	line := "  " + d.Name
	if d.Resolved != "" {
		line += " " + d.Resolved
	}
	if d.Requirement != "" {
		line += " (" + d.Requirement + ")"
	}
	if len(tags) > 0 {
		line += " [" + strings.Join(tags, ", ") + "]"
	}
	fmt.Fprintln(w, line)
	if len(d.Features) > 0 {
		fmt.Fprintf(w, "    features: %s\n", strings.Join(d.Features, ", "))
	}
}
