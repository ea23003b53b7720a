package main

import (
	"fmt"

	"github.com/fwojciec/cratedoc"
)

// Run executes the evict command.
func (c *EvictCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm eviction\n")
		return cratedoc.Errorf(cratedoc.EINVALID, "use --force to confirm eviction")
	}

	ref, err := c.ref()
	if err != nil {
		return deps.fail(err)
	}
	if err := deps.Service.Evict(deps.Ctx, ref); err != nil {
		if cratedoc.ErrorCode(err) == cratedoc.ENOTFOUND {
			fmt.Fprintf(deps.Stderr, "error: %s. Use 'cratedoc list' to see cached crates.\n", cratedoc.ErrorMessage(err))
			return err
		}
		return deps.fail(err)
	}

	if deps.JSON {
		return deps.writeJSON(map[string]any{"evicted": true, "name": c.Name, "version": c.Version})
	}
	fmt.Fprintf(deps.Stdout, "Evicted %s\n", describeRef(ref))
	return nil
}

func describeRef(ref cratedoc.UnitRef) string {
	s := ref.Name
	if ref.Version != "" {
		s += "@" + ref.Version
	}
	if ref.Origin != nil {
		s += " (" + ref.Origin.String() + ")"
	}
	return s
}
