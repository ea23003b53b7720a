package cratedoc

import "context"

// Workspace classifies a source tree.
type Workspace struct {
	IsWorkspace bool `json:"isWorkspace"`
	// Package is the name of the root package, empty for virtual manifests.
	Package string `json:"package,omitempty"`
	// Version is the root package version, or the shared workspace version.
	Version string     `json:"version,omitempty"`
	Members []MemberID `json:"members,omitempty"`
}

// WorkspaceResolver inspects a source tree and enumerates its members.
type WorkspaceResolver interface {
	// Resolve reads the root manifest under root.
	// Returns EINVALID for missing manifests or unresolvable members.
	Resolve(ctx context.Context, root string) (*Workspace, error)
}
