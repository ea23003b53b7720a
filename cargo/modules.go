package cargo

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/cratedoc"
)

// Ensure StructureAnalyzer implements cratedoc.StructureAnalyzer at compile time.
var _ cratedoc.StructureAnalyzer = (*StructureAnalyzer)(nil)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StructureAnalyzer reports module trees with the cargo-modules plugin.
type StructureAnalyzer struct {
	runner *Runner
}

// NewStructureAnalyzer creates a new StructureAnalyzer.
func NewStructureAnalyzer(runner *Runner) *StructureAnalyzer {
	return &StructureAnalyzer{runner: runner}
}

// AnalyzeStructure implements cratedoc.StructureAnalyzer.
func (a *StructureAnalyzer) AnalyzeStructure(ctx context.Context, dir, pkg string) (*cratedoc.ModuleTree, error) {
	args := []string{"cargo", "modules", "structure"}
	if pkg != "" {
		args = append(args, "--package", pkg)
	}
	args = append(args, "--lib")

	res, err := a.runner.run(ctx, dir, map[string]string{"NO_COLOR": "1", "CARGO_TERM_COLOR": "never"}, args...)
	if err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return nil, cerr
		}
		diag := stderrOf(res, err)
		if isMissingBinary(err) || strings.Contains(diag, "no such command: `modules`") {
			return nil, cratedoc.WrapError(cratedoc.ETOOLCHAIN, err, "cargo-modules is not installed; install it with: cargo install cargo-modules")
		}
		return nil, cratedoc.WithDetail(cratedoc.WrapError(cratedoc.EBUILD, err, "cargo modules failed"), diag)
	}
	return ParseStructure(res.Stdout)
}

// ParseStructure parses the box-drawing tree printed by cargo modules.
// Each nesting level is four runes wide.
func ParseStructure(out string) (*cratedoc.ModuleTree, error) {
	var root *cratedoc.ModuleTree
	var stack []*cratedoc.ModuleTree

	for _, line := range strings.Split(ansiEscape.ReplaceAllString(out, ""), "\n") {
		line = strings.TrimRight(line, " \r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		body := strings.TrimLeft(line, "│├└─  ")
		prefix := line[:len(line)-len(body)]
		depth := utf8.RuneCountInString(prefix) / 4

		node := parseNode(body)
		if root == nil {
			if depth != 0 {
				continue
			}
			root = node
			stack = []*cratedoc.ModuleTree{root}
			continue
		}
		if depth < 1 {
			depth = 1
		}
		if depth > len(stack) {
			depth = len(stack)
		}
		parent := stack[depth-1]
		parent.Children = append(parent.Children, node)
		stack = append(stack[:depth], node)
	}
	if root == nil {
		return nil, cratedoc.Errorf(cratedoc.EBUILD, "cargo modules produced no structure")
	}
	return root, nil
}

// parseNode parses "kind name: visibility #[attrs]".
func parseNode(s string) *cratedoc.ModuleTree {
	n := &cratedoc.ModuleTree{}
	head, tail, _ := strings.Cut(s, ":")
	if kind, name, ok := strings.Cut(strings.TrimSpace(head), " "); ok {
		n.Kind, n.Name = kind, strings.TrimSpace(name)
	} else {
		n.Name = strings.TrimSpace(head)
	}
	tail = strings.TrimSpace(tail)
	if i := strings.Index(tail, "#["); i >= 0 {
		n.Attributes = strings.TrimSpace(tail[i:])
		tail = strings.TrimSpace(tail[:i])
	}
	n.Visibility = tail
	return n
}
