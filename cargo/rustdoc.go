package cargo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/cratedoc"
)

// Ensure DocGenerator implements cratedoc.DocGenerator at compile time.
var _ cratedoc.DocGenerator = (*DocGenerator)(nil)

// Diagnostics cargo prints for conditions handled specially.
const (
	multipleTargetsDiag = "extra arguments to `rustdoc` can only be passed to one target"
	noLibraryDiag       = "no library targets found"
)

// DocGenerator builds rustdoc JSON with a pinned nightly toolchain.
type DocGenerator struct {
	runner    *Runner
	toolchain string

	mu       sync.Mutex
	verified bool
}

// NewDocGenerator creates a DocGenerator for the given channel.
func NewDocGenerator(runner *Runner, toolchain string) *DocGenerator {
	if toolchain == "" {
		toolchain = DefaultToolchain
	}
	return &DocGenerator{runner: runner, toolchain: toolchain}
}

// Toolchain implements cratedoc.DocGenerator.
func (g *DocGenerator) Toolchain() string {
	return g.toolchain
}

// GenerateDocs implements cratedoc.DocGenerator.
//
// All features are enabled. Packages with several targets are retried
// with --lib because rustdoc arguments apply to one target only.
func (g *DocGenerator) GenerateDocs(ctx context.Context, req cratedoc.DocRequest) (*cratedoc.DocArtifact, error) {
	if err := g.ensureToolchain(ctx); err != nil {
		return nil, err
	}

	env := map[string]string{"CARGO_TERM_COLOR": "never"}
	if req.TargetDir != "" {
		env["CARGO_TARGET_DIR"] = req.TargetDir
	}

	// Coarse filesystem timestamps may round down.
	started := time.Now().Truncate(time.Second)
	res, err := g.runner.run(ctx, req.Dir, env, g.rustdocArgs(req.Package, false)...)
	if err != nil && strings.Contains(stderrOf(res, err), multipleTargetsDiag) {
		res, err = g.runner.run(ctx, req.Dir, env, g.rustdocArgs(req.Package, true)...)
	}
	if err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return nil, cerr
		}
		if isMissingBinary(err) {
			return nil, missingToolchain(g.toolchain, err)
		}
		diag := stderrOf(res, err)
		if strings.Contains(diag, noLibraryDiag) {
			return nil, cratedoc.WithDetail(cratedoc.WrapError(cratedoc.EBUILD, err, "package has no library target to document"), diag)
		}
		if strings.Contains(diag, "toolchain '"+g.toolchain) && strings.Contains(diag, "is not installed") {
			return nil, missingToolchain(g.toolchain, err)
		}
		return nil, cratedoc.WithDetail(cratedoc.WrapError(cratedoc.EBUILD, err, "rustdoc failed"), diag)
	}

	targetDir := req.TargetDir
	if targetDir == "" {
		targetDir = filepath.Join(req.Dir, "target")
	}
	path, err := findDocJSON(filepath.Join(targetDir, "doc"), crateNames(req), started)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read %s", path)
	}
	doc, err := ParseRustdoc(data)
	if err != nil {
		return nil, err
	}
	if doc.Crate == "" {
		doc.Crate = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return doc, nil
}

func (g *DocGenerator) rustdocArgs(pkg string, lib bool) []string {
	args := []string{"cargo", "+" + g.toolchain, "rustdoc"}
	if pkg != "" {
		args = append(args, "-p", pkg)
	}
	if lib {
		args = append(args, "--lib")
	}
	return append(args, "--all-features", "--", "--output-format", "json", "-Z", "unstable-options")
}

// ensureToolchain checks once per generator that the channel is installed.
func (g *DocGenerator) ensureToolchain(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verified {
		return nil
	}

	res, err := g.runner.run(ctx, "", nil, "rustup", "toolchain", "list")
	if err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return cerr
		}
		return missingToolchain(g.toolchain, err)
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), g.toolchain) {
			g.verified = true
			return nil
		}
	}
	return missingToolchain(g.toolchain, nil)
}

// crateNames lists the names rustdoc may have given the JSON of req, most
// specific first.
func crateNames(req cratedoc.DocRequest) []string {
	var names []string
	if m, err := ReadManifest(req.Dir); err == nil {
		if name := m.CrateName(); name != "" {
			names = append(names, name)
		}
	}
	if req.Package != "" {
		names = append(names, strings.ReplaceAll(req.Package, "-", "_"))
	}
	return names
}

// findDocJSON locates the JSON rustdoc wrote to dir. The target directory
// is shared by every member of an entry, so a file is picked by crate
// name, then as the newest written since the run started, then as the
// only one present.
func findDocJSON(dir string, names []string, since time.Time) (string, error) {
	for _, name := range names {
		path := filepath.Join(dir, name+".json")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(matches) == 0 {
		return "", cratedoc.Errorf(cratedoc.EBUILD, "rustdoc produced no JSON output in %s", dir)
	}
	var newest string
	var newestTime time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest, newestTime = m, info.ModTime()
		}
	}
	if newest != "" {
		return newest, nil
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", cratedoc.Errorf(cratedoc.EBUILD, "cannot tell which rustdoc JSON in %s belongs to %s", dir, strings.Join(names, ", "))
}
