package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/cratedoc"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Service cratedoc.Service
	Logger  *slog.Logger
	// JSON prints results as JSON instead of text.
	JSON bool
}

// fail reports err on stderr and returns it.
func (d *Dependencies) fail(err error) error {
	fmt.Fprintf(d.Stderr, "error: %s\n", cratedoc.ErrorMessage(err))
	if detail := cratedoc.ErrorDetail(err); detail != "" {
		fmt.Fprintln(d.Stderr, detail)
	}
	if cratedoc.IsRetryable(err) {
		fmt.Fprintln(d.Stderr, "Hint: the failure is transient; try again or pass --retries to cache")
	}
	return err
}

func (d *Dependencies) hint(format string, args ...any) {
	fmt.Fprintf(d.Stderr, "Hint: "+format+"\n", args...)
}

func (d *Dependencies) writeJSON(v any) error {
	enc := json.NewEncoder(d.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	CacheDir       string        `name:"cache-dir" env:"CRATEDOC_CACHE_DIR" default:"${cache_dir}" help:"Cache directory"`
	Toolchain      string        `env:"CRATEDOC_TOOLCHAIN" default:"${toolchain}" help:"Nightly toolchain used for rustdoc JSON"`
	RegistryURL    string        `name:"registry-url" env:"CRATEDOC_REGISTRY_URL" help:"Crate registry base URL"`
	LockTimeout    time.Duration `name:"lock-timeout" env:"CRATEDOC_LOCK_TIMEOUT" default:"${lock_timeout}" help:"How long to wait for a busy cache entry"`
	Workers        int           `env:"CRATEDOC_WORKERS" default:"${workers}" help:"Concurrent acquisitions and builds"`
	DocBudget      int           `name:"doc-budget" env:"CRATEDOC_DOC_BUDGET" default:"${doc_budget}" help:"Token budget per item in search and list results"`
	ResponseBudget int           `name:"response-budget" env:"CRATEDOC_RESPONSE_BUDGET" default:"${response_budget}" help:"Token budget of docs and source responses"`
	Tokenizer      string        `env:"CRATEDOC_TOKENIZER" help:"Gemini model used to count tokens (default: byte estimate)"`
	Verbose        bool          `short:"V" help:"Log operations to stderr"`
	LogFile        string        `name:"log-file" env:"CRATEDOC_LOG_FILE" default:"${log_file}" help:"Log file of the serve command"`
	JSON           bool          `help:"Print results as JSON"`

	Cache     CacheCmd     `cmd:"" help:"Download and document a crate"`
	List      ListCmd      `cmd:"" help:"List cached crates"`
	Versions  VersionsCmd  `cmd:"" help:"List cached versions of a crate"`
	Evict     EvictCmd     `cmd:"" help:"Remove a crate from the cache"`
	Search    SearchCmd    `cmd:"" help:"Search the items of a crate"`
	Items     ItemsCmd     `cmd:"" help:"List the items of a crate"`
	Item      ItemCmd      `cmd:"" help:"Show one item"`
	Docs      DocsCmd      `cmd:"" help:"Show the documentation of an item"`
	Source    SourceCmd    `cmd:"" help:"Show the source of an item"`
	Deps      DepsCmd      `cmd:"" help:"List the dependencies of a crate"`
	Structure StructureCmd `cmd:"" help:"Show the module tree of a crate"`
	Serve     ServeCmd     `cmd:"" help:"Serve the cache over the Model Context Protocol"`
}

// OriginFlags select where a crate comes from. None selects the most
// recently cached entry, or the registry.
type OriginFlags struct {
	Git     string `help:"Git repository URL"`
	Ref     string `help:"Branch, tag or commit of --git"`
	Subpath string `help:"Directory of the crate inside --git"`
	Path    string `help:"Local crate directory"`
}

func (f OriginFlags) origin() (*cratedoc.Origin, error) {
	return cratedoc.OriginSpec{Git: f.Git, Ref: f.Ref, Subpath: f.Subpath, Path: f.Path}.Origin()
}

// UnitFlags address one crate or workspace member.
type UnitFlags struct {
	Name    string `arg:"" help:"Crate name"`
	Version string `help:"Crate version (default: newest cached)"`
	Member  string `short:"m" help:"Workspace member name or path"`
	OriginFlags
}

func (f UnitFlags) ref() (cratedoc.UnitRef, error) {
	origin, err := f.origin()
	if err != nil {
		return cratedoc.UnitRef{}, err
	}
	return cratedoc.UnitRef{Name: f.Name, Version: f.Version, Origin: origin, Member: f.Member}, nil
}

// CacheCmd is the "cache" subcommand.
type CacheCmd struct {
	Name    string   `arg:"" help:"Crate name"`
	Version string   `arg:"" optional:"" help:"Crate version (default: latest)"`
	Members []string `short:"m" name:"member" help:"Workspace members to document, '*' for all (repeatable)"`
	Update  bool     `short:"u" help:"Fetch again even if cached"`
	Retries int      `default:"0" help:"Retry transient failures up to N times"`
	OriginFlags
}

// ListCmd is the "list" subcommand.
type ListCmd struct{}

// VersionsCmd is the "versions" subcommand.
type VersionsCmd struct {
	Name string `arg:"" help:"Crate name"`
}

// EvictCmd is the "evict" subcommand.
type EvictCmd struct {
	UnitFlags
	Force bool `help:"Confirm eviction"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	UnitFlags
	Pattern  string `arg:"" help:"Search pattern"`
	Fuzzy    bool   `short:"z" help:"Match approximately"`
	Distance int    `help:"Maximum edit distance of fuzzy matches"`
	Kind     string `short:"k" help:"Only items of this kind"`
	Prefix   string `help:"Only items under this path prefix"`
	Preview  bool   `short:"p" help:"Show ids, names and kinds only"`
	Limit    int    `short:"n" help:"Hits per page"`
	Cursor   string `help:"Continue from a previous page"`
}

// ItemsCmd is the "items" subcommand.
type ItemsCmd struct {
	UnitFlags
	Kind    string `short:"k" help:"Only items of this kind"`
	Prefix  string `help:"Only items under this path prefix"`
	Preview bool   `short:"p" help:"Show ids, names and kinds only"`
	Offset  int    `help:"Skip this many items"`
	Limit   int    `short:"n" help:"Items per page"`
}

// ItemCmd is the "item" subcommand.
type ItemCmd struct {
	UnitFlags
	ID string `arg:"" help:"Item id"`
}

// DocsCmd is the "docs" subcommand.
type DocsCmd struct {
	UnitFlags
	ID     string `arg:"" help:"Item id"`
	Offset int    `help:"Byte offset to continue from"`
}

// SourceCmd is the "source" subcommand.
type SourceCmd struct {
	UnitFlags
	ID      string `arg:"" help:"Item id"`
	Context int    `short:"C" default:"${context_lines}" help:"Lines of context around the item"`
	Offset  int    `help:"Byte offset to continue from"`
}

// DepsCmd is the "deps" subcommand.
type DepsCmd struct {
	UnitFlags
	Filter string `short:"f" help:"Only dependencies whose name contains this"`
	Kind   string `short:"k" help:"Only dependencies of this kind (normal, dev, build)"`
	Direct bool   `help:"Only direct dependencies"`
}

// StructureCmd is the "structure" subcommand.
type StructureCmd struct {
	UnitFlags
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	HTTP string `name:"http" help:"Serve streamable HTTP on this address instead of stdio"`
}
