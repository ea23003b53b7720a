package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/acquire"
	"github.com/fwojciec/cratedoc/cargo"
	"github.com/fwojciec/cratedoc/fs"
	"github.com/fwojciec/cratedoc/gemini"
	"github.com/fwojciec/cratedoc/git"
	cratehttp "github.com/fwojciec/cratedoc/http"
	"github.com/fwojciec/cratedoc/materialize"
	"github.com/fwojciec/cratedoc/query"
	cdslog "github.com/fwojciec/cratedoc/slog"
	"github.com/fwojciec/cratedoc/sqlite"
	"gopkg.in/natefinch/lumberjack.v2"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Service replaces the cache stack when set. Used by end-to-end tests.
	Service cratedoc.Service

	// Logger replaces the configured logger when set.
	Logger *slog.Logger

	closers []io.Closer
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases log files opened by Run.
func (m *Main) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("cratedoc"),
		kong.Description("Offline documentation cache for Rust crates."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
		kong.Vars{
			"cache_dir":       defaultCacheDir(),
			"log_file":        defaultLogFile(),
			"toolchain":       cargo.DefaultToolchain,
			"lock_timeout":    fs.DefaultLockTimeout.String(),
			"workers":         fmt.Sprint(query.DefaultWorkers),
			"doc_budget":      fmt.Sprint(query.DefaultDocBudget),
			"response_budget": fmt.Sprint(query.DefaultResponseBudget),
			"context_lines":   fmt.Sprint(query.DefaultContextLines),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'cratedoc --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	defer m.Close()

	deps.JSON = cli.JSON
	deps.Logger = m.Logger
	if deps.Logger == nil {
		deps.Logger = m.logger(cli, kongCtx.Command() == "serve", stderr)
	}

	deps.Service = m.Service
	if deps.Service == nil {
		svc, err := buildService(cli, deps.Logger)
		if err != nil {
			fmt.Fprintf(stderr, "Hint: Set CRATEDOC_CACHE_DIR to use a different cache directory\n")
			return err
		}
		deps.Service = svc
	}

	return kongCtx.Run(deps)
}

// logger writes to stderr for one-shot commands. The MCP server owns
// stdout, so serve logs to a rotated file instead.
func (m *Main) logger(cli *CLI, serve bool, stderr io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	if serve {
		if cli.LogFile == "" {
			return slog.New(slog.DiscardHandler)
		}
		w := &lumberjack.Logger{
			Filename:   cli.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		m.closers = append(m.closers, w)
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	if !cli.Verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// buildService wires the production stack under the cache directory.
func buildService(cli *CLI, logger *slog.Logger) (*query.Service, error) {
	if err := os.MkdirAll(cli.CacheDir, 0o755); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to create cache directory %q", cli.CacheDir)
	}
	store := fs.NewStore(cli.CacheDir)
	if cli.LockTimeout > 0 {
		store.LockTimeout = cli.LockTimeout
	}

	registry := cratehttp.NewRegistryClient(
		cratehttp.WithBaseURL(cli.RegistryURL),
		cratehttp.WithUserAgent("cratedoc/"+version),
	)
	repository := git.NewRepositoryClient(os.Getenv("GITHUB_TOKEN"))
	resolver := cargo.NewWorkspaceResolver()
	acquirer := acquire.NewAcquirer(
		cdslog.NewLoggingRegistryClient(registry, logger),
		cdslog.NewLoggingRepositoryClient(repository, logger),
		resolver,
	)

	runner := cargo.NewRunner(nil)
	materializer := materialize.NewMaterializer(
		store,
		cdslog.NewLoggingDocGenerator(cargo.NewDocGenerator(runner, cli.Toolchain), logger),
		cdslog.NewLoggingDependencyResolver(cargo.NewDependencyResolver(runner), logger),
	)

	opts := []query.Option{
		query.WithWorkers(cli.Workers),
		query.WithDocBudget(cli.DocBudget),
		query.WithResponseBudget(cli.ResponseBudget),
		query.WithStructureAnalyzer(cdslog.NewLoggingStructureAnalyzer(cargo.NewStructureAnalyzer(runner), logger)),
	}
	if cli.Tokenizer != "" {
		counter, err := gemini.NewTokenCounter(cli.Tokenizer)
		if err != nil {
			return nil, err
		}
		opts = append(opts, query.WithTokenCounter(counter))
	}

	return query.NewService(
		store,
		cdslog.NewLoggingAcquirer(acquirer, logger),
		resolver,
		cdslog.NewLoggingMaterializer(materializer, logger),
		cdslog.NewLoggingIndexService(sqlite.NewIndexService(), logger),
		opts...,
	), nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cratedoc"
	}
	return filepath.Join(home, ".cratedoc")
}

func defaultCacheDir() string {
	return filepath.Join(homeDir(), "cache")
}

func defaultLogFile() string {
	return filepath.Join(homeDir(), "cratedoc.log")
}
