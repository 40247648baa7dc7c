// Package main is the kotae CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/tracing"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/internal/workflow"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "load":
		runLoad()
	case "chat":
		runChat()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads and validates config and builds the logger shared by server and load.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, bool) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewFileLogger(debugMode, cfg.Logging.File)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger, debugMode
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (intent detection, retrieval, file reloads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if cfg.Data.Watch {
		watchSvc := newCorpusWatcher(cfg, components.Indexer, logger, debugMode)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		if components.Empty(ctx) {
			logger.Info("indexes are empty, loading corpus files", zap.String("dir", cfg.Data.Directory))
			watchSvc.SyncExistingFiles()
		}
	}

	srv := server.NewServer(components.Engine, components.Indexes, components.Sessions, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// newCorpusWatcher reloads the projects and case studies files through idx when they change.
func newCorpusWatcher(cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger, debug bool) *watcher.Watcher {
	opts := []watcher.WatcherOption{}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	return watcher.NewWatcher(
		cfg.Data.Directory,
		corpusFiles(cfg),
		func(path, kind string) {
			if _, err := idx.IndexFile(context.Background(), path, kind); err != nil {
				logger.Warn("watch reload failed", zap.String("path", path), zap.String("kind", kind), zap.Error(err))
			}
		},
		func(path string) {
			// Records stay indexed until the file reappears with new content.
			idx.Forget(path)
			logger.Info("corpus file removed", zap.String("path", path))
		},
		opts...,
	)
}

func corpusFiles(cfg *config.Config) map[string]string {
	return map[string]string{
		cfg.Data.ProjectsFile:    indexer.KindProjects,
		cfg.Data.CaseStudiesFile: indexer.KindCaseStudies,
	}
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	kind := fs.String("kind", "", "record kind of the file argument: projects or case_studies")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	// Single file: kind must be given explicitly.
	if fs.NArg() > 0 {
		path := fs.Arg(0)
		if *kind == "" {
			fmt.Println("Usage: kotae load -kind <projects|case_studies> <file>")
			os.Exit(1)
		}
		n, err := components.Indexer.IndexFile(ctx, path, *kind)
		if err != nil {
			fmt.Printf("Loading failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %d %s record(s) from %s\n", n, *kind, path)
		return
	}

	var failed bool
	loaded := 0
	w := watcher.NewWatcher(cfg.Data.Directory, corpusFiles(cfg), func(path, kind string) {
		n, err := components.Indexer.IndexFile(ctx, path, kind)
		if err != nil {
			fmt.Printf("Loading %s failed: %v\n", path, err)
			failed = true
			return
		}
		loaded++
		fmt.Printf("Loaded %d %s record(s) from %s\n", n, kind, path)
	}, nil)
	w.SyncExistingFiles()
	if failed {
		os.Exit(1)
	}
	if loaded == 0 {
		fmt.Printf("No corpus files found in %s (expected %s)\n", cfg.Data.Directory, strings.Join(w.Files(), ", "))
		os.Exit(1)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	workflowID := fs.String("workflow", "", "resume a suspended conversation")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	client := cli.NewClient(*serverURL)
	ctx := context.Background()

	// One-shot: the query is all remaining arguments.
	if q := buildQuery(fs.Args()); q != "" {
		resp, err := client.Chat(ctx, *workflowID, q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteChatResponse(os.Stdout, resp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := chatLoop(ctx, client, os.Stdin, os.Stdout, *workflowID, format); err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
}

// chatter sends one turn.
type chatter interface {
	Chat(ctx context.Context, workflowID, query string) (*models.ChatResponse, error)
}

// chatLoop reads queries line by line, carrying the workflow ID across clarification turns.
// "/new" drops the pending conversation and "/quit" ends the loop.
func chatLoop(ctx context.Context, client chatter, in io.Reader, out io.Writer, workflowID string, format cli.OutputFormat) error {
	prompt := color.New(color.FgCyan, color.Bold)
	scanner := bufio.NewScanner(in)
	for {
		prompt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			workflowID = ""
			continue
		}
		resp, err := client.Chat(ctx, workflowID, line)
		if err != nil {
			color.New(color.FgRed).Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := cli.WriteChatResponse(out, resp, format); err != nil {
			return err
		}
		fmt.Fprintln(out)
		workflowID = cli.NextWorkflowID(resp)
	}
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status, err := cli.NewClient(*serverURL).Status(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// writeStatusText prints top-level fields first, then the nested config section.
func writeStatusText(w io.Writer, status map[string]any) {
	printFields(w, status)
	if cfg, ok := status["config"].(map[string]any); ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		printFields(w, cfg)
	}
}

func printFields(w io.Writer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, nested := v.(map[string]any); nested {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-20s %v\n", k+":", m[k])
	}
}

// Components holds initialized services.
type Components struct {
	Indexes  *vector.Set
	Catalog  storage.Catalog
	Sessions session.Store
	Model    llm.Model
	Indexer  *indexer.Indexer
	Engine   *workflow.Engine

	shutdownTracing tracing.ShutdownFunc
}

// Empty reports whether neither index holds any record.
func (c *Components) Empty(ctx context.Context) bool {
	projects, err := c.Indexes.Projects.Count(ctx)
	if err != nil {
		return false
	}
	caseStudies, err := c.Indexes.CaseStudies.Count(ctx)
	if err != nil {
		return false
	}
	return projects == 0 && caseStudies == 0
}

func (c *Components) Close() {
	if c.Sessions != nil {
		_ = c.Sessions.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Indexes != nil {
		_ = c.Indexes.Close()
	}
	if c.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.shutdownTracing(ctx)
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, debug bool) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.shutdownTracing, err = tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	c.Model, err = newModel(cfg, logger)
	if err != nil {
		return nil, err
	}

	c.Indexes, err = vector.NewSet(cfg.Vector.Type, cfg.Vector.DSN, cfg.Vector.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	// The memory backend forgets everything on exit, so writes also go to the
	// catalog and the catalog is replayed into the indexes here.
	projectWriter := vector.Writer[models.Project](c.Indexes.Projects)
	caseStudyWriter := vector.Writer[models.CaseStudy](c.Indexes.CaseStudies)
	if vector.IndexType(c.Indexes.Type()) == vector.IndexTypeMemory {
		catalog, err := storage.NewSQLiteCatalog(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Catalog = catalog
		np, err := catalog.LoadProjects(ctx, c.Indexes.Projects)
		if err != nil {
			return nil, fmt.Errorf("failed to hydrate projects: %w", err)
		}
		nc, err := catalog.LoadCaseStudies(ctx, c.Indexes.CaseStudies)
		if err != nil {
			return nil, fmt.Errorf("failed to hydrate case studies: %w", err)
		}
		logger.Info("vector index hydrated from catalog",
			zap.String("database_path", cfg.Storage.DatabasePath),
			zap.Int("projects", np),
			zap.Int("case_studies", nc))
		projectWriter = vector.Tee(catalog.Projects(), c.Indexes.Projects)
		caseStudyWriter = vector.Tee(catalog.CaseStudies(), c.Indexes.CaseStudies)
	}
	logger.Info("vector index initialized", zap.String("type", c.Indexes.Type()))

	c.Sessions, err = session.NewStore(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	idxOpts := []indexer.IndexerOption{indexer.WithLogger(logger)}
	c.Indexer = indexer.NewIndexer(c.Model, projectWriter, caseStudyWriter, idxOpts...)

	componentLogger := zap.NewNop()
	if debug {
		componentLogger = logger
	}
	classifier := intent.NewClassifier(c.Model,
		intent.WithParseOptions(generationOptions(cfg.LLM.Parse)...),
		intent.WithCondenseOptions(generationOptions(cfg.LLM.Condense)...),
		intent.WithLogger(componentLogger),
	)
	retriever := search.NewRetriever(c.Model, c.Indexes.Projects, c.Indexes.CaseStudies, &cfg.Retrieval,
		search.WithLogger(componentLogger),
	)
	c.Engine = workflow.NewEngine(classifier, retriever, c.Model, c.Sessions,
		workflow.WithMaxAttempts(cfg.Workflow.Attempts()),
		workflow.WithChatOptions(generationOptions(cfg.LLM.Chat)...),
		workflow.WithLogger(logger),
	)
	return c, nil
}

// newModel builds the OpenAI-compatible client with retries and an embedding cache.
func newModel(cfg *config.Config, logger *zap.Logger) (llm.Model, error) {
	apiKey := cfg.LLM.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key: set %s", cfg.LLM.APIKeyEnv)
	}
	client := llm.NewClient(cfg.LLM.BaseURL, apiKey, cfg.LLM.EmbeddingModel,
		llm.WithLogger(logger),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
		llm.WithRetryPolicy(llm.RetryPolicy{
			MaxRetries:     cfg.LLM.MaxRetries,
			InitialBackoff: cfg.LLM.InitialBackoff,
			Multiplier:     cfg.LLM.BackoffMultiplier,
		}),
		llm.WithDefaults(llm.Resolve(llm.GenerateOptions{}, generationOptions(cfg.LLM.Chat)...)),
	)
	return llm.NewCachingModel(client, cfg.LLM.EmbeddingCacheSize), nil
}

// generationOptions turns one config block into per-call options.
func generationOptions(g config.GenerationConfig) []llm.Option {
	opts := []llm.Option{llm.WithModel(g.Model), llm.WithMaxTokens(g.MaxTokens), llm.WithTopP(g.TopP)}
	if g.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*g.Temperature))
	}
	return opts
}

func printUsage() {
	fmt.Println(`kotae - Conversational retrieval over projects and case studies

Usage:
  kotae server [flags]           Start the HTTP server
  kotae load [flags] [file]      Load corpus files into the indexes
  kotae chat [flags] [query]     Chat with a running server (interactive without a query)
  kotae status [flags]           Show index and configuration status
  kotae version                  Show version
  kotae help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Load Flags:
  --config string    Config file path
  --kind string      Kind of the file argument: projects or case_studies
                     Without a file, both corpus files in the data directory are loaded.

Chat Flags:
  --server string    Server URL (default: http://localhost:8000)
  --workflow string  Resume a suspended conversation
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8000)
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae load
  kotae load --kind projects ./projects.json
  kotae chat "fintech projects using Go"
  kotae chat --workflow 3f2a... "retail"
  kotae chat                       # interactive; /new starts over, /quit exits
  kotae status --output json`)
}
