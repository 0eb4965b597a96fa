// Package main is the ragchat CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/ragchat/internal/agent"
	"github.com/hyperjump/ragchat/internal/cli"
	"github.com/hyperjump/ragchat/internal/collection"
	"github.com/hyperjump/ragchat/internal/config"
	"github.com/hyperjump/ragchat/internal/embedding"
	"github.com/hyperjump/ragchat/internal/extract"
	"github.com/hyperjump/ragchat/internal/indexer"
	"github.com/hyperjump/ragchat/internal/keyword"
	"github.com/hyperjump/ragchat/internal/llm"
	"github.com/hyperjump/ragchat/internal/mcpserver"
	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/search"
	"github.com/hyperjump/ragchat/internal/server"
	"github.com/hyperjump/ragchat/internal/storage"
	"github.com/hyperjump/ragchat/internal/tools"
	"github.com/hyperjump/ragchat/internal/vector"
	"github.com/hyperjump/ragchat/internal/watcher"
	"github.com/hyperjump/ragchat/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "chat":
		runChat(args)
	case "serve", "server":
		runServe(args)
	case "mcp":
		runMCP(args)
	case "add":
		runAdd(args)
	case "addfile":
		runAddFile(args)
	case "search":
		runSearch(args)
	case "info":
		runInfo(args)
	case "delete":
		runDelete(args)
	case "init":
		runInit(args)
	case "version", "--version", "-v":
		fmt.Printf("ragchat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags registers the flags every subcommand accepts.
func commonFlags(fs *flag.FlagSet) (configPath *string, debug *bool) {
	configPath = fs.String("config", defaultConfigPath, "config file path")
	debug = fs.Bool("debug", false, "enable debug logging")
	return configPath, debug
}

// setup loads the config and env file and builds a logger. Quiet commands only
// log warnings unless debug is on.
func setup(configPath string, debug, quiet bool) (*config.Config, *zap.Logger) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.LoadEnv(cfg.Chat.EnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}
	newLogger := utils.NewLogger
	if quiet {
		newLogger = utils.NewQuietLogger
	}
	logger, err := newLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func mustComponents(cfg *config.Config, logger *zap.Logger) *Components {
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize components: %v\n", err)
		os.Exit(1)
	}
	return components
}

// newAssistant builds the chat agent, or returns an error naming the missing key.
func newAssistant(cfg *config.Config, runner agent.ToolRunner, logger *zap.Logger) (*agent.Agent, error) {
	key := cfg.LLM.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set", cfg.LLM.APIKeyEnv)
	}
	client, err := llm.NewClient(llm.Config{
		APIKey:      key,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	return agent.New(client, runner, agent.WithLogger(logger)), nil
}

func runChat(args []string) {
	os.Exit(chat(args, os.Stdin, os.Stdout, os.Stderr))
}

// chat runs the interactive session and returns the exit code. The API key is
// checked before any storage is opened.
func chat(args []string, in io.Reader, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath, debug := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger := setup(*configPath, *debug, true)
	defer logger.Sync()

	if cfg.LLM.APIKey() == "" {
		fmt.Fprintf(errOut, "Error: %s environment variable not set\n", cfg.LLM.APIKeyEnv)
		fmt.Fprintf(errOut, "Please create a %s file with your API key:\n%s=your_api_key_here\n", cfg.Chat.EnvFile, cfg.LLM.APIKeyEnv)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(errOut, "Failed to initialize components: %v\n", err)
		return 1
	}
	defer components.Close()

	assistant, err := newAssistant(cfg, components.Bridge, logger)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	session := cli.NewSession(components.Bridge, assistant, in, out,
		cli.WithHistoryLimit(cfg.Chat.HistoryLimit),
		cli.WithLogger(logger))
	if err := session.Run(ctx); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	noWatch := fs.Bool("no-watch", false, "do not watch the configured directories")
	_ = fs.Parse(args)

	cfg, logger := setup(*configPath, *debug, false)
	defer logger.Sync()

	logger.Info("config loaded", zap.String("config_path", *configPath))

	components := mustComponents(cfg, logger)
	defer components.Close()

	var opts []server.Option
	if assistant, err := newAssistant(cfg, components.Bridge, logger); err != nil {
		logger.Warn("chat endpoint disabled", zap.Error(err))
	} else {
		opts = append(opts, server.WithAssistant(assistant))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*noWatch {
		watchSvc := watcher.New(&cfg.Watch, watcher.NewIngestor(components.Indexer, logger), watcher.WithLogger(logger))
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		go watchSvc.SyncExisting(ctx)
		opts = append(opts, server.WithWatch(watchSvc, *configPath))
	}

	srv := server.NewServer(components.Bridge, components.Retriever, cfg, logger, opts...)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(args)

	cfg, logger := setup(*configPath, *debug, true)
	defer logger.Sync()

	components := mustComponents(cfg, logger)
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := mcpserver.NewServer(components.Bridge, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("MCP server failed", zap.Error(err))
		os.Exit(1)
	}
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	title := fs.String("title", "", "document title")
	source := fs.String("source", "", "document source")
	_ = fs.Parse(args)

	content := strings.Join(fs.Args(), " ")
	if content == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
		content = string(data)
	}

	cfg, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	components := mustComponents(cfg, logger)
	defer components.Close()

	res := components.Bridge.Execute(context.Background(), tools.AddDocument{Content: content, Title: *title, Source: *source})
	printResult(res)
}

func runAddFile(args []string) {
	fs := flag.NewFlagSet("addfile", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	title := fs.String("title", "", "document title (defaults to the file name)")
	_ = fs.Parse(reorderArgs(args))

	if fs.NArg() < 1 {
		fmt.Println("Usage: ragchat addfile [flags] <path>")
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	components := mustComponents(cfg, logger)
	defer components.Close()

	res := components.Bridge.Execute(context.Background(), tools.AddFile{FilePath: fs.Arg(0), Title: *title})
	printResult(res)
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	nResults := fs.Int("n", 0, "number of results (default from config)")
	maxChars := fs.Int("max-chars", 0, "context budget in characters (default from config)")
	useKeyword := fs.Bool("keyword", false, "keyword search instead of semantic search")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ragchat search [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(args))

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	format := cli.SearchOutputFormat(*output)
	if format != cli.OutputText && format != cli.OutputJSON {
		fmt.Fprintf(os.Stderr, "Unknown output format: %s\n", *output)
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	components := mustComponents(cfg, logger)
	defer components.Close()

	req := &models.SearchRequest{Query: query, NResults: *nResults, MaxContextChars: *maxChars}
	if req.MaxContextChars <= 0 {
		req.MaxContextChars = cfg.Collection.MaxContextChars
	}
	results, err := components.Retriever.Do(context.Background(), req, *useKeyword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, query, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write results: %v\n", err)
		os.Exit(1)
	}
}

func runInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	cfg, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	components := mustComponents(cfg, logger)
	defer components.Close()

	res := components.Bridge.Execute(context.Background(), tools.GetCollectionInfo{})
	if !res.Success || *output == string(cli.OutputJSON) {
		printResult(res)
		return
	}
	info, _ := res.Payload["collection_info"].(*models.CollectionInfo)
	if info == nil {
		fmt.Fprintln(os.Stderr, "collection info unavailable")
		os.Exit(1)
	}
	cli.WriteCollectionInfo(os.Stdout, info)
	usage, err := storage.DiskUsage(cfg.Storage.DatabasePath, cfg.Storage.KeywordIndexPath)
	if err != nil {
		logger.Warn("disk usage unavailable", zap.Error(err))
		return
	}
	fmt.Printf("Disk Usage: %s\n", cli.FormatBytes(storage.TotalBytes(usage)))
	for _, u := range usage {
		if u.Missing {
			fmt.Printf("  %s: missing\n", u.Path)
			continue
		}
		fmt.Printf("  %s: %s\n", u.Path, cli.FormatBytes(u.Bytes))
	}
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(reorderArgs(args))

	if fs.NArg() < 1 {
		fmt.Println("Usage: ragchat delete [flags] <document-id>")
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	components := mustComponents(cfg, logger)
	defer components.Close()

	res := components.Bridge.Execute(context.Background(), tools.DeleteDocument{DocumentID: fs.Arg(0)})
	printResult(res)
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s already exists (use -force to overwrite)\n", *configPath)
		os.Exit(1)
	}
	cfg := config.Default()
	if err := config.Save(*configPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

// printResult writes the envelope as JSON and exits non-zero on failure.
func printResult(res tools.Result) {
	fmt.Println(res.JSON())
	if !res.Success {
		os.Exit(1)
	}
}

// buildQuery joins positional arguments into a single query.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that follow positional arguments to the front so the
// flag package sees them, e.g. "search my query -n 3".
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Collection   *collection.Collection
	Indexer      *indexer.Indexer
	Retriever    *search.Retriever
	Bridge       *tools.Bridge
}

// Close releases every component that holds resources.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	vectorIndex, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.VectorIndex = vectorIndex

	var keywordIndex *keyword.BleveIndex
	if cfg.Storage.KeywordIndexPath != "" {
		keywordIndex, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	} else {
		keywordIndex, err = keyword.NewMemBleveIndex()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	coll, err := collection.Open(ctx, cfg.Collection.Name, store, vectorIndex,
		collection.WithEmbedder(embedding.Identity(embedder)),
		collection.WithKeywordIndex(keywordIndex),
		collection.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	c.Collection = coll

	c.Indexer = indexer.NewIndexer(coll, embedder, &cfg.Collection,
		indexer.WithExtractor(extract.NewExtractor()),
		indexer.WithLogger(logger))
	c.Retriever = search.NewRetriever(coll, embedder,
		search.WithDefaultResults(cfg.Collection.DefaultNResults),
		search.WithLogger(logger))
	c.Bridge = tools.NewBridge(c.Indexer, c.Retriever,
		tools.WithDefaultResults(cfg.Collection.DefaultNResults),
		tools.WithMaxContextChars(cfg.Collection.MaxContextChars),
		tools.WithLogger(logger))

	logger.Debug("components initialized",
		zap.String("collection", cfg.Collection.Name),
		zap.String("embedder", embedding.Identity(embedder)))
	ok = true
	return c, nil
}

func printUsage() {
	fmt.Println(`ragchat - Retrieval-augmented chat over a local document collection

Usage:
  ragchat chat [flags]                 Start the interactive chat
  ragchat serve [flags]                Start the HTTP API and directory watcher
  ragchat mcp [flags]                  Serve the collection tools over MCP (stdio)
  ragchat add [flags] [content]        Add a document (content from args or stdin)
  ragchat addfile [flags] <path>       Add a file (.pdf, .docx, .xlsx or text)
  ragchat search [flags] <query>       Search the collection
  ragchat info [flags]                 Show collection information and disk usage
  ragchat delete [flags] <id>          Delete a document and its chunks
  ragchat init [flags]                 Write a default config file
  ragchat version                      Show version
  ragchat help                         Show this help

Common Flags:
  -config string    Config file path (default: config.yaml)
  -debug            Enable debug logging

Add Flags:
  -title string     Document title
  -source string    Document source

Search Flags:
  -n int            Number of results (default from config)
  -max-chars int    Context budget in characters (default from config)
  -keyword          Keyword search instead of semantic search
  -output string    Output format: text or json (default: text)

Serve Flags:
  -no-watch         Do not watch watch.directories

Examples:
  ragchat init
  ragchat addfile -title "Handbook" handbook.pdf
  echo "Photosynthesis converts sunlight." | ragchat add -title Biology
  ragchat search photosynthesis -n 3
  ragchat search -output json "chemical energy"
  ragchat chat`)
}
