// Package main is the elastipass CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/elastipass/internal/audit"
	"github.com/hyperjump/elastipass/internal/cli"
	"github.com/hyperjump/elastipass/internal/config"
	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/query"
	"github.com/hyperjump/elastipass/internal/server"
	"github.com/hyperjump/elastipass/internal/watcher"
	"github.com/hyperjump/elastipass/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/elastipass/config.yaml"
	defaultServerURL  = "http://localhost:12345"
	watchAdminPath    = "/admin/watch/directories"
)

// loadConfig loads config from path. When path is the default and it does not exist,
// config.yaml in the current directory is tried, then built-in defaults.
// Returns the config and the path that was loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cfg, err := config.Default()
			return cfg, "", err
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
	switch command := os.Args[1]; command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "logs":
		runLogs()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("elastipass version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustSetup loads the config and creates the logger, exiting on failure.
func mustSetup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger, bool) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger, debugMode
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, dump loading, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, debugMode := mustSetup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc server.WatchService
	opts := []server.Option{
		server.WithRequestTimeout(cfg.Engine.EngineTimeout() + 10*time.Second),
	}
	if components.Loader != nil {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			loadFunc(components.Loader, logger),
			watchOpts...,
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		go w.SyncExistingFiles()
		watchSvc = w
		opts = append(opts, server.WithDocCounter(components.Bleve))
	}
	if paths := dataPaths(cfg); len(paths) > 0 {
		opts = append(opts, server.WithDataPaths(paths))
	}

	srv := server.NewServer(components.Gateway, &cfg.Server, logger, watchSvc, resolvedConfigPath, cfg, opts...)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// dataPaths names the local files the configured backend and sink write to.
func dataPaths(cfg *config.Config) map[string]string {
	paths := map[string]string{}
	if cfg.Engine.Backend == config.BackendBleve {
		paths["bleve_index"] = cfg.Engine.BleveIndexPath
	}
	if cfg.Audit.Sink == config.SinkSQLite {
		paths["audit_db"] = cfg.Audit.DatabasePath
	}
	return paths
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: elastipass search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  elastipass search alice@example.com
  elastipass search -kind default alice               # email and username
  elastipass search -kind wildcard -field username 'ali*'
  elastipass search -page 2 -limit 50 -output json alice
  elastipass search -server "" alice                  # query the engine directly
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them.
func searchArgsReorder(args []string) []string {
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

// searchParamFlags are the flags forwarded to the search API under the same name.
var searchParamFlags = map[string]string{
	"kind":     "kind",
	"field":    "field",
	"limit":    "limit",
	"offset":   "offset",
	"page":     "page",
	"index":    "index",
	"doc-type": "doc_type",
	"nolog":    "nolog",
}

// searchParams returns the request parameters for q plus every search flag explicitly set.
func searchParams(fs *flag.FlagSet, q string) url.Values {
	params := url.Values{"q": {q}}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := searchParamFlags[f.Name]; ok {
			params.Set(key, f.Value.String())
		}
	})
	return params
}

// kindList names the query kinds the search API accepts.
func kindList() string {
	names := make([]string, 0, len(query.Kinds()))
	for _, k := range query.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// checkKind rejects a -kind value before any request is made.
func checkKind(s string) error {
	if slices.Contains(query.Kinds(), models.Kind(s)) {
		return nil
	}
	return fmt.Errorf("unknown -kind %q (want one of %s)", s, kindList())
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = query the engine directly)")
	kind := fs.String("kind", string(models.DefaultKind), "query kind: "+kindList())
	fs.String("field", models.DefaultField, "field to search")
	fs.Int("limit", models.DefaultLimit, "number of results")
	fs.Int("offset", 0, "number of results to skip")
	fs.Int("page", 1, "page number (uses -limit as page size)")
	fs.String("index", "", "index pattern (default from server config)")
	fs.String("doc-type", "", "document type (default from server config)")
	fs.Bool("nolog", false, "do not record this search")
	outputFormat := fs.String("output", "text", "output format: text, compact (one JSON record per line), or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	q := buildSearchQuery(fs.Args())
	if q == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := checkKind(*kind); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	params := searchParams(fs, q)

	var response *models.Response
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, params)
	} else {
		response, err = searchDirect(*configPath, params)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchDirect(configPath string, params url.Values) (*models.Response, error) {
	cfg, _, logger, debugMode := mustSetup(configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	raw := make(map[string]any, len(params))
	for k := range params {
		raw[k] = params.Get(k)
	}
	return components.Gateway.Search(context.Background(), raw)
}

func searchViaHTTP(serverURL string, params url.Values) (*models.Response, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: elastipass index [flags] <file|dir|-> ...")
		os.Exit(1)
	}

	cfg, _, logger, debugMode := mustSetup(*configPath, *debug)
	defer logger.Sync()
	if cfg.Engine.Backend != config.BackendBleve {
		fmt.Fprintf(os.Stderr, "index requires engine.backend %q (got %q)\n", config.BackendBleve, cfg.Engine.Backend)
		os.Exit(1)
	}
	// Loading never records searches; skip opening the audit sink.
	cfg.Audit.Sink = config.SinkNone
	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	total := 0
	for _, arg := range fs.Args() {
		n, err := loadPath(ctx, components, arg)
		total += n
		if err != nil {
			fmt.Fprintf(os.Stderr, "Indexing %s failed: %v\n", arg, err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d accounts\n", arg, n)
	}
	count, _ := components.Bleve.DocCount()
	fmt.Printf("Indexed %d accounts (index holds %d)\n", total, count)
}

func loadPath(ctx context.Context, c *Components, arg string) (int, error) {
	if arg == "-" {
		return c.Loader.LoadReader(ctx, os.Stdin)
	}
	info, err := os.Stat(arg)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return c.Loader.LoadDirectory(ctx, arg)
	}
	return c.Loader.LoadFile(ctx, arg)
}

func runLogs() {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of records")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Audit.Sink != config.SinkSQLite {
		fmt.Fprintf(os.Stderr, "logs reads the %q audit sink; configured sink is %q\n", config.SinkSQLite, cfg.Audit.Sink)
		os.Exit(1)
	}
	records, total, err := recentSearches(context.Background(), cfg.Audit.DatabasePath, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reading audit log failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAuditRecords(os.Stdout, records, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputText {
		fmt.Printf("\nShowing %d of %d recorded searches\n", len(records), total)
	}
}

// recentSearches returns the newest records and the total number stored.
func recentSearches(ctx context.Context, dbPath string, limit int) ([]*models.AuditRecord, int64, error) {
	sink, err := audit.NewSQLiteSink(dbPath)
	if err != nil {
		return nil, 0, err
	}
	defer sink.Close()
	records, err := sink.Recent(ctx, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := sink.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: elastipass watch <add|remove|list> [path]")
		fmt.Println("  elastipass watch add <path>     Watch a dump directory")
		fmt.Println("  elastipass watch remove <path>  Stop watching a dump directory")
		fmt.Println("  elastipass watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not load dumps already in the directory (add only)")
	_ = fs.Parse(os.Args[3:])
	endpoint := strings.TrimRight(*serverURL, "/") + watchAdminPath

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: elastipass watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]any{"path": path, "sync": !*noSync})
		resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
		exitOnStatus("Add", resp, err, http.StatusCreated)
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: elastipass watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		exitOnStatus("Remove", resp, err, http.StatusOK)
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(endpoint)
		exitOnStatus("List", resp, err, http.StatusOK)
		defer resp.Body.Close()
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func exitOnStatus(action string, resp *http.Response, err error, want int) {
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		fmt.Printf("%s failed (%d): %s\n", action, resp.StatusCode, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`elastipass - HTTP search front end for account indexes

Usage:
  elastipass server [flags]             Start the HTTP server
  elastipass search [flags] <query>     Search accounts
  elastipass index [flags] <path|->...  Load JSON/JSONL account dumps (bleve backend)
  elastipass logs [flags]               Show recent searches (sqlite audit sink)
  elastipass watch <add|remove|list>    Manage watched dump directories
  elastipass version                    Show version
  elastipass help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/elastipass/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:12345). Use --server "" to query the engine directly.
  --kind string      term, match, fuzzy, regexp, wildcard or default (default: term)
  --field string     Field to search (default: email.raw)
  --limit int        Number of results (default: 20)
  --offset int       Results to skip
  --page int         Page number; pages other than 1 are not recorded
  --nolog            Do not record this search
  --output string    text, compact or json (default: text)

Index Flags:
  --config string    Config file path. Stop the server first; the index is locked while it runs.

Logs Flags:
  --limit int        Number of records (default: 20)
  --output string    text, compact or json (default: text)

Environment:
  ELASTIPASS_* variables override the config file, e.g. ELASTIPASS_ENGINE_BACKEND=bleve.

Examples:
  elastipass server
  elastipass search alice@example.com
  elastipass search -kind default -output json alice
  elastipass index dumps/
  elastipass logs -limit 50
  elastipass watch add /srv/dumps`)
}
