// Package main is the codelens CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/codelens/internal/cli"
	"github.com/hyperjump/codelens/internal/config"
	"github.com/hyperjump/codelens/internal/indexer"
	"github.com/hyperjump/codelens/internal/models"
	"github.com/hyperjump/codelens/internal/server"
	"github.com/hyperjump/codelens/internal/storage"
	"github.com/hyperjump/codelens/internal/watcher"
	"github.com/hyperjump/codelens/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/codelens/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
}

// loadConfig resolves the config file. An explicit --config must exist. Otherwise
// config.yaml in the current directory wins over the system default, and with neither
// present the built-in defaults are used. Returns the path actually loaded ("" for defaults).
func loadConfig(opts *rootOptions, explicit bool) (*config.Config, string, error) {
	if explicit {
		cfg, err := config.Load(opts.configPath)
		return cfg, opts.configPath, err
	}
	candidates := []string{opts.configPath}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append([]string{filepath.Join(cwd, "config.yaml")}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			return cfg, path, err
		}
	}
	cfg, err := config.Default()
	return cfg, "", err
}

// setup loads config and logger for a command.
func setup(cmd *cobra.Command, opts *rootOptions) (*config.Config, string, *zap.Logger, error) {
	cfg, path, err := loadConfig(opts, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.debug {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", cfg.Debug))
	return cfg, path, logger, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "codelens",
		Short:         "Hybrid keyword and semantic search over Java code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServerCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newStatusCmd(opts),
		newReposCmd(opts),
		newDeleteCmd(opts),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codelens version %s\n", version)
		},
	}
}

// rebuildRoot returns the watcher callback: reindex a known root, or index it as a new repository.
func rebuildRoot(ctx context.Context, idx *indexer.Indexer, logger *zap.Logger) func(root string) {
	return func(root string) {
		report, err := idx.ReindexRoot(ctx, root)
		if errors.Is(err, storage.ErrNotFound) {
			report, err = idx.IndexRepository(ctx, &models.RepositoryInput{Name: filepath.Base(root), Root: root})
		}
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("watch rebuild failed", zap.String("root", root), zap.Error(err))
			}
			return
		}
		logger.Info("watch rebuild complete",
			zap.String("root", root),
			zap.Int64("repo_id", report.Repository.ID),
			zap.Int("chunks", report.Chunks))
	}
}

func newServerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, configPath, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			comps, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var watch server.WatchService
			if cfg.Watch.Enabled {
				w := watcher.NewWatcher(
					cfg.Watch.Directories,
					comps.Indexer.Extensions(),
					rebuildRoot(ctx, comps.Indexer, logger),
					watcher.WithLogger(logger),
					watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
				)
				if err := w.Start(ctx); err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer w.Stop()
				// Catch up on changes made while nothing was watching.
				go w.RebuildAll()
				watch = w
			}

			srv := server.NewServer(comps.Engine, comps.Indexer, comps.Storage, comps.Vectors, cfg, logger, watch, configPath)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Warn("server shutdown failed", zap.Error(err))
			}
			if err := comps.Vectors.SaveAll(); err != nil {
				logger.Warn("vector index save failed", zap.Error(err))
			}
			return nil
		},
	}
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var name, description, archive, output string
	cmd := &cobra.Command{
		Use:   "index [flags] <directory>",
		Short: "Index a source directory, or a zip archive with --archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			if archive == "" && len(args) == 0 {
				return errors.New("a directory or --archive is required")
			}
			if archive != "" && len(args) > 0 {
				return errors.New("give either a directory or --archive, not both")
			}
			cfg, _, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			comps, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			ctx := cmd.Context()
			var report *models.IndexReport
			if archive != "" {
				if name == "" {
					name = strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))
				}
				report, err = comps.Indexer.IndexArchive(ctx, name, description, archive)
			} else {
				report, err = comps.Indexer.IndexRepository(ctx, &models.RepositoryInput{
					Name:        name,
					Description: description,
					Root:        args[0],
				})
			}
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
			return cli.WriteIndexReport(cmd.OutOrStdout(), report, format)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "repository name (default: directory or archive name)")
	cmd.Flags().StringVar(&description, "description", "", "repository description")
	cmd.Flags().StringVar(&archive, "archive", "", "zip archive to index instead of a directory")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		repoID          int64
		limit           int
		minScore        float64
		keywordWeight   float64
		semanticWeight  float64
		keywordEnabled  bool
		semanticEnabled bool
		serverURL       string
		output          string
	)
	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search a repository",
		Long: `Search a repository with keyword, semantic, or hybrid retrieval.

The query is all remaining arguments joined by spaces. Results from both
retrievers are fused into one ranked list.
  --keyword=false   semantic-only search
  --semantic=false  keyword-only search
  --server ""       search the local indices directly (no server running)`,
		Example: `  codelens search --repo 1 find customer by id
  codelens search --repo 1 --semantic=false saveCustomer
  codelens search --repo 1 -o json "parse invoice"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			query := &models.SearchQuery{
				Query:           buildSearchQuery(args),
				RepositoryID:    repoID,
				Limit:           limit,
				MinScore:        minScore,
				KeywordEnabled:  keywordEnabled,
				SemanticEnabled: semanticEnabled,
				KeywordWeight:   keywordWeight,
				SemanticWeight:  semanticWeight,
			}
			if !keywordEnabled && !semanticEnabled {
				return errors.New("at least one of --keyword and --semantic must be enabled")
			}

			var response *models.SearchResponse
			if serverURL != "" {
				response, err = newAPIClient(serverURL).Search(query)
			} else {
				response, err = searchDirect(cmd, opts, query)
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
		},
	}
	cmd.Flags().Int64VarP(&repoID, "repo", "r", 0, "repository id to search (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of results (default from config)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop results with a fused score below this")
	cmd.Flags().Float64Var(&keywordWeight, "keyword-weight", 0, "keyword weight in fusion (default from config)")
	cmd.Flags().Float64Var(&semanticWeight, "semantic-weight", 0, "semantic weight in fusion (default from config)")
	cmd.Flags().BoolVar(&keywordEnabled, "keyword", true, "enable keyword search")
	cmd.Flags().BoolVar(&semanticEnabled, "semantic", true, "enable semantic search")
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, `server URL (empty = use the local indices directly)`)
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func searchDirect(cmd *cobra.Command, opts *rootOptions, query *models.SearchQuery) (*models.SearchResponse, error) {
	cfg, _, logger, err := setup(cmd, opts)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer comps.Close()
	return comps.Engine.Search(cmd.Context(), query)
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show repository, chunk and index counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			var status map[string]interface{}
			if serverURL != "" {
				status, err = newAPIClient(serverURL).Status()
			} else {
				status, err = statusDirect(cmd, opts)
			}
			if err != nil {
				return fmt.Errorf("status failed: %w", err)
			}
			return writeStatus(cmd, status, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "server URL (empty = read the local indices directly)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func statusDirect(cmd *cobra.Command, opts *rootOptions) (map[string]interface{}, error) {
	cfg, _, logger, err := setup(cmd, opts)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer comps.Close()

	ctx := cmd.Context()
	repos, err := comps.Storage.CountRepositories(ctx)
	if err != nil {
		return nil, err
	}
	files, err := comps.Storage.CountFiles(ctx, 0)
	if err != nil {
		return nil, err
	}
	chunks, err := comps.Storage.CountChunks(ctx, 0)
	if err != nil {
		return nil, err
	}
	status := map[string]interface{}{
		"repositories": repos,
		"files":        files,
		"chunks":       chunks,
		"config": map[string]interface{}{
			"vector_index_type":    comps.Vectors.Type(),
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"database_path":        cfg.Storage.DatabasePath,
			"bleve_index_path":     cfg.Storage.BleveIndexPath,
			"vector_index_path":    cfg.Storage.VectorIndexPath,
		},
	}
	if usage, err := storage.MeasureDiskUsage(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath); err == nil {
		status["disk_usage_bytes"] = usage.Total
	}
	return status, nil
}

func writeStatus(cmd *cobra.Command, status map[string]interface{}, format cli.OutputFormat) error {
	w := cmd.OutOrStdout()
	if format == cli.OutputJSON {
		return writeJSON(w, status)
	}
	for _, key := range []string{"repositories", "files", "chunks", "loaded_vectors"} {
		if v, ok := status[key]; ok {
			fmt.Fprintf(w, "%-22s %v\n", key+":", v)
		}
	}
	if v, ok := status["disk_usage_bytes"]; ok {
		if n, ok := toInt64(v); ok {
			fmt.Fprintf(w, "%-22s %s\n", "disk_usage:", cli.FormatBytes(n))
		}
	}
	if cfg, ok := status["config"].(map[string]interface{}); ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range []string{"vector_index_type", "embedding_provider", "embedding_dimensions", "database_path", "bleve_index_path", "vector_index_path"} {
			if v, ok := cfg[key]; ok && v != "" {
				fmt.Fprintf(w, "%-22s %v\n", key+":", v)
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// toInt64 accepts the integer types of a direct status and the float64 of decoded JSON.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func newReposCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List indexed repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, _, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			comps, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			ctx := cmd.Context()
			repos, err := comps.Storage.ListRepositories(ctx)
			if err != nil {
				return err
			}
			stats := make([]cli.RepositoryStats, 0, len(repos))
			for _, r := range repos {
				files, err := comps.Storage.CountFiles(ctx, r.ID)
				if err != nil {
					return err
				}
				chunks, err := comps.Storage.CountChunks(ctx, r.ID)
				if err != nil {
					return err
				}
				stats = append(stats, cli.RepositoryStats{Repository: r, Files: files, Chunks: chunks})
			}
			return cli.WriteRepositories(cmd.OutOrStdout(), stats, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <repo-id>",
		Short: "Delete a repository and its indices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid repository id %q", args[0])
			}
			cfg, _, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			comps, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()
			if err := comps.Indexer.DeleteRepository(cmd.Context(), id); err != nil {
				return fmt.Errorf("deletion failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Repository deleted: %d\n", id)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage directories watched by a running server",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "server URL")

	var noRebuild bool
	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Watch a directory and index it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := newAPIClient(serverURL).WatchAdd(path, !noRebuild); err != nil {
				return fmt.Errorf("add failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", path)
			return nil
		},
	}
	add.Flags().BoolVar(&noRebuild, "no-rebuild", false, "do not index the directory right away")

	remove := &cobra.Command{
		Use:   "remove <path>",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := newAPIClient(serverURL).WatchRemove(path); err != nil {
				return fmt.Errorf("remove failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", path)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List watched directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dirs, err := newAPIClient(serverURL).WatchList()
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			for _, d := range dirs {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
	cmd.AddCommand(add, remove, list)
	return cmd
}
