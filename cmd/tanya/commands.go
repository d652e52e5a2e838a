package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/server"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// setup loads the config and builds a logger honoring --debug.
func setup(opts *rootOptions) (*config.Config, string, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || opts.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, resolved, logger, nil
}

// withComponents runs fn against locally opened storage.
func withComponents(opts *rootOptions, withGenerator bool, fn func(ctx context.Context, cfg *config.Config, c *Components) error) error {
	cfg, _, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if !opts.debug && !cfg.Debug {
		// Keep one-shot command output clean.
		logger = zap.NewNop()
	}
	c, err := initializeComponents(cfg, logger, withGenerator)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(context.Background(), cfg, c)
}

func newServerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts)
		},
	}
}

func runServer(opts *rootOptions) error {
	cfg, resolved, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", cfg.Debug || opts.debug),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if inbox := newInbox(cfg, components.Indexer, logger); inbox != nil {
		if err := inbox.Start(ctx, true); err != nil {
			return fmt.Errorf("failed to start inbox watcher: %w", err)
		}
		defer inbox.Stop()
	}

	srv := server.NewServer(components.Engine, components.Indexer, components.Conversations, components.Metrics, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:   "ingest -n <namespace> <file-or-directory>...",
		Short: "Ingest documents into a namespace",
		Long: `Ingest PDF files into a namespace. Directories are walked recursively and every
file matching ingest.extensions is included. Files that cannot be processed are
reported as skipped; the command fails only if nothing was stored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			if opts.serverURL != "" {
				cfg, _, err := loadConfig(opts.configPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				files, err := collectFiles(args, cfg.Ingest.Extensions)
				if err != nil {
					return err
				}
				res, err := uploadInBatches(newAPIClient(opts.serverURL), namespace, files, cfg.Ingest.MaxFiles)
				if err != nil {
					return err
				}
				return cli.WriteIngestResult(cmd.OutOrStdout(), res, format)
			}
			return withComponents(opts, false, func(ctx context.Context, cfg *config.Config, c *Components) error {
				res, err := c.Indexer.IngestPaths(ctx, namespace, args, cfg.Ingest.Extensions)
				if res != nil {
					if werr := cli.WriteIngestResult(cmd.OutOrStdout(), res, format); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "target namespace (required)")
	_ = cmd.MarkFlagRequired("namespace")
	return cmd
}

// collectFiles expands directories into the files under them matching extensions.
// Files named explicitly are always included.
func collectFiles(paths []string, extensions []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if hasExtension(path, extensions) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no matching files found")
	}
	return files, nil
}

func hasExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// uploadInBatches splits files into uploads of at most maxFiles and merges the results.
func uploadInBatches(client *apiClient, namespace string, files []string, maxFiles int) (*models.IngestResult, error) {
	if maxFiles <= 0 {
		maxFiles = len(files)
	}
	start := time.Now()
	merged := &models.IngestResult{Namespace: namespace, Stored: []models.FileResult{}, Skipped: []models.FileResult{}}
	for i := 0; i < len(files); i += maxFiles {
		end := min(i+maxFiles, len(files))
		res, err := client.Upload(namespace, files[i:end])
		if err != nil {
			return nil, err
		}
		merged.Stored = append(merged.Stored, res.Stored...)
		merged.Skipped = append(merged.Skipped, res.Skipped...)
	}
	merged.Duration = time.Since(start)
	return merged, nil
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		namespace string
		global    bool
	)
	cmd := &cobra.Command{
		Use:   "ask [-n <namespace> | --global] <question>",
		Short: "Ask a question about ingested documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			q := &models.Question{Text: buildQuestion(args), Namespace: namespace}
			if global {
				q.Mode = models.ModeGlobal
			}
			if err := q.Validate(); err != nil {
				return err
			}
			var ans *models.Answer
			if opts.serverURL != "" {
				ans, err = newAPIClient(opts.serverURL).Ask(q)
			} else {
				err = withComponents(opts, true, func(ctx context.Context, _ *config.Config, c *Components) error {
					var aerr error
					ans, aerr = c.Engine.Answer(ctx, q)
					return aerr
				})
			}
			if err != nil {
				return err
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), ans, format)
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace to ask within")
	cmd.Flags().BoolVarP(&global, "global", "g", false, "ask across all namespaces")
	cmd.MarkFlagsMutuallyExclusive("namespace", "global")
	return cmd
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newNamespacesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"ns"},
		Short:   "List or delete namespaces",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List namespaces that hold documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			var names []string
			if opts.serverURL != "" {
				names, err = newAPIClient(opts.serverURL).Namespaces()
			} else {
				err = withComponents(opts, false, func(ctx context.Context, _ *config.Config, c *Components) error {
					var lerr error
					names, lerr = c.Engine.Namespaces(ctx)
					return lerr
				})
			}
			if err != nil {
				return err
			}
			return cli.WriteNamespaces(cmd.OutOrStdout(), names, format)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <namespace>",
		Short: "Delete every document in a namespace (conversation history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := args[0]
			var err error
			if opts.serverURL != "" {
				err = newAPIClient(opts.serverURL).DeleteNamespace(namespace)
			} else {
				err = withComponents(opts, false, func(ctx context.Context, _ *config.Config, c *Components) error {
					return c.Engine.DeleteNamespace(ctx, namespace)
				})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Namespace %s deleted.\n", namespace)
			return nil
		},
	})
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		namespace string
		global    bool
		maxWords  int
	)
	cmd := &cobra.Command{
		Use:   "history [-n <namespace> | --global]",
		Short: "Show the conversation history of a namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			if global {
				namespace = models.GlobalNamespace
			} else if err := models.ValidateNamespace(namespace); err != nil {
				return err
			}
			var turns []models.ConversationTurn
			if opts.serverURL != "" {
				turns, err = newAPIClient(opts.serverURL).History(namespace)
			} else {
				err = withComponents(opts, false, func(ctx context.Context, _ *config.Config, c *Components) error {
					var herr error
					turns, herr = c.Engine.History(ctx, namespace)
					return herr
				})
			}
			if err != nil {
				return err
			}
			return cli.WriteHistory(cmd.OutOrStdout(), namespace, turns, format, maxWords)
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace whose history to show")
	cmd.Flags().BoolVarP(&global, "global", "g", false, "show the global conversation")
	cmd.Flags().IntVar(&maxWords, "max-words", 60, "shorten messages to this many words in text output (0 = no limit)")
	cmd.MarkFlagsMutuallyExclusive("namespace", "global")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show storage and configuration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			var status map[string]any
			if opts.serverURL != "" {
				status, err = newAPIClient(opts.serverURL).Status()
			} else {
				err = withComponents(opts, false, func(ctx context.Context, cfg *config.Config, c *Components) error {
					var serr error
					status, serr = localStatus(ctx, cfg, c)
					return serr
				})
			}
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, format)
		},
	}
}

// localStatus reports the same figures as GET /status from directly opened storage.
func localStatus(ctx context.Context, cfg *config.Config, c *Components) (map[string]any, error) {
	names, err := c.Engine.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	turns, err := c.Conversations.CountTurns(ctx)
	if err != nil {
		return nil, err
	}
	status := map[string]any{
		"namespaces":         len(names),
		"conversation_turns": turns,
		"config": map[string]any{
			"vector_store_type":    cfg.Vector.Type,
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_model":      cfg.Embedding.Model,
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"generation_model":     cfg.Generation.Model,
			"chunk_size":           cfg.Retrieval.ChunkSize,
			"chunk_overlap":        cfg.Retrieval.ChunkOverlap,
			"database_path":        cfg.Storage.DatabasePath,
			"vector_path":          cfg.Storage.VectorPath,
		},
	}
	paths := []string{cfg.Storage.DatabasePath}
	if cfg.Vector.Type == "bolt" {
		paths = append(paths, cfg.Storage.VectorPath)
	}
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		status["disk_usage_bytes"] = n
	}
	return status, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tanya version %s\n", version)
		},
	}
}
