// Package main is the Tanya CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/tanya/config.yaml"
	defaultServerURL  = "http://localhost:3000"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	serverURL  string
	output     string
	debug      bool
}

func (o *rootOptions) format() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(o.output)
}

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory takes precedence (for development), and a missing default file
// yields the built-in defaults. Returns the config and the path that was loaded
// ("" for built-in defaults).
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
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			cfg := config.Default()
			if err := config.Validate(cfg); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "tanya",
		Short: "Ask questions about your PDFs",
		Long: `Tanya ingests PDF documents into namespaces and answers questions grounded in them,
either within one namespace or across all of them.

Examples:
  # Start the HTTP API (and the inbox watcher when ingest.inbox_dir is set)
  tanya server

  # Ingest documents into a namespace
  tanya ingest -n hr handbook.pdf policies/

  # Ask within a namespace, or across all namespaces
  tanya ask -n hr "How many vacation days do I get?"
  tanya ask --global "Which documents mention remote work?"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is normal; keys may come from the real environment.
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", defaultServerURL, `server URL (empty = open storage directly; stop the server first when using the bolt store)`)
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServerCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newNamespacesCmd(opts),
		newHistoryCmd(opts),
		newStatusCmd(opts),
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
