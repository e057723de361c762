// Package cli implements the sheetfeed command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/auth"
)

// Options customise how the root command builds its dependencies.
type Options struct {
	// Provider overrides the key-file credentials.
	Provider sheetfeed.TokenProvider
	// HTTPClient overrides the client built from the configuration.
	HTTPClient *http.Client
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	opts   Options
	envDir string
	cfg    *Config
	logger *zap.Logger
	svc    *sheetfeed.Service
}

// NewRootCommand assembles the command tree
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "sheetfeed",
		Short: "Read and write spreadsheets through the feed service",
		Long: `sheetfeed lists spreadsheets and worksheets, queries rows, performs
conditional row updates and bulk cell uploads, and copies worksheets to and
from .xlsx workbooks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.envDir, "env-dir", ".", "directory holding an optional .env file")

	root.AddCommand(
		a.spreadsheetsCmd(),
		a.worksheetsCmd(),
		a.addWorksheetCmd(),
		a.rowsCmd(),
		a.addRowCmd(),
		a.setRowCmd(),
		a.setColumnsCmd(),
		a.exportCmd(),
		a.importCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := LoadConfig(a.envDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	provider := a.opts.Provider
	if provider == nil {
		provider, err = auth.FromJSONKeyFile(ctx, cfg.Auth.KeyFile)
		if err != nil {
			return err
		}
	}

	client := a.opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.Feed.TimeoutSeconds) * time.Second}
	}

	a.cfg = cfg
	a.logger = logger
	a.svc = sheetfeed.New(provider, &sheetfeed.Config{
		ApplicationName: cfg.Feed.ApplicationName,
		BaseURL:         cfg.Feed.BaseURL,
		HTTPClient:      client,
		Logger:          logger,
		MaxBatchRetries: cfg.Feed.MaxBatchRetries,
	})
	return nil
}

// Execute runs the command line tool and exits non-zero on failure.
func Execute() {
	root := NewRootCommand(Options{})
	if err := root.ExecuteContext(context.Background()); err != nil {
		logger, logErr := NewLogger(LogConfig{Level: "debug", Format: "console"})
		if logErr == nil {
			logger.Error("command failed", zap.Error(err))
			_ = logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
