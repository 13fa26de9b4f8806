package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-studio/pkg/studio/collection"
	"github.com/tendant/simple-studio/pkg/studio/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "studio",
		Short: "Studio - markdown collections CLI",
		Long: `Studio reads collections of markdown and MDX documents from the local
filesystem or a remote backend (GitHub, S3, Postgres) and serves them as
typed, validated entries.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (environment only when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text, json")

	rootCmd.AddCommand(NewCollectionsCommand(opts))
	rootCmd.AddCommand(NewEntriesCommand(opts))
	rootCmd.AddCommand(NewShowCommand(opts))
	rootCmd.AddCommand(NewCommitCommand(opts))
	rootCmd.AddCommand(NewServeCommand(opts))

	return rootCmd
}

// load reads the configuration and applies the logging flags on top.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(cmd.ErrOrStderr()), nil
}

// openStudio builds and connects the configured studio. The returned close
// function disconnects it.
func (o *globalOptions) openStudio(ctx context.Context, cmd *cobra.Command) (*config.Config, *collection.Studio, *slog.Logger, func(), error) {
	cfg, logger, err := o.load(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	s, err := cfg.BuildStudio(ctx, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := connect(ctx, s, logger); err != nil {
		return nil, nil, nil, nil, err
	}
	closeFn := func() {
		if err := s.Disconnect(context.Background()); err != nil {
			logger.Warn("disconnect failed", "error", err)
		}
	}
	return cfg, s, logger, closeFn, nil
}

// connect connects s and, when that fails, disconnects whatever was already
// built so pools and clients are not left open.
func connect(ctx context.Context, s *collection.Studio, logger *slog.Logger) error {
	if err := s.Connect(ctx); err != nil {
		if derr := s.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			logger.Warn("disconnect after failed connect", "error", derr)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}
