package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-studio/pkg/studio"
	"github.com/tendant/simple-studio/pkg/studio/api"
	"github.com/tendant/simple-studio/pkg/studio/collection"
	"github.com/tendant/simple-studio/pkg/studio/secret"
)

const shutdownTimeout = 10 * time.Second

// NewCollectionsCommand creates the collections command
func NewCollectionsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List configured collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, _, closeFn, err := opts.openStudio(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSOURCE\tPATH\tASSETS")
			for _, name := range s.Names() {
				c, _ := s.Collection(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name(), c.Source(), c.Path(), c.AssetsPath())
			}
			return w.Flush()
		},
	}
}

func lookup(s *collection.Studio, name string) (collection.Handle, error) {
	c, ok := s.Collection(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", studio.ErrCollectionNotFound, name)
	}
	return c, nil
}

// NewEntriesCommand creates the entries command
func NewEntriesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <collection>",
		Short: "List the entries of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, _, closeFn, err := opts.openStudio(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			c, err := lookup(s, args[0])
			if err != nil {
				return err
			}
			docs, err := c.Documents(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tPATH\tREAD TIME\tISSUES")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.Slug(), d.Path(), d.ReadTime(), len(d.Issues()))
			}
			return w.Flush()
		},
	}
}

// NewShowCommand creates the show command
func NewShowCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <collection> <slug>",
		Short: "Print one entry",
		Long:  `Print one entry as a markdown document, or with --json as its fields, read time and content.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, _, closeFn, err := opts.openStudio(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			c, err := lookup(s, args[0])
			if err != nil {
				return err
			}
			doc, err := c.Document(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			if !asJSON {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), doc.String())
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"slug":      doc.Slug(),
				"path":      doc.Path(),
				"fields":    doc.Fields().Map(),
				"read_time": doc.ReadTime(),
				"content":   doc.Content(),
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of markdown")
	return cmd
}

// NewCommitCommand creates the commit command
func NewCommitCommand(opts *globalOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit pending changes of the remote adapter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, _, closeFn, err := opts.openStudio(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := s.Commit(cmd.Context(), message); err != nil {
				return fmt.Errorf("commit failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Committed.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve collections over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, s, logger, closeFn, err := opts.openStudio(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			routerOpts := api.RouterOptions{Logger: logger}
			if cfg.Server.JWTSecretEnv != "" {
				key, err := secret.FromEnv(cfg.Server.JWTSecretEnv)
				if err != nil {
					return err
				}
				routerOpts.AuthKey = key
			}
			router, err := api.NewRouter(s, routerOpts)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = cfg.Server.Addr
			}
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("studio server starting", "addr", addr, "collections", len(s.Names()), "auth", routerOpts.AuthKey != nil)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info("server exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
