// Package cli implements the smartnotes command line.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"smartnotes/internal/app"
)

// BuildInfo is set at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
}

// Execute runs the root command. SIGINT and SIGTERM cancel ctx.
func Execute(ctx context.Context, info BuildInfo) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd(info, app.New).ExecuteContext(ctx)
}

// appFactory builds the application; tests replace it.
type appFactory func() (*app.App, error)

func newRootCmd(info BuildInfo, newApp appFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "smartnotes",
		Short:         "Note-taking service with AI summaries and tags",
		Version:       fmt.Sprintf("%s (%s)", info.Version, info.Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(newApp),
		newMigrateCmd(newApp),
		newPruneCmd(newApp),
		newVersionCmd(info),
	)
	return root
}

// withApp builds the application, runs fn and flushes logs.
func withApp(newApp appFactory, fn func(a *app.App) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newServeCmd(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, background AI workers and housekeeping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(newApp, func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newPruneCmd(newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired regeneration history and resolved AI error logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(newApp, func(a *app.App) error {
				return a.Prune(cmd.Context())
			})
		},
	}
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smartnotes %s (%s)\n", info.Version, info.Commit)
		},
	}
}
