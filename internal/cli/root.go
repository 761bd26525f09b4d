package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/clusterkit/topoviz/pkg/buildinfo"
	"github.com/clusterkit/topoviz/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "topoviz"

// ErrSilent signals a failure that was already reported (or must not be
// reported) by this rank; main exits non-zero without printing anything.
// Non-coordinating ranks use it so that launch diagnostics appear exactly
// once per job.
var ErrSilent = errors.New("silent failure")

// Execute runs the topoviz CLI and returns an error if any command fails.
//
// The root command wires up all subcommands (dump, render, inspect, cache,
// completion), configures logging based on the --verbose flag, and attaches
// the logger to the command context.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "topoviz dumps and visualizes GPU interconnect topology",
		Long:         `topoviz is a debugging toolkit for GPU clusters: it triggers an interconnect topology dump from a distributed launch and renders the resulting XML document as a diagram.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		// main reports errors itself; cobra must stay quiet so that
		// ErrSilent exits without output.
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newDumpCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(ctx)
}

// newRenderCache selects the artifact cache for a render invocation.
// Any problem setting up the on-disk cache silently degrades to no caching.
func newRenderCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	c, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return c
}

// cacheDir returns the cache directory using the XDG standard
// (~/.cache/topoviz/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
