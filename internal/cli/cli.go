// Package cli implements the keyline command-line interface.
//
// This package provides commands for opening projects from the remote
// entity store, inspecting template outlines, pushing locally cached
// edits, exporting scene trees as Graphviz diagrams, and running a local
// development store. The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - open: Load a project and show its layer/template outline
//   - outline: Print one template's scene tree
//   - save: Push the locally cached project state to the remote store
//   - export: Render a template's scene tree as DOT or SVG
//   - serve: Run a local development entity store
//   - cache: Manage the local project cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Example
//
//	import "github.com/keylinehq/keyline/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/keylinehq/keyline/pkg/buildinfo"
	"github.com/keylinehq/keyline/pkg/cache"
	"github.com/keylinehq/keyline/pkg/datasource"
	"github.com/keylinehq/keyline/pkg/engine"
	"github.com/keylinehq/keyline/pkg/remote"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "keyline"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config Config

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		Config: DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Keyline edits broadcast graphics templates from the terminal",
		Long:         `Keyline is a CLI for the Keyline scene and timeline engine: open projects from the entity store, inspect template outlines, push offline edits, and export scene trees as diagrams.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			ctx := withLogger(cmd.Context(), c.Logger)
			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config.toml (default ~/.config/keyline/config.toml)")

	root.AddCommand(c.openCommand())
	root.AddCommand(c.outlineCommand())
	root.AddCommand(c.saveCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Engine Factory
// =============================================================================

// newEngine wires an engine from the loaded configuration: HTTP entity
// store, optional data resolver, and the local project cache.
func (c *CLI) newEngine(ctx context.Context, noCache bool) (*engine.Engine, error) {
	opts := engine.Options{
		Store:  c.newStore(),
		Logger: c.Logger,
	}
	if c.Config.Data.BaseURL != "" {
		opts.Resolver = datasource.NewHTTPResolver(c.Config.Data.BaseURL,
			datasource.WithToken(c.Config.Data.Token))
	}
	if !noCache {
		backend, err := c.newCacheBackend(ctx)
		if err != nil {
			c.Logger.Warn("local cache unavailable", "err", err)
		} else {
			opts.Local = cache.NewProjectStore(backend)
		}
	}
	return engine.New(opts)
}

func (c *CLI) newStore() remote.Store {
	return remote.NewHTTPStore(c.Config.Remote.BaseURL,
		remote.WithToken(c.Config.Remote.Token))
}

// newProjectStore opens the local project cache without an engine, for
// commands that read or push cached snapshots directly.
func (c *CLI) newProjectStore(ctx context.Context) (*cache.ProjectStore, error) {
	backend, err := c.newCacheBackend(ctx)
	if err != nil {
		return nil, err
	}
	return cache.NewProjectStore(backend), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory: the configured one, or the XDG
// standard (~/.cache/keyline/).
func (c *CLI) cacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
