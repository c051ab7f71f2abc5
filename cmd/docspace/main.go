// Package main implements the docspace CLI against a docspaced HTTP server.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the persistent flags shared by every command.
type cli struct {
	serverURL string
	timeout   time.Duration
	json      bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "docspace",
		Short: "CLI for docspace workspaces and documents",
		Long: `docspace is a command-line interface for the docspaced HTTP server.
It manages workspaces, adds and uploads documents, embeds them and runs
semantic search.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.serverURL, "server", envOr("DOCSPACE_SERVER", "http://127.0.0.1:8420"), "docspaced server URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 60*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&c.json, "json", false, "print raw JSON")

	root.AddCommand(
		c.workspaceCmd(),
		c.docCmd(),
		c.searchCmd(),
		c.healthCmd(),
		c.statusCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
