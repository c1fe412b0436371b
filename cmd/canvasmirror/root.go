package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for canvasmirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canvasmirror",
		Short: "Mirror Canvas LMS courses to a local directory",
		Long: `canvasmirror downloads the files, assignments, submissions, discussions,
announcements, pages, modules and syllabi of your Canvas LMS courses into a
local directory tree, one directory per course.

Runs are incremental: files already present locally are skipped, and files
whose remote copy is newer are replaced only with --download-newer.

Credentials are read from canvasmirror.{toml,yaml,yml} in the current
directory or config.{toml,yaml,yml} in the XDG config directory, and can be
overridden by CANVAS_URL and CANVAS_TOKEN (also read from .env).
Run "canvasmirror init" to create a credentials file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewCoursesCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
