package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/canvasmirror/internal/config"
)

//go:embed templates/canvasmirror.yaml
var configTemplate embed.FS

// configFileName is the credentials file looked up in the working directory.
const configFileName = config.AppName + ".yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a canvasmirror credentials file",
		Long: `Initialize creates a credentials file holding the Canvas URL and API token.

By default the file is written to canvasmirror.yaml in the current directory.
With --global it is written to config.yaml in the XDG config directory, which
is used from any working directory.

Examples:
  # Create canvasmirror.yaml in current directory
  canvasmirror init

  # Create the per-user credentials file
  canvasmirror init --global

  # Create credentials at a specific path
  canvasmirror init -o school.yaml

  # Force overwrite existing file
  canvasmirror init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the credentials")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing credentials file")
	cmd.Flags().BoolP("global", "g", false,
		"Write to the XDG config directory instead of --output")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return err
	}
	if global {
		outputPath = filepath.Join(config.XDGConfigDir(), "config.yaml")
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("credentials file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/canvasmirror.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file holds an API token.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created credentials file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file and set:")
	fmt.Fprintln(out, "  - canvas_url: the base URL of your Canvas instance")
	fmt.Fprintln(out, "  - canvas_token: an API access token from your Canvas account settings")

	return nil
}
