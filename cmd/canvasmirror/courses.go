package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/canvasmirror/internal/config"
	"github.com/nao1215/canvasmirror/internal/crawler"
	"github.com/nao1215/canvasmirror/internal/model"
)

// NewCoursesCmd creates the courses command.
func NewCoursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List your enrolled courses grouped by term",
		Long: `Courses lists the courses of the authenticated user, grouped by enrollment
term. Use the term IDs with "sync -t" and the course codes with "sync -c".

Examples:
  # List courses by term
  canvasmirror courses

  # Also show course names
  canvasmirror courses --names`,
		Args: cobra.NoArgs,
		RunE: runCoursesCmd,
	}

	cmd.Flags().String("config", "",
		"Credentials file path (default: canvasmirror.{toml,yaml,yml} or the XDG config directory)")
	cmd.Flags().String("proxy", "",
		"Route all requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("names", false,
		"List one course per line with its name")

	return cmd
}

// runCoursesCmd executes the courses command.
func runCoursesCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return err
	}
	names, err := cmd.Flags().GetBool("names")
	if err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.ResolveCredentials(config.DefaultEnvFile); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	ctx, cancel := signalContext(logger)
	defer cancel()

	client, err := newCanvasClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	courses, err := crawler.FetchCourses(ctx, client, cfg.CanvasURL)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(courses) == 0 {
		fmt.Fprintln(out, "No enrolled courses found.")
		return nil
	}
	if names {
		printCourseNames(out, courses)
		return nil
	}
	printCoursesByTerm(out, courses)
	return nil
}

// printCoursesByTerm prints one line per term with the codes of its courses.
func printCoursesByTerm(w io.Writer, courses []model.Course) {
	fmt.Fprintf(w, "%-10s| %s\n", "Term IDs", "Courses")
	for _, g := range crawler.GroupByTerm(courses) {
		codes := make([]string, 0, len(g.Courses))
		for _, c := range g.Courses {
			codes = append(codes, strconv.Quote(c.CourseCode))
		}
		fmt.Fprintf(w, "%-10d| [%s]\n", g.TermID, strings.Join(codes, ", "))
	}
}

// printCourseNames prints one line per course under a header per term.
func printCourseNames(w io.Writer, courses []model.Course) {
	for i, g := range crawler.GroupByTerm(courses) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Term %d:\n", g.TermID)
		for _, c := range g.Courses {
			fmt.Fprintf(w, "  %-12s %s\n", c.CourseCode, c.Name)
		}
	}
}
