package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgcrawl/internal/config"
	"github.com/nao1215/imgcrawl/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "Show previous crawl runs",
		Long: `History lists crawl runs stored in the history database.

Without arguments every run is listed. With a host only that host's runs
are listed.

Examples:
  # List all runs
  imgcrawl history

  # List runs of one host
  imgcrawl history example.com

  # List images saved from a host across all runs
  imgcrawl history --images example.com

  # Print a stored report as Markdown
  imgcrawl history --id 3 --markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("id", 0, "Print the stored report of this run")
	cmd.Flags().Bool("hosts", false, "List hosts with stored runs")
	cmd.Flags().Bool("images", false, "List images saved from the given host")
	cmd.Flags().BoolP("json", "j", false, "Print the report as JSON (with --id)")
	cmd.Flags().BoolP("markdown", "m", false, "Print the report as Markdown (with --id)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	id, _ := flags.GetInt64("id")                  //nolint:errcheck // flag is registered above
	listHosts, _ := flags.GetBool("hosts")         //nolint:errcheck // flag is registered above
	listImages, _ := flags.GetBool("images")       //nolint:errcheck // flag is registered above
	jsonOutput, _ := flags.GetBool("json")         //nolint:errcheck // flag is registered above
	markdownOutput, _ := flags.GetBool("markdown") //nolint:errcheck // flag is registered above
	dbDir, _ := flags.GetString("db-dir")          //nolint:errcheck // flag is registered above

	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	host := ""
	if len(args) > 0 {
		host = strings.ToLower(args[0])
	}
	if listImages && host == "" {
		return errors.New("--images requires a host argument")
	}

	out := cmd.OutOrStdout()

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(out, "No crawl history found")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	switch {
	case id != 0:
		stored, err := db.GetReport(ctx, id)
		if err != nil {
			return err
		}
		cfg := config.NewConfig()
		cfg.JSONReport = jsonOutput
		cfg.MarkdownReport = markdownOutput
		_, err = newReportWriter(cfg, out, true).Write(stored)
		return err
	case listHosts:
		return printHosts(cmd, db, out)
	case listImages:
		return printImages(cmd, db, out, host)
	default:
		return printRuns(cmd, db, out, host)
	}
}

func printRuns(cmd *cobra.Command, db *database.HistoryDB, out io.Writer, host string) error {
	runs, err := db.ListRuns(cmd.Context(), host)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		if host != "" {
			fmt.Fprintf(out, "No crawl history found for %s\n", host)
		} else {
			fmt.Fprintln(out, "No crawl history found")
		}
		return nil
	}

	fmt.Fprintf(out, "Crawl history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-24s  %7s  %6s  %6s  %s\n",
		"ID", "Date", "Host", "Visited", "Images", "Failed", "Status")
	for _, run := range runs {
		status := "complete"
		if run.Interrupted {
			status = "interrupted"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-24s  %7d  %6d  %6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(run.Host, 24),
			run.Visited,
			run.ImagesSaved,
			run.FailedPages+run.FailedImages,
			status,
		)
	}
	return nil
}

func printHosts(cmd *cobra.Command, db *database.HistoryDB, out io.Writer) error {
	hosts, err := db.ListHosts(cmd.Context())
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No crawl history found")
		return nil
	}

	fmt.Fprintf(out, "Crawled hosts (%d):\n\n", len(hosts))
	for _, h := range hosts {
		fmt.Fprintf(out, "  • %s\n", h)
	}
	return nil
}

func printImages(cmd *cobra.Command, db *database.HistoryDB, out io.Writer, host string) error {
	images, err := db.ImagesForHost(cmd.Context(), host)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Fprintf(out, "No images saved from %s\n", host)
		return nil
	}

	fmt.Fprintf(out, "Images saved from %s (%d):\n\n", host, len(images))
	for _, img := range images {
		fmt.Fprintf(out, "  %s\n    -> %s (run %d)\n", img.URL, img.Path, img.RunID)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
