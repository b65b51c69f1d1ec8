package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgcrawl/internal/log"
)

// NewRootCmd creates the root command for imgcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgcrawl",
		Short: "Recursive site crawler that downloads images",
		Long: `imgcrawl crawls a web site starting from a seed URL.

It follows links that stay on the seed's host, downloads every image the
pages reference and retries failed fetches a bounded number of times.
Images are saved under a file name derived from a digest of their URL.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Log warnings and errors only")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
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

// logFlags reads the persistent logging flags.
func logFlags(cmd *cobra.Command) (verbose, quiet, jsonLogs bool) {
	flags := cmd.Flags()
	verbose, _ = flags.GetBool("verbose")   //nolint:errcheck // flag is registered on root
	quiet, _ = flags.GetBool("quiet")       //nolint:errcheck // flag is registered on root
	jsonLogs, _ = flags.GetBool("log-json") //nolint:errcheck // flag is registered on root
	return verbose, quiet, jsonLogs
}

// newLogger builds the redacting logger selected by the logging flags.
func newLogger(w io.Writer, verbose, quiet, jsonLogs bool) *slog.Logger {
	return log.NewLogger(w, log.Options{
		Level: log.LevelFor(verbose, quiet),
		JSON:  jsonLogs,
	})
}
