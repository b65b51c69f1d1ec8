package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgcrawl/internal/config"
	"github.com/nao1215/imgcrawl/internal/crawler"
	"github.com/nao1215/imgcrawl/internal/database"
	"github.com/nao1215/imgcrawl/internal/imagemeta"
	"github.com/nao1215/imgcrawl/internal/model"
	"github.com/nao1215/imgcrawl/internal/report"
	"github.com/nao1215/imgcrawl/internal/storage"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a site and download its images",
		Long: `Crawl fetches the seed page, follows every link that stays on the seed's
host and downloads every image the pages reference.

Images are written to the output directory as <digest of URL><extension>.
A page or image that fails is retried after a delay; after the last retry
it is recorded as failed and never fetched again in the same run.

Examples:
  # Crawl a site with default settings
  imgcrawl crawl https://example.com/

  # Fewer workers, longer delay between retries
  imgcrawl crawl --concurrency 4 --retry-delay 5s https://example.com/

  # Inspect EXIF metadata of saved images and write a Markdown report
  imgcrawl crawl --exif --markdown -o report.md https://example.com/

Configuration file (.imgcrawl) example:
  crawl:
    retries: 5
    retryDelay: 2s
  sites:
    example.com:
      cookie: "session=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("retries", "r", config.DefaultMaxRetries,
		"Retries after the first attempt of a page or image")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay,
		"Delay before a retry")
	cmd.Flags().String("backoff", config.DefaultBackoff,
		"Retry delay strategy: fixed or exponential")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of concurrent fetches")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout of a single fetch attempt")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")

	// Image flags
	cmd.Flags().StringP("output-dir", "d", config.DefaultOutputDir,
		"Directory images are saved to")
	cmd.Flags().String("digest", config.DefaultDigest,
		"Digest used to name image files: sha256 or sha3-256")
	cmd.Flags().Bool("exif", false,
		"Inspect EXIF metadata of saved images")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .imgcrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("no-db", false, "Do not save the run to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if _, err := crawler.NewScope(cfg.Seed); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.Quiet, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from the config file and cobra flags.
// Flags given on the command line override the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxRetries, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = flags.GetDuration("retry-delay"); err != nil {
		return nil, err
	}
	if cfg.Backoff, err = flags.GetString("backoff"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.Digest, err = flags.GetString("digest"); err != nil {
		return nil, err
	}
	if cfg.InspectEXIF, err = flags.GetBool("exif"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.Verbose, cfg.Quiet, cfg.LogJSON = logFlags(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit --config must exist; the implicit search may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file, flags.Changed)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	return cfg, nil
}

// newSpider wires the crawl engine from cfg.
func newSpider(cfg *config.Config, logger *slog.Logger, observer func(model.CrawlEvent)) (*crawler.Spider, error) {
	transportOpts := []crawler.TransportOption{
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithHeaderFunc(cfg.SiteConfigs.HeadersFor),
	}
	if cfg.ProxyAddress != "" {
		transportOpts = append(transportOpts, crawler.WithSOCKS5Proxy(cfg.ProxyAddress))
	}
	transport, err := crawler.NewHTTPTransport(transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	opts := []crawler.SpiderOption{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithMaxRetries(cfg.MaxRetries),
		crawler.WithRetryDelay(cfg.RetryDelay),
		crawler.WithBackoff(crawler.Backoff(cfg.Backoff)),
		crawler.WithAttemptTimeout(cfg.Timeout),
		crawler.WithImageDir(cfg.OutputDir),
		crawler.WithDigest(crawler.Digest(cfg.Digest)),
		crawler.WithLogger(logger),
		crawler.WithObserver(observer),
	}
	if cfg.InspectEXIF {
		opts = append(opts, crawler.WithInspector(imagemeta.NewEXIFInspector()))
	}

	return crawler.NewSpider(transport, storage.NewFileStore(), opts...), nil
}

// runCrawl performs one crawl run and reports it.
// Failures inside the run are part of the report; only setup and report
// output errors are returned.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	scope, err := crawler.NewScope(cfg.Seed)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	crawlReport := model.NewCrawlReport(cfg.Seed, scope.Host())
	spider, err := newSpider(cfg, logger, crawlReport.Record)
	if err != nil {
		return err
	}

	summary, err := spider.Run(ctx, cfg.Seed)
	interrupted := false
	switch {
	case errors.Is(err, crawler.ErrInvalidSeed):
		return fmt.Errorf("configuration error: %w", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("crawl interrupted", "pending", summary.Pending)
		interrupted = true
	case err != nil:
		return err
	}
	crawlReport.Finish(summary, interrupted)
	warnLocations(crawlReport, logger)

	if err := outputReport(cfg, crawlReport, stdout); err != nil {
		return err
	}

	if cfg.SaveToDB {
		// The run context may already be cancelled; the history write
		// should still go through.
		if err := saveReport(context.WithoutCancel(ctx), cfg.DBDir, crawlReport, logger); err != nil {
			logger.Error("failed to save crawl report", "error", err)
		}
	}
	return nil
}

// warnLocations flags saved images that carry GPS coordinates.
func warnLocations(crawlReport *model.CrawlReport, logger *slog.Logger) {
	located := 0
	for _, img := range crawlReport.SensitiveImages() {
		if imagemeta.HasLocation(img.Tags) {
			located++
		}
	}
	if located > 0 {
		logger.Warn("saved images contain GPS coordinates", "images", located)
	}
}

// outputReport writes the report in the requested format to the report
// file or stdout.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output, cfg.Verbose).Write(crawlReport)
	return err
}

// newReportWriter picks the report writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer, verbose bool) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// saveReport stores the report in the history database under dbDir.
func saveReport(ctx context.Context, dbDir string, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveReport(ctx, crawlReport)
	if err != nil {
		return err
	}

	logger.Info("crawl report saved", "id", id, "db", db.Path())
	return nil
}
