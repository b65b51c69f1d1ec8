package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/imgcrawl/internal/model"
)

// SimpleWriter outputs plain text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page and image instead of failures only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists successful pages and images too.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	writeSummary(&sb, report.Summary)
	w.writePages(&sb, report)
	w.writeImages(&sb, report)
	w.writeSensitive(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary implements Writer.
func (w *SimpleWriter) WriteSummary(summary model.Summary) (int, error) {
	var sb strings.Builder
	writeSummary(&sb, summary)
	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, name string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.ToUpper(name))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          IMGCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:      %s\n", report.Seed)
	fmt.Fprintf(sb, "Host:      %s\n", report.Host)
	fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:    %s\n", statusText(report))
	sb.WriteString("\n")
}

func writeSummary(sb *strings.Builder, s model.Summary) {
	section(sb, "summary")
	fmt.Fprintf(sb, "  Visited:        %d\n", s.Visited)
	fmt.Fprintf(sb, "  Failed pages:   %d\n", s.FailedPages)
	fmt.Fprintf(sb, "  Images saved:   %d\n", s.ImagesSaved)
	fmt.Fprintf(sb, "  Failed images:  %d\n", s.FailedImages)
	fmt.Fprintf(sb, "  Persist errors: %d\n", s.PersistErrors)
	if s.Pending > 0 {
		fmt.Fprintf(sb, "  Pending:        %d (run interrupted)\n", s.Pending)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	pages := report.FailedPages()
	name := "failed pages"
	if w.verbose {
		pages = report.Pages
		name = "pages"
	}
	if len(pages) == 0 {
		return
	}

	section(sb, name)
	for _, p := range pages {
		if p.Failed {
			fmt.Fprintf(sb, "  [x] %s (%d attempts): %s\n", p.URL, p.Attempts, p.Error)
			continue
		}
		fmt.Fprintf(sb, "  [+] %s (%d)\n", p.URL, p.StatusCode)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeImages(sb *strings.Builder, report *model.CrawlReport) {
	images := report.FailedImages()
	name := "failed images"
	if w.verbose {
		images = report.Images
		name = "images"
	}
	if len(images) == 0 {
		return
	}

	section(sb, name)
	for _, img := range images {
		if img.Failed {
			fmt.Fprintf(sb, "  [x] %s (%d attempts): %s\n", img.URL, img.Attempts, img.Error)
			continue
		}
		fmt.Fprintf(sb, "  [+] %s -> %s\n", img.URL, img.Path)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSensitive(sb *strings.Builder, report *model.CrawlReport) {
	images := report.SensitiveImages()
	if len(images) == 0 {
		return
	}

	section(sb, "image metadata")
	for _, img := range images {
		fmt.Fprintf(sb, "  [!] %s\n", img.URL)
		for _, tag := range img.Tags {
			if tag.Sensitive {
				fmt.Fprintf(sb, "      %s: %s\n", tag.Name, tag.Value)
			}
		}
	}
	sb.WriteString("\n")
}
