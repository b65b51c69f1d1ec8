package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/imgcrawl/internal/model"
)

// Writer renders crawl reports.
type Writer interface {
	// Write outputs the full report.
	Write(report *model.CrawlReport) (int, error)

	// WriteSummary outputs only the final counts of a run.
	WriteSummary(summary model.Summary) (int, error)
}

// MultiWriter writes to several Writers in turn and stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements Writer.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary implements Writer.
func (m *MultiWriter) WriteSummary(summary model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	// output is where the rendered report is written.
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// title turns a lowercase label such as "failed images" into a heading.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// statusText describes how a run ended.
func statusText(report *model.CrawlReport) string {
	switch {
	case report.Interrupted:
		return "Interrupted"
	case report.Summary.FailedPages > 0 || report.Summary.FailedImages > 0 || report.Summary.PersistErrors > 0:
		return "Complete with failures"
	default:
		return "Complete"
	}
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
