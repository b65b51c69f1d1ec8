package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imgcrawl/internal/model"
)

// MarkdownWriter outputs reports as GitHub flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report.Summary)
	w.writeAlert(md, report)
	w.writeFailedPages(md, report)
	w.writeImages(md, report)
	w.writeSensitive(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary implements Writer.
func (w *MarkdownWriter) WriteSummary(summary model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeSummary(md, summary)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("imgcrawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Host", "`" + report.Host + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	rows := [][]string{
		{title("visited"), strconv.Itoa(s.Visited)},
		{title("failed pages"), strconv.Itoa(s.FailedPages)},
		{title("images saved"), strconv.Itoa(s.ImagesSaved)},
		{title("failed images"), strconv.Itoa(s.FailedImages)},
		{title("persist errors"), strconv.Itoa(s.PersistErrors)},
	}
	if s.Pending > 0 {
		rows = append(rows, []string{title("pending"), strconv.Itoa(s.Pending)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.ImagesSaved+s.FailedImages+s.PersistErrors > 0 {
		w.writePieChart(md, s)
	}
}

// writePieChart charts how image downloads ended.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Image Downloads"),
		piechart.WithShowData(true),
	)

	if s.ImagesSaved > 0 {
		chart.LabelAndIntValue(title("saved"), uint64(s.ImagesSaved))
	}
	if s.FailedImages > 0 {
		chart.LabelAndIntValue(title("failed"), uint64(s.FailedImages))
	}
	if s.PersistErrors > 0 {
		chart.LabelAndIntValue(title("not written"), uint64(s.PersistErrors))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	s := report.Summary
	switch {
	case report.Interrupted:
		md.Warningf("The run was interrupted with %d task(s) pending; counts are partial.", s.Pending)
	case s.PersistErrors > 0:
		md.Cautionf("%d image(s) were downloaded but could not be written to disk.", s.PersistErrors)
	case s.FailedPages > 0 || s.FailedImages > 0:
		md.Importantf("%d page(s) and %d image(s) failed after all retries.", s.FailedPages, s.FailedImages)
	default:
		md.Tip("Every page and image was fetched.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailedPages(md *markdown.Markdown, report *model.CrawlReport) {
	failed := report.FailedPages()
	if len(failed) == 0 {
		return
	}

	md.H2(title("failed pages"))
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, p := range failed {
		rows[i] = []string{p.URL, strconv.Itoa(p.Attempts), truncateString(p.Error, 60)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Attempts", "Last Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeImages(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Images) == 0 {
		return
	}

	md.H2("Images")
	md.PlainText("")

	rows := make([][]string, len(report.Images))
	for i, img := range report.Images {
		status := "saved"
		target := "`" + img.Path + "`"
		if img.Failed {
			status = "failed"
			target = truncateString(img.Error, 60)
		}
		rows[i] = []string{img.URL, status, target}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "File / Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSensitive(md *markdown.Markdown, report *model.CrawlReport) {
	images := report.SensitiveImages()
	if len(images) == 0 {
		return
	}

	md.H2(title("image metadata"))
	md.PlainText("")
	md.Warningf("%d image(s) carry metadata that can identify a person, device or place.", len(images))
	md.PlainText("")

	for _, img := range images {
		items := make([]string, 0, len(img.Tags))
		for _, tag := range img.Tags {
			items = append(items, tag.Name+": "+tag.Value)
		}
		md.PlainText("`" + img.URL + "`")
		md.PlainText("")
		md.BulletList(items...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [imgcrawl](https://github.com/nao1215/imgcrawl)*")
}
