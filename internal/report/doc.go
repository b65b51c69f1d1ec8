// Package report renders crawl reports.
//
// Three formats share the Writer interface:
//   - SimpleWriter: plain text for the terminal (the default)
//   - JSONWriter: the full report as JSON for other tools
//   - MarkdownWriter: GitHub flavored Markdown with a mermaid pie chart
//
// Report data lives in the model package; this package only formats it.
package report
