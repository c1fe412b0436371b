// Package report renders sync plans and summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - MarkdownWriter: Markdown for sharing or archiving a run
//   - JSONWriter: structured JSON for tool integration
//
// Every writer renders two views of a model.SyncReport: the plan, printed
// after discovery and before the confirmation prompt, and the summary,
// printed once the run has finished.
package report
