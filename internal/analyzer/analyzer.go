// Package analyzer wraps the AI summarization collaborator.
package analyzer

import "context"

// Analyzer produces markdown summaries from raw feedback text.
type Analyzer interface {
	// Summarize produces a per-item markdown summary of one thread and its
	// comments.
	Summarize(ctx context.Context, text string) (string, error)

	// SummarizeWeekly produces an aggregate summary over all comment text
	// collected for a report window.
	SummarizeWeekly(ctx context.Context, texts []string) (string, error)
}
