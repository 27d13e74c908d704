package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// Mock is a canned analyzer for tests and local runs without an API key.
type Mock struct {
	// Err fails every call when set.
	Err error
	// FailOn fails Summarize for inputs containing this substring.
	FailOn string
}

func (m *Mock) Summarize(_ context.Context, text string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}

	if m.FailOn != "" && strings.Contains(text, m.FailOn) {
		return "", fmt.Errorf("mock analyzer: refused input")
	}

	return "## Summary\n\n" + firstLine(text), nil
}

func (m *Mock) SummarizeWeekly(_ context.Context, texts []string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}

	return fmt.Sprintf("## Weekly summary\n\n%d discussions analyzed.", len(texts)), nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}

	return text
}
