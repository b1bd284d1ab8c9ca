// Package classifier implements the Query Classifier (C9): routes a query
// into one of four intent labels that the Adaptive Retriever (C13) maps to a
// concrete retrieval strategy.
package classifier

import (
	"context"
	"strings"

	"ragforge/internal/llm"
)

// Label is a query intent classification.
type Label string

const (
	ExplicitFact           Label = "ExplicitFact"
	ImplicitFact           Label = "ImplicitFact"
	InterpretableRationale Label = "InterpretableRationale"
	HiddenRationale        Label = "HiddenRationale"
)

var validLabels = map[Label]bool{
	ExplicitFact:           true,
	ImplicitFact:           true,
	InterpretableRationale: true,
	HiddenRationale:        true,
}

const classifyInstruction = `Classify the user query into exactly one label: ` +
	`ExplicitFact, ImplicitFact, InterpretableRationale, or HiddenRationale. ` +
	`Respond with only the label.`

// Classify determines a query's label. It prefers an LLM call for nuance,
// falling back to the deterministic heuristic when the provider is
// unavailable or returns unparseable output, per the spec's resilience
// requirement that classification never blocks the pipeline.
func Classify(ctx context.Context, provider llm.Provider, query string) Label {
	if provider != nil {
		msg, err := provider.Chat(ctx, []llm.Message{
			{Role: "system", Content: classifyInstruction},
			{Role: "user", Content: query},
		}, nil, "")
		if err == nil {
			if lbl, ok := parseLabel(msg.Content); ok {
				return lbl
			}
		}
	}
	return Heuristic(query)
}

// parseLabel extracts the first token matching a known label, case-insensitive.
func parseLabel(s string) (Label, bool) {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	first := strings.Trim(fields[0], ".,:;\"'")
	for lbl := range validLabels {
		if strings.EqualFold(first, string(lbl)) {
			return lbl, true
		}
	}
	return "", false
}

// Heuristic is the deterministic fallback classifier: identical input always
// yields identical output, no state retained.
func Heuristic(query string) Label {
	q := strings.ToLower(query)

	switch {
	case hasAny(q, "what", "when", "where", "who"):
		return ExplicitFact
	case hasAny(q, "why", "how", "explain", "compare"):
		if hasAny(q, "compare", "vs", "difference") {
			return InterpretableRationale
		}
		return ImplicitFact
	case hasAny(q, "should", "recommend", "best"):
		return HiddenRationale
	default:
		return ImplicitFact
	}
}

func hasAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
