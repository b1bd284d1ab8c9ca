// Package responsevalidator implements the Response Validator (C17): checks
// a generated answer for emptiness, length bounds, citation presence, and
// forbidden refusal phrasing, per spec §4.7.
package responsevalidator

import (
	"regexp"
	"strings"
)

var sourceMarkerPattern = regexp.MustCompile(`\[Source\s+(\d+)\]`)

var refusalPhrases = []string{
	"i don't have enough information",
	"i cannot answer that",
	"i don't know",
	"as an ai language model",
	"i'm unable to help with that",
}

// Options configures validation.
type Options struct {
	MinLength    int // characters, default 1 (non-empty)
	MaxLength    int // characters, 0 = unbounded
	NoCitation   bool // template declared no-citation; citation check skipped
	PassagesUsed bool // whether any passages were supplied to the prompt
}

// Result is the validator's verdict plus any non-fatal issues.
type Result struct {
	Valid  bool
	Issues []string
}

// Validate checks response against the configured rules. It never returns
// an error itself — callers decide how to react to Valid=false, matching
// the spec's framing of these as response-quality issues, not transport
// failures.
func Validate(response string, opt Options) Result {
	var issues []string

	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		issues = append(issues, "response is empty")
	}

	minLen := opt.MinLength
	if minLen <= 0 {
		minLen = 1
	}
	if len(trimmed) > 0 && len(trimmed) < minLen {
		issues = append(issues, "response shorter than minimum length")
	}
	if opt.MaxLength > 0 && len(trimmed) > opt.MaxLength {
		issues = append(issues, "response exceeds maximum length")
	}

	if !opt.NoCitation && trimmed != "" && !sourceMarkerPattern.MatchString(trimmed) {
		issues = append(issues, "response contains no [Source N] citation")
	}

	if opt.PassagesUsed {
		lower := strings.ToLower(trimmed)
		for _, phrase := range refusalPhrases {
			if strings.Contains(lower, phrase) {
				issues = append(issues, "response contains a refusal phrase despite supplied passages")
				break
			}
		}
	}

	return Result{Valid: len(issues) == 0, Issues: issues}
}
