// Package cleaner implements the Text Cleaner (C6): a deterministic,
// ordered composition of cleaning strategies, each declaring whether it
// applies to a given input and providing a pure apply(text) -> text
// transform, per spec §4.10 step 3 and the strategy-composition guidance of
// §9.
package cleaner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Stage is one cleaning strategy in the pipeline.
type Stage interface {
	// Name identifies the stage for diagnostics.
	Name() string
	// Applies reports whether this stage has anything to do on text.
	Applies(text string) bool
	// Apply transforms text. Called only when Applies returns true.
	Apply(text string) string
}

// DefaultPipeline returns the spec-ordered stage sequence: unicode
// normalization, form-artifact removal, word-spacing fix, whitespace
// normalization, repetitive-content removal, table cleanup, final cleanup.
func DefaultPipeline() []Stage {
	return []Stage{
		unicodeNormalizeStage{},
		formArtifactStage{},
		wordSpacingStage{},
		whitespaceStage{},
		repetitiveContentStage{},
		tableCleanupStage{},
		finalCleanupStage{},
	}
}

// Result reports which stages ran, for diagnostics/testing.
type Result struct {
	Text       string
	AppliedLog []string
}

// Clean runs the pipeline over text in declared order, skipping any stage
// whose Applies returns false.
func Clean(text string, pipeline []Stage) Result {
	applied := make([]string, 0, len(pipeline))
	for _, stage := range pipeline {
		if stage.Applies(text) {
			text = stage.Apply(text)
			applied = append(applied, stage.Name())
		}
	}
	return Result{Text: text, AppliedLog: applied}
}

// unicodeNormalizeStage applies NFC normalization so later regex-based
// stages see a canonical form.
type unicodeNormalizeStage struct{}

func (unicodeNormalizeStage) Name() string { return "unicode-normalize" }
func (unicodeNormalizeStage) Applies(text string) bool {
	return !norm.NFC.IsNormalString(text)
}
func (unicodeNormalizeStage) Apply(text string) string {
	return norm.NFC.String(text)
}

// formArtifactStage strips the stray artifacts that PDF/word-processor form
// extraction commonly leaves: page-number footers, form-feed characters, and
// checkbox/bullet glyphs rendered as control-adjacent symbols.
type formArtifactStage struct{}

var (
	pageFooterPattern = regexp.MustCompile(`(?m)^\s*(?:Page\s+)?\d+\s*(?:/|of)\s*\d+\s*$`)
	formFeedPattern   = regexp.MustCompile(`[\x0c﻿]`)
	checkboxPattern   = regexp.MustCompile(`[\x{2610}\x{2611}\x{2612}]`)
)

func (formArtifactStage) Name() string { return "form-artifact-removal" }
func (formArtifactStage) Applies(text string) bool {
	return pageFooterPattern.MatchString(text) || formFeedPattern.MatchString(text) || checkboxPattern.MatchString(text)
}
func (formArtifactStage) Apply(text string) string {
	text = pageFooterPattern.ReplaceAllString(text, "")
	text = formFeedPattern.ReplaceAllString(text, "")
	text = checkboxPattern.ReplaceAllString(text, "")
	return text
}

// wordSpacingStage repairs the "W o r d   s p a c e d" artifact common to
// naive PDF text extraction. Glued words with a missing space ("WordGlued")
// are not split.
type wordSpacingStage struct{}

var (
	letterSpacedRun  = regexp.MustCompile(`\b(?:[A-Za-z]\s){2,}[A-Za-z]\b`)
	camelGlueBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
)

func (wordSpacingStage) Name() string { return "word-spacing-fix" }
func (wordSpacingStage) Applies(text string) bool {
	return letterSpacedRun.MatchString(text)
}
func (wordSpacingStage) Apply(text string) string {
	return letterSpacedRun.ReplaceAllStringFunc(text, func(m string) string {
		return strings.ReplaceAll(m, " ", "")
	})
}

// whitespaceStage collapses horizontal whitespace runs, normalizes line
// endings, and trims surrounding whitespace.
type whitespaceStage struct{}

var (
	horizontalWSPattern = regexp.MustCompile(`[\t\x0b ]+`)
	blankLineRunPattern = regexp.MustCompile(`\n{3,}`)
)

func (whitespaceStage) Name() string { return "whitespace-normalization" }
func (whitespaceStage) Applies(text string) bool { return true }
func (whitespaceStage) Apply(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalWSPattern.ReplaceAllString(text, " ")
	text = blankLineRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// repetitiveContentStage removes consecutive duplicate lines, the common
// symptom of repeated running headers/footers captured once per page.
type repetitiveContentStage struct{}

func (repetitiveContentStage) Name() string { return "repetitive-content-removal" }
func (repetitiveContentStage) Applies(text string) bool {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" && lines[i] == lines[i-1] {
			return true
		}
	}
	return false
}
func (repetitiveContentStage) Apply(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, ln := range lines {
		if i > 0 && ln != "" && ln == lines[i-1] {
			continue
		}
		out = append(out, ln)
	}
	return strings.Join(out, "\n")
}

// tableCleanupStage removes Markdown table rule rows (`|---|---|`) and
// collapses runs of two or more spaces/tabs left by naive table extraction
// into a single space, preserving the `|` column separators.
type tableCleanupStage struct{}

var tableRulePattern = regexp.MustCompile(`(?m)^\s*\|?\s*[-:]+\s*(\|\s*[-:]+\s*)+\|?\s*$`)
var cellWSPattern = regexp.MustCompile(`[ \t]{2,}`)

func (tableCleanupStage) Name() string { return "table-cleanup" }
func (tableCleanupStage) Applies(text string) bool {
	return strings.Contains(text, "|") || tableRulePattern.MatchString(text)
}
func (tableCleanupStage) Apply(text string) string {
	text = tableRulePattern.ReplaceAllString(text, "")
	return cellWSPattern.ReplaceAllString(text, " ")
}

// finalCleanupStage strips non-printable control characters and re-trims,
// running last so every earlier stage's output is swept clean.
type finalCleanupStage struct{}

func (finalCleanupStage) Name() string { return "final-cleanup" }
func (finalCleanupStage) Applies(text string) bool { return true }
func (finalCleanupStage) Apply(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(blankLineRunPattern.ReplaceAllString(b.String(), "\n\n"))
}
