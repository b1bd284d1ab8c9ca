// Package hallucination implements the Hallucination Detector (C19): three
// independent signals (grounding, self-consistency, faithfulness) combined
// into an overall confidence score, per spec §4.8.
package hallucination

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Classification buckets the overall confidence score.
type Classification string

const (
	High   Classification = "High"
	Medium Classification = "Medium"
	Low    Classification = "Low"
)

// SentenceScore records a single sentence's grounding verdict.
type SentenceScore struct {
	Sentence string
	F1       float64
	Grounded bool
	Cited    bool
}

// Result is the detector's verdict.
type Result struct {
	Grounding            float64
	SelfConsistency      *float64
	Faithfulness         *float64
	Overall              float64
	Classification       Classification
	RequiresHumanReview  bool
	Sentences            []SentenceScore
}

const groundingThreshold = 0.3

var sentenceSplitPattern = regexp.MustCompile(`(?:[.!?]+)(?:\s+|$)`)
var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)
var citationPattern = regexp.MustCompile(`\[Source\s+\d+\]`)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "this": true, "these": true, "those": true,
}

// Judge is the optional LLM-judge signal, separated as an interface so tests
// can substitute a deterministic fake instead of a live provider call.
type Judge interface {
	Faithfulness(ctx context.Context, question, passages, answer string) (float64, error)
}

// Options controls which optional signals run.
type Options struct {
	RunSelfConsistency bool
	Regenerate         func(ctx context.Context) (string, error) // re-generates the answer at temperature >= 0.7
	SelfConsistencyN   int                                       // default 3

	RunFaithfulness bool
	Judge           Judge
	Question        string
	Passages        string
}

// Detect runs the grounding signal always, and the optional signals per
// Options, combining them per the spec's weighting table.
func Detect(ctx context.Context, answer, passages string, opt Options) (Result, error) {
	sentences := splitSentences(answer)
	passageTokens := tokenize(passages)

	scored := make([]SentenceScore, 0, len(sentences))
	groundedCount := 0
	for _, s := range sentences {
		f1 := tokenF1(tokenize(s), passageTokens)
		grounded := f1 >= groundingThreshold
		if grounded {
			groundedCount++
		}
		scored = append(scored, SentenceScore{
			Sentence: s,
			F1:       f1,
			Grounded: grounded,
			Cited:    citationPattern.MatchString(s),
		})
	}
	grounding := 0.0
	if len(scored) > 0 {
		grounding = float64(groundedCount) / float64(len(scored))
	}

	weights := []float64{0.5}
	values := []float64{grounding}

	var selfConsistency *float64
	if opt.RunSelfConsistency && opt.Regenerate != nil {
		n := opt.SelfConsistencyN
		if n <= 0 {
			n = 3
		}
		score, err := selfConsistencyScore(ctx, answer, opt.Regenerate, n)
		if err != nil {
			return Result{}, err
		}
		selfConsistency = &score
		weights = append(weights, 0.25)
		values = append(values, score)
	}

	var faithfulness *float64
	if opt.RunFaithfulness && opt.Judge != nil {
		score, err := opt.Judge.Faithfulness(ctx, opt.Question, passages, answer)
		if err != nil {
			return Result{}, err
		}
		faithfulness = &score
		weights = append(weights, 0.25)
		values = append(values, score)
	}

	overall := weightedMean(values, weights)
	classification := classify(overall)

	requiresReview := overall < 0.70
	if !requiresReview {
		for _, s := range scored {
			if s.Cited && !s.Grounded {
				requiresReview = true
				break
			}
		}
	}

	return Result{
		Grounding:           grounding,
		SelfConsistency:     selfConsistency,
		Faithfulness:        faithfulness,
		Overall:             overall,
		Classification:      classification,
		RequiresHumanReview: requiresReview,
		Sentences:           scored,
	}, nil
}

func classify(overall float64) Classification {
	switch {
	case overall > 0.85:
		return High
	case overall >= 0.70:
		return Medium
	default:
		return Low
	}
}

func weightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var wsum, vsum float64
	for i, v := range values {
		wsum += weights[i]
		vsum += v * weights[i]
	}
	if wsum == 0 {
		return 0
	}
	return vsum / wsum
}

func splitSentences(text string) []string {
	raw := sentenceSplitPattern.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func tokenize(text string) map[string]int {
	toks := make(map[string]int)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if stopwords[w] {
			continue
		}
		toks[w]++
	}
	return toks
}

// tokenF1 computes the token-overlap F1 between two bag-of-words maps.
func tokenF1(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for tok, ca := range a {
		if cb, ok := b[tok]; ok {
			if ca < cb {
				overlap += ca
			} else {
				overlap += cb
			}
		}
	}
	if overlap == 0 {
		return 0
	}
	countA := sumCounts(a)
	countB := sumCounts(b)
	precision := float64(overlap) / float64(countA)
	recall := float64(overlap) / float64(countB)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func sumCounts(m map[string]int) int {
	s := 0
	for _, c := range m {
		s += c
	}
	return s
}

func selfConsistencyScore(ctx context.Context, baseline string, regenerate func(context.Context) (string, error), n int) (float64, error) {
	samples := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := regenerate(ctx)
		if err != nil {
			return 0, fmt.Errorf("hallucination: self-consistency regeneration %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	var total float64
	pairs := 0
	all := append([]string{baseline}, samples...)
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			total += tokenF1(tokenize(all[i]), tokenize(all[j]))
			pairs++
		}
	}
	if pairs == 0 {
		return 0, nil
	}
	return total / float64(pairs), nil
}
