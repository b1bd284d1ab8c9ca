package evalengine

import (
	"math"
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)
var wsPattern = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return wsPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// ExactMatch is alias-aware per spec §9 open question (a): case-insensitive,
// whitespace-collapsed comparison against the primary expected answer or
// any of its aliases.
func ExactMatch(answer, expected string, aliases []string) float64 {
	got := normalize(answer)
	candidates := append([]string{expected}, aliases...)
	for _, c := range candidates {
		if got == normalize(c) {
			return 1
		}
	}
	return 0
}

// TokenF1 is the symmetric token-overlap F1 between two strings.
func TokenF1(a, b string) float64 {
	return bagF1(countBag(tokenize(a)), countBag(tokenize(b)))
}

func countBag(tokens []string) map[string]int {
	bag := make(map[string]int, len(tokens))
	for _, t := range tokens {
		bag[t]++
	}
	return bag
}

func bagF1(a, b map[string]int) float64 {
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
	var countA, countB int
	for _, c := range a {
		countA += c
	}
	for _, c := range b {
		countB += c
	}
	precision := float64(overlap) / float64(countA)
	recall := float64(overlap) / float64(countB)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// BLEU4 computes a sentence-level BLEU score with n-grams 1..4 and the
// standard brevity penalty, smoothing zero-count n-gram precisions with
// add-one smoothing so a single short answer doesn't collapse to zero.
func BLEU4(candidate, reference string) float64 {
	candTokens := tokenize(candidate)
	refTokens := tokenize(reference)
	if len(candTokens) == 0 {
		return 0
	}

	var logSum float64
	for n := 1; n <= 4; n++ {
		candNgrams := ngramCounts(candTokens, n)
		refNgrams := ngramCounts(refTokens, n)
		if len(candNgrams) == 0 {
			continue
		}
		match, total := 0, 0
		for gram, c := range candNgrams {
			total += c
			if rc, ok := refNgrams[gram]; ok {
				if c < rc {
					match += c
				} else {
					match += rc
				}
			}
		}
		// add-one smoothing avoids a single missing n-gram order zeroing BLEU.
		precision := (float64(match) + 1) / (float64(total) + 1)
		logSum += math.Log(precision)
	}
	geoMean := math.Exp(logSum / 4)

	bp := 1.0
	if len(candTokens) < len(refTokens) {
		bp = math.Exp(1 - float64(len(refTokens))/float64(len(candTokens)))
	}
	return bp * geoMean
}

func ngramCounts(tokens []string, n int) map[string]int {
	out := make(map[string]int)
	if len(tokens) < n {
		return out
	}
	for i := 0; i+n <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+n], " ")]++
	}
	return out
}

// ROUGEL is the F-measure of the longest common subsequence between
// candidate and reference token sequences.
func ROUGEL(candidate, reference string) float64 {
	cand := tokenize(candidate)
	ref := tokenize(reference)
	if len(cand) == 0 || len(ref) == 0 {
		return 0
	}
	lcs := lcsLength(cand, ref)
	if lcs == 0 {
		return 0
	}
	precision := float64(lcs) / float64(len(cand))
	recall := float64(lcs) / float64(len(ref))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func lcsLength(a, b []string) int {
	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}
	return dp[len(a)][len(b)]
}

// ROUGE1 is the F-measure of clipped unigram overlap (each reference token
// matched at most as often as it occurs), which yields the same value as
// TokenF1; spec §4.11 lists it as a separate metric from TokenF1.
func ROUGE1(candidate, reference string) float64 {
	cand := tokenize(candidate)
	ref := tokenize(reference)
	if len(cand) == 0 || len(ref) == 0 {
		return 0
	}
	refBag := countBag(ref)
	overlap := 0
	used := make(map[string]int)
	for _, tok := range cand {
		if used[tok] < refBag[tok] {
			used[tok]++
			overlap++
		}
	}
	precision := float64(overlap) / float64(len(cand))
	recall := float64(overlap) / float64(len(ref))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
