// Package budget provides token estimation and context packing for answer
// synthesis. Because ragd supports multiple chat backends with different
// tokenizers, this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose and code). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/corpuslabs/ragd/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// separatorOverhead is the per-document cost charged during packing to
	// account for the joining separator and headers added at prompt build.
	separatorOverhead = 16
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// PackDocuments selects a prefix of results, in rank order, whose combined
// content fits within maxChars. Documents are taken whole, never truncated; a
// document that would overflow the remaining budget ends the packing,
// preserving rank order over greedy fill. A first document that alone exceeds
// the budget is excluded like any other, leaving the caller with an empty
// context.
func PackDocuments(results []rag.SearchResult, maxChars int) []rag.SearchResult {
	if len(results) == 0 || maxChars <= 0 {
		return nil
	}

	packed := make([]rag.SearchResult, 0, len(results))
	used := 0
	for _, r := range results {
		cost := len(r.Content) + separatorOverhead
		if used+cost > maxChars {
			break
		}
		packed = append(packed, r)
		used += cost
	}
	return packed
}
