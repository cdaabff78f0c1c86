package chunker

import (
	"sort"
	"strings"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// stopWords filters out function words before key-term extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"le": true, "la": true, "les": true, "de": true, "des": true, "du": true,
	"un": true, "une": true, "et": true, "est": true, "dans": true, "pour": true,
}

const keyTermLimit = 8

// buildMetadata computes the per-chunk enrichment fields.
func buildMetadata(text string, elements []docmodel.StructuralElement, start, end int) docmodel.ChunkMetadata {
	words := strings.Fields(text)
	sentences := sentenceSepRe.Split(text, -1)
	nonEmptySentences := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmptySentences++
		}
	}

	return docmodel.ChunkMetadata{
		CharCount:        len(text),
		WordCount:        len(words),
		SentenceCount:    nonEmptySentences,
		LexicalDiversity: lexicalDiversity(words),
		KeyTerms:         extractKeyTerms(words, keyTermLimit),
		TokenCount:       estimateTokenCount(text),
		StructuralRefs:   refsInRange(elements, start, end),
	}
}

// lexicalDiversity is the ratio of unique (lowercased) words to total words,
// 0 for an empty chunk.
func lexicalDiversity(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[strings.ToLower(strings.Trim(w, ".,;:!?()[]{}\"'"))] = true
	}
	return float64(len(seen)) / float64(len(words))
}

// extractKeyTerms picks the most frequent non-stop-word terms, capped at
// limit.
func extractKeyTerms(words []string, limit int) []string {
	freq := make(map[string]int)
	order := make([]string, 0, len(words))
	for _, w := range words {
		term := strings.ToLower(strings.Trim(w, ".,;:!?()[]{}\"'"))
		if len(term) <= 2 || stopWords[term] {
			continue
		}
		if freq[term] == 0 {
			order = append(order, term)
		}
		freq[term]++
	}
	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })

	terms := make([]string, 0, limit)
	for _, term := range order {
		if freq[term] < 2 {
			continue
		}
		terms = append(terms, term)
		if len(terms) == limit {
			break
		}
	}
	return terms
}

// estimateTokenCount approximates a model tokenizer's output by a
// characters-per-token heuristic; precise tokenization is an external
// concern this module does not own.
func estimateTokenCount(text string) int {
	const avgCharsPerToken = 4.0
	if len(text) == 0 {
		return 0
	}
	n := int(float64(len(text))/avgCharsPerToken + 0.5)
	if n == 0 {
		n = 1
	}
	return n
}
