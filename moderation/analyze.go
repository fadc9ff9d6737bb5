package moderation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

const topWordLimit = 5

// WordCount is one entry of the topic tally.
type WordCount struct {
	Word  string
	Count int
}

// Report summarizes the chat window.
type Report struct {
	TotalMessages      int
	AvgWordsPerMessage float64
	TopWords           []WordCount
}

// Analyze tallies words across the window. Tokens longer than three
// characters that are not stopwords count as topics; the five most frequent
// are kept, ties in order of first appearance.
func (h *Heuristics) Analyze() Report {
	lines := h.window.Snapshot()
	if len(lines) == 0 {
		return Report{}
	}

	var (
		totalWords int
		order      []string
		freq       = make(map[string]int)
	)
	for _, l := range lines {
		words := strings.Fields(strings.ToLower(l.Content))
		totalWords += len(words)
		for _, w := range words {
			if len(w) <= 3 {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			if _, seen := freq[w]; !seen {
				order = append(order, w)
			}
			freq[w]++
		}
	}

	top := make([]WordCount, len(order))
	for i, w := range order {
		top[i] = WordCount{Word: w, Count: freq[w]}
	}
	slices.SortStableFunc(top, func(a, b WordCount) int { return cmp.Compare(b.Count, a.Count) })
	if len(top) > topWordLimit {
		top = top[:topWordLimit]
	}

	return Report{
		TotalMessages:      len(lines),
		AvgWordsPerMessage: float64(totalWords) / float64(len(lines)),
		TopWords:           top,
	}
}

// String renders the report as the text returned to tool callers.
func (r Report) String() string {
	if r.TotalMessages == 0 {
		return "No recent chat messages to analyze."
	}
	var b strings.Builder
	b.WriteString("Chat Analysis:\n")
	fmt.Fprintf(&b, "- Total messages: %d\n", r.TotalMessages)
	fmt.Fprintf(&b, "- Average words per message: %.1f\n", r.AvgWordsPerMessage)
	b.WriteString("- Top topics: ")
	if len(r.TopWords) == 0 {
		b.WriteString("No significant topics detected")
		return b.String()
	}
	for i, wc := range r.TopWords {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%d mentions)", wc.Word, wc.Count)
	}
	return b.String()
}
