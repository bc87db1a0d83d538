package citation

import (
	"regexp"
	"sort"
	"strconv"

	"doc-qa-be/pkg/store"
)

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

const snippetLimit = 200

// Extract maps bracketed markers in the answer back to the prompt
// passages. Marker [n] refers to passages[n-1]; markers outside that
// range are ignored, never invented. When the answer carries no usable
// markers every prompt passage is returned, best score first, so the
// sources shown are at least the ones the model saw.
func Extract(answer string, passages []store.Passage) []store.Citation {
	if len(passages) == 0 {
		return nil
	}

	cited := map[int]bool{}
	var order []int
	for _, match := range markerPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(passages) {
			continue
		}
		idx := n - 1
		if !cited[idx] {
			cited[idx] = true
			order = append(order, idx)
		}
	}

	if len(order) == 0 {
		// Fallback: all prompt passages by score
		order = make([]int, len(passages))
		for i := range passages {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return passages[order[a]].Score > passages[order[b]].Score
		})
	}

	citations := make([]store.Citation, 0, len(order))
	for _, idx := range order {
		p := passages[idx]
		citations = append(citations, store.Citation{
			DocumentId: p.DocumentId,
			Filename:   p.Filename,
			ChunkIndex: p.ChunkIndex,
			PageNumber: p.PageNumber,
			Score:      p.Score,
			Snippet:    snippet(p.Text),
		})
	}
	return citations
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}
	return string(runes[:snippetLimit]) + "..."
}
