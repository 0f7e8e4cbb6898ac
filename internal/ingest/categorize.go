package ingest

import (
	"strings"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

// categoryKeywords maps each category to indicator terms. Scoring counts
// occurrences across content and filename; the highest-scoring category
// wins, with "other" as the floor.
var categoryKeywords = map[types.Category][]string{
	types.CategoryContract: {
		"agreement", "contract", "hereby", "party", "parties", "terms and conditions",
		"obligations", "witness whereof",
	},
	types.CategoryInvoice: {
		"invoice", "amount due", "bill to", "payment terms", "subtotal", "total due",
		"remit",
	},
	types.CategoryReport: {
		"report", "analysis", "findings", "quarterly", "annual", "executive summary",
		"conclusion",
	},
	types.CategoryEmail: {
		"subject:", "from:", "to:", "dear", "regards", "forwarded message",
	},
	types.CategoryPresentation: {
		"slide", "agenda", "presentation", "deck", "q&a",
	},
}

// categorize assigns one of the closed category values based on keyword
// frequency in the document text and filename.
func categorize(content, filename string) types.Category {
	haystack := strings.ToLower(content + " " + filename)

	best := types.CategoryOther
	bestScore := 0
	// Deterministic iteration: check categories in a fixed order so ties
	// resolve the same way every run.
	for _, category := range []types.Category{
		types.CategoryContract, types.CategoryInvoice, types.CategoryReport,
		types.CategoryEmail, types.CategoryPresentation,
	} {
		score := 0
		for _, keyword := range categoryKeywords[category] {
			score += strings.Count(haystack, keyword)
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best
}

// summarize produces a short extractive summary: the first sentences of the
// document up to maxSummaryLen characters.
const maxSummaryLen = 300

func summarize(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	runes := []rune(content)
	end := len(runes)
	if end > maxSummaryLen {
		end = maxSummaryLen
	}

	// Prefer to stop at a sentence boundary inside the window.
	cut := end
	for i := end - 1; i > 0; i-- {
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			cut = i + 1
			break
		}
	}
	if cut < end/2 {
		cut = end // boundary too early, keep the window
	}
	return strings.TrimSpace(string(runes[:cut]))
}
