package transcript

import (
	"strings"
)

// UntitledPlaceholder labels a transcript with no usable words.
const UntitledPlaceholder = "Untitled"

const maxFallbackTitleWords = 10

// FallbackTitle takes the first sentence of text and keeps at most ten words.
func FallbackTitle(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if i := strings.IndexAny(cleaned, ".!?"); i >= 0 {
		cleaned = cleaned[:i]
	}

	words := strings.Fields(cleaned)
	if len(words) > maxFallbackTitleWords {
		words = words[:maxFallbackTitleWords]
	}

	if title := strings.Join(words, " "); title != "" {
		return title
	}
	return UntitledPlaceholder
}

// CleanTitle strips surrounding quotes and trailing punctuation from a
// model-generated title.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimPrefix(title, `"`)
	title = strings.TrimSuffix(title, `"`)
	title = strings.TrimRight(title, ".:!?")
	return strings.TrimSpace(title)
}
