package diff

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFallbackChanges caps the new and resolved lists of a fallback diff.
const maxFallbackChanges = 25

// Fallback computes a presence/absence diff by exact sentence matching. It
// makes no semantic judgment, so worsened, improved and unchanged stay empty.
func Fallback(priorNote, currentTranscript string) Result {
	prior := SplitSentences(priorNote)
	current := SplitSentences(currentTranscript)

	out := emptyResult()
	out.Changes.New = missingFrom(current, prior)
	out.Changes.Resolved = missingFrom(prior, current)
	out.DeltaSummary = []string{
		fmt.Sprintf("Added %d new statements", len(out.Changes.New)),
		fmt.Sprintf("Resolved %d statements", len(out.Changes.Resolved)),
	}
	return out
}

// missingFrom returns the entries of from that do not occur in other, in
// order, capped at maxFallbackChanges.
func missingFrom(from, other []string) []string {
	seen := make(map[string]struct{}, len(other))
	for _, s := range other {
		seen[s] = struct{}{}
	}

	out := []string{}
	for _, s := range from {
		if _, ok := seen[s]; ok {
			continue
		}
		out = append(out, s)
		if len(out) == maxFallbackChanges {
			break
		}
	}
	return out
}

// SplitSentences breaks text where '.', '!' or '?' is followed by whitespace.
// Terminators stay attached to their sentence; segments are trimmed and empty
// ones dropped.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) || i == 0 || !isTerminator(text[i-1]) {
			i += size
			continue
		}

		if segment := strings.TrimSpace(text[start:i]); segment != "" {
			sentences = append(sentences, segment)
		}
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		start = i
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
