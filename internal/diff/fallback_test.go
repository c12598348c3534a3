package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallback_PresenceAbsence(t *testing.T) {
	got := Fallback("A. B.", "B. C.")

	assert.Equal(t, []string{"C."}, got.Changes.New)
	assert.Equal(t, []string{"A."}, got.Changes.Resolved)
	assert.Equal(t, []string{}, got.Changes.Worsened)
	assert.Equal(t, []string{}, got.Changes.Improved)
	assert.Equal(t, []string{}, got.Changes.Unchanged)
	assert.Equal(t, []string{"Added 1 new statements", "Resolved 1 statements"}, got.DeltaSummary)
	assert.Equal(t, []Nudge{}, got.Nudges)
	assert.Equal(t, DefaultDisclaimer, got.SafeDisclaimer)
}

func TestFallback_Idempotent(t *testing.T) {
	prior := "Patient has cough. Denies fever! Taking lisinopril? Sleeps well."
	current := "Denies fever! Cough resolved. New rash on left arm. Sleeps well."

	first := Fallback(prior, current)
	second := Fallback(prior, current)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Cough resolved.", "New rash on left arm."}, first.Changes.New)
	assert.Equal(t, []string{"Patient has cough.", "Taking lisinopril?"}, first.Changes.Resolved)
}

func TestFallback_ExactMatchOnly(t *testing.T) {
	got := Fallback("Cough improved.", "cough improved.")

	assert.Equal(t, []string{"cough improved."}, got.Changes.New)
	assert.Equal(t, []string{"Cough improved."}, got.Changes.Resolved)
}

func TestFallback_CapsAt25(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Finding %d. ", i)
	}

	got := Fallback("", b.String())

	assert.Len(t, got.Changes.New, 25)
	assert.Equal(t, "Finding 0.", got.Changes.New[0])
	assert.Equal(t, "Finding 24.", got.Changes.New[24])
	assert.Equal(t, "Added 25 new statements", got.DeltaSummary[0])
	assert.Equal(t, "Resolved 0 statements", got.DeltaSummary[1])
}

func TestFallback_EmptyInputs(t *testing.T) {
	got := Fallback("", "   ")

	assert.Equal(t, []string{}, got.Changes.New)
	assert.Equal(t, []string{}, got.Changes.Resolved)
	assert.Len(t, got.DeltaSummary, 2)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"basic", "A. B.", []string{"A.", "B."}},
		{"mixed terminators", "Fever? No! Cough.", []string{"Fever?", "No!", "Cough."}},
		{"whitespace runs", "One.\n\n  Two.\tThree", []string{"One.", "Two.", "Three"}},
		{"no space after period", "BP 120/80 at 3.5mg dose. Stable.", []string{"BP 120/80 at 3.5mg dose.", "Stable."}},
		{"no terminator", "no punctuation here", []string{"no punctuation here"}},
		{"space before terminator", "Wait . Then", []string{"Wait .", "Then"}},
		{"ellipsis", "Hmm... okay.", []string{"Hmm...", "okay."}},
		{"empty", "", nil},
		{"only whitespace", "  \n ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}
