package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFencedBlock(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"json fence", "Here:\n```json\n{\"a\":1}\n```\nDone", "{\"a\":1}\n", true},
		{"uppercase json fence", "```JSON {\"a\":1}```", "{\"a\":1}", true},
		{"plain fence", "```\n{\"b\":2}```", "{\"b\":2}", true},
		{"json fence preferred", "```\nfirst```\n```json\n{\"c\":3}```", "{\"c\":3}", true},
		{"no fence", "{\"a\":1}", "", false},
		{"unterminated", "```json {\"a\":1}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FencedBlock(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBraceSpan(t *testing.T) {
	got, ok := BraceSpan(`Sure! {"a": {"b": 1}} Hope that helps.`)
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, ok = BraceSpan("no braces")
	assert.False(t, ok)

	_, ok = BraceSpan("} backwards {")
	assert.False(t, ok)
}

func TestRawText(t *testing.T) {
	got, ok := RawText("anything")
	assert.True(t, ok)
	assert.Equal(t, "anything", got)
}

func TestExtract_Order(t *testing.T) {
	assert.Equal(t, `{"x":1}`, Extract("prefix {\"y\":2} ```json{\"x\":1}```"))
	assert.Equal(t, `{"y":2}`, Extract(`prefix {"y":2} suffix`))
	assert.Equal(t, "plain", Extract("plain"))
}

func TestParse(t *testing.T) {
	fields, err := Parse("```json\n{\"delta_summary\": [\"a\"], \"nudges\": 5}\n```")
	require.NoError(t, err)
	assert.Contains(t, fields, "delta_summary")
	assert.Contains(t, fields, "nudges")

	_, err = Parse("I could not compare these notes.")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = Parse("[1, 2, 3]")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = Parse("null")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = Parse(`{"delta_summary": [`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
