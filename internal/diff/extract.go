package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Extractor pulls a JSON candidate out of free-form model output. ok is false
// when the strategy's shape is not present.
type Extractor func(raw string) (candidate string, ok bool)

var (
	jsonFence = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	anyFence  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// Extractors are tried in order; the first whose shape is present wins.
var Extractors = []Extractor{FencedBlock, BraceSpan, RawText}

// FencedBlock returns the body of a ```json fence, else of any ``` fence.
func FencedBlock(raw string) (string, bool) {
	for _, re := range []*regexp.Regexp{jsonFence, anyFence} {
		if m := re.FindStringSubmatch(raw); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// BraceSpan returns the text from the first '{' to the last '}'.
func BraceSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// RawText returns raw unchanged.
func RawText(raw string) (string, bool) {
	return raw, true
}

// Extract applies Extractors in order.
func Extract(raw string) string {
	for _, extract := range Extractors {
		if candidate, ok := extract(raw); ok {
			return candidate
		}
	}
	return raw
}

// Parse extracts and decodes the top-level JSON object of a comparison
// response. Field types are not checked here; see Repair.
func Parse(raw string) (map[string]json.RawMessage, error) {
	candidate := strings.TrimSpace(Extract(strings.TrimSpace(raw)))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields == nil {
		// Literal null decodes without error.
		return nil, fmt.Errorf("%w: top-level value is null", ErrMalformedResponse)
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
