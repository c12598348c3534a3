package diff

import (
	"encoding/json"
	"strings"
)

// Repair builds a schema-complete Result from parsed fields. Each field that
// is missing, null or mistyped is replaced by its default on its own; the
// names of replaced fields are returned.
func Repair(fields map[string]json.RawMessage) (Result, []string) {
	out := emptyResult()
	var repaired []string

	mark := func(name string, ok bool) {
		if !ok {
			repaired = append(repaired, name)
		}
	}

	var ok bool
	out.DeltaSummary, ok = stringList(fields["delta_summary"])
	mark("delta_summary", ok)

	var changes map[string]json.RawMessage
	if raw := fields["changes"]; isNull(raw) || json.Unmarshal(raw, &changes) != nil || changes == nil {
		changes = map[string]json.RawMessage{}
	}
	out.Changes.New, ok = stringList(changes["new"])
	mark("changes.new", ok)
	out.Changes.Resolved, ok = stringList(changes["resolved"])
	mark("changes.resolved", ok)
	out.Changes.Worsened, ok = stringList(changes["worsened"])
	mark("changes.worsened", ok)
	out.Changes.Improved, ok = stringList(changes["improved"])
	mark("changes.improved", ok)
	out.Changes.Unchanged, ok = stringList(changes["unchanged"])
	mark("changes.unchanged", ok)

	out.Nudges, ok = nudgeList(fields["nudges"])
	mark("nudges", ok)

	out.SafeDisclaimer, ok = disclaimer(fields["safe_disclaimer"])
	mark("safe_disclaimer", ok)

	return out, repaired
}

// stringList decodes a JSON array of strings. Anything else yields an empty
// list and false.
func stringList(raw json.RawMessage) ([]string, bool) {
	if isNull(raw) {
		return []string{}, false
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return []string{}, false
	}
	return list, true
}

// nudgeList decodes the nudges array. A non-array yields an empty list and
// false; individual entries that are not objects, lack a title or use an
// unknown category are dropped.
func nudgeList(raw json.RawMessage) ([]Nudge, bool) {
	if isNull(raw) {
		return []Nudge{}, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []Nudge{}, false
	}

	nudges := make([]Nudge, 0, len(items))
	for _, item := range items {
		var n Nudge
		if err := json.Unmarshal(item, &n); err != nil {
			continue
		}
		n.Title = strings.TrimSpace(n.Title)
		n.Category = strings.TrimSpace(n.Category)
		if n.Title == "" || !validCategory(n.Category) {
			continue
		}
		nudges = append(nudges, n)
	}
	return nudges, true
}

func validCategory(category string) bool {
	return category == CategoryBillingOrCompleteness
}

func disclaimer(raw json.RawMessage) (string, bool) {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil || strings.TrimSpace(s) == "" {
		return DefaultDisclaimer, false
	}
	return s, true
}
