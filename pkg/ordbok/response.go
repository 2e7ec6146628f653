package ordbok

import (
	"fmt"

	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/tidwall/gjson"
)

// ParseResponse decodes a suggest response body:
//
//	{"q": "fisk", "cnt": 2, "a": {"exact": [["fisk", ["bm", "nn"]]], "freetext": [["fiske", ["bm"]]]}}
//
// Exact matches come before freetext matches and a word appears once,
// with the dictionaries of its first occurrence. Malformed entries are skipped.
func ParseResponse(body []byte) (suggest.List, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	a := gjson.GetBytes(body, "a")
	if !a.IsObject() {
		return nil, fmt.Errorf("%w: missing result object", ErrMalformed)
	}

	exact := parseTier(a.Get("exact"))
	freetext := parseTier(a.Get("freetext"))
	return suggest.Merge(exact, freetext), nil
}

// parseTier maps [[word, [codes...]], ...] into suggestions
func parseTier(tier gjson.Result) []suggest.Suggestion {
	if !tier.IsArray() {
		return nil
	}

	var out []suggest.Suggestion
	tier.ForEach(func(_, entry gjson.Result) bool {
		if !entry.IsArray() {
			return true
		}
		parts := entry.Array()
		if len(parts) == 0 || parts[0].Type != gjson.String || parts[0].String() == "" {
			return true
		}

		var codes []string
		if len(parts) > 1 {
			switch {
			case parts[1].IsArray():
				for _, c := range parts[1].Array() {
					if c.Type == gjson.String {
						codes = append(codes, c.String())
					}
				}
			case parts[1].Type == gjson.String:
				codes = append(codes, parts[1].String())
			}
		}
		out = append(out, suggest.New(parts[0].String(), codes...))
		return true
	})
	return out
}
