/*
Package dictionary describes the dictionary variants served by the UiB suggest API.

Every word returned by the service carries a list of short dictionary codes.
The two standardized written forms of Norwegian are known:

	bm  Bokmål
	nn  Nynorsk

Codes outside that set are kept as they are and rendered without a label
translation, so an unexpected code from the service never breaks rendering.
*/
package dictionary

import "strings"

// Dictionary is a dictionary variant code as sent by the service.
type Dictionary string

const (
	Bokmal  Dictionary = "bm"
	Nynorsk Dictionary = "nn"
)

// All lists the known variants in request order.
var All = []Dictionary{Bokmal, Nynorsk}


// Parse normalizes a raw code. Unknown codes pass through unchanged.
func Parse(code string) Dictionary {
	return Dictionary(strings.ToLower(strings.TrimSpace(code)))
}

// Known reports whether d is one of the recognized variants.
func (d Dictionary) Known() bool {
	return d == Bokmal || d == Nynorsk
}

// Label returns the human readable name, or the raw code for unknown variants.
func (d Dictionary) Label() string {
	switch d {
	case Bokmal:
		return "Bokmål"
	case Nynorsk:
		return "Nynorsk"
	default:
		return string(d)
	}
}

// Labels joins the labels of ds with ", " keeping input order.
func Labels(ds []Dictionary) string {
	labels := make([]string, 0, len(ds))
	for _, d := range ds {
		if d == "" {
			continue
		}
		labels = append(labels, d.Label())
	}
	return strings.Join(labels, ", ")
}

// Codes joins the raw codes of ds with commas, the format the API expects.
func Codes(ds []Dictionary) string {
	codes := make([]string, len(ds))
	for i, d := range ds {
		codes[i] = string(d)
	}
	return strings.Join(codes, ",")
}
