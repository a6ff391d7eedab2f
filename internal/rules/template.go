package rules

import (
	"regexp"
)

// Wildcard replaces placeholders that do not resolve.
const Wildcard = "*"

var placeholderPattern = regexp.MustCompile(`\{\{([\w.\[\]]+)\}\}`)

// ResolveTemplate substitutes every {{path}} placeholder in tmpl with the
// value found at path in payload. Missing or nil values resolve to Wildcard.
func ResolveTemplate(tmpl string, payload any) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		expr := placeholderPattern.FindStringSubmatch(match)[1]
		path, err := ParsePath(expr)
		if err != nil {
			return Wildcard
		}
		res, err := Resolve(path, payload)
		if err != nil || !res.Found || res.Value == nil {
			return Wildcard
		}
		return stringify(res.Value)
	})
}
