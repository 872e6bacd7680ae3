package ocr

import (
	"html"
	"regexp"
	"sync"
)

// The service returns XML-shaped bodies, but only loosely: attribute order
// and nesting vary between endpoints and versions. A plain attribute match
// is more robust here than a strict XML decode.

var (
	attrRegexps   = map[string]*regexp.Regexp{}
	attrRegexpsMu sync.Mutex
)

func attrRegexp(name string) *regexp.Regexp {
	attrRegexpsMu.Lock()
	defer attrRegexpsMu.Unlock()
	re, ok := attrRegexps[name]
	if !ok {
		re = regexp.MustCompile(regexp.QuoteMeta(name) + `="([^"]*)"`)
		attrRegexps[name] = re
	}
	return re
}

// extractAttr finds the first name="value" attribute in body. Entity
// references are unescaped (result URLs carry &amp; in query strings).
func extractAttr(body, name string) (string, bool) {
	m := attrRegexp(name).FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return html.UnescapeString(m[1]), true
}
