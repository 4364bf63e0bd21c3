// Package sanitize holds the stateless HTML helpers shared by the extractors:
// an allowlist filter, plain-text conversion, word counting, image URL
// extraction and lenient date parsing.
package sanitize

import (
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func ugcPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
	return policy
}

// HTML filters raw markup through the allowlist policy and trims the result.
func HTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return strings.TrimSpace(ugcPolicy().Sanitize(raw))
}

// Text strips all markup and collapses runs of whitespace to single spaces.
func Text(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return CollapseSpaces(markup)
	}
	doc.Find("script, style, noscript").Remove()
	return CollapseSpaces(doc.Text())
}

// WordCount is the number of non-whitespace characters in the sanitized,
// markup-free body. Counting runes rather than space-separated words keeps
// the figure meaningful for CJK text.
func WordCount(body string) int {
	n := 0
	for _, r := range Text(HTML(body)) {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// CollapseSpaces trims s and replaces every whitespace run with one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
