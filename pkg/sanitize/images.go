package sanitize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ImageURLs returns the src of every <img> in markup, deduplicated and in
// document order. Inline data URIs are skipped.
func ImageURLs(markup string) []string {
	if !strings.Contains(strings.ToLower(markup), "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	var urls []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := ImageSource(s)
		if src == "" || IsDataURI(src) {
			return
		}
		urls = append(urls, src)
	})
	return Dedupe(urls)
}

// ImageSource picks the best source attribute of an <img>, preferring the
// lazy-load attributes that hold the real URL over placeholder src values.
func ImageSource(s *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-original", "src"} {
		if v, ok := s.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// IsDataURI reports whether u is an inline data: URI.
func IsDataURI(u string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u)), "data:")
}

// Dedupe drops empty and repeated values while keeping first-seen order.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
