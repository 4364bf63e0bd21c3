package page

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/mx-pai/rss-recommendation-platform/pkg/sanitize"
)

const maxAuthorLength = 50

var (
	authorMetaSelectors = []string{
		`meta[name="author"]`,
		`meta[property="article:author"]`,
		`meta[name="byl"]`,
		`meta[name="dc.creator"]`,
	}

	authorElementSelectors = []string{
		".author",
		".byline",
		".post-author",
		".article-author",
		`[rel="author"]`,
		`[itemprop="author"]`,
	}

	// "Author: X" or "by X" inside title attributes
	titleAttrPattern = regexp.MustCompile(`(?i)^\s*(?:author|作者|撰稿|编辑)\s*[:：]\s*(.+)$|^\s*by\s+(.+)$`)

	// free-text bylines
	textPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:author|written by|posted by)\s*[:：]\s*([^\n|,;]{2,50})`),
		regexp.MustCompile(`\bBy\s+([A-Z][\p{L}.'-]+(?:\s+[A-Z][\p{L}.'-]+){0,2})`),
		regexp.MustCompile(`(?:作者|撰稿|编辑|记者|文)\s*[:：/]\s*([\p{Han}A-Za-z·]{2,20})`),
	}

	// marks text near the title as a byline
	authorIndicator = regexp.MustCompile(`(?i)\b(?:by|author)\b|作者|撰稿|编辑|记者`)

	authorLabel = regexp.MustCompile(`(?i)^\s*(?:(?:(?:written|posted)\s+)?by\b|author\b|作者|撰稿人?|编辑|记者|文\s*[:：/])\s*[:：/]?\s*`)
	datePattern = regexp.MustCompile(`\d{4}\s*[-/.年]\s*\d{1,2}\s*[-/.月]\s*\d{1,2}\s*日?`)
	timePattern = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

// Author runs the five author strategies in order and returns the first
// cleaned result, or "" when none yields a usable name.
func Author(doc *goquery.Document) string {
	name, _ := FirstMatch(doc,
		AuthorFromMeta,
		AuthorFromElements,
		AuthorFromTitleAttributes,
		AuthorFromText,
		AuthorNearTitle,
	)
	return name
}

// AuthorFromMeta reads author meta tags.
func AuthorFromMeta(doc *goquery.Document) (string, bool) {
	for _, sel := range authorMetaSelectors {
		if name := CleanAuthor(doc.Find(sel).First().AttrOr("content", "")); name != "" {
			return name, true
		}
	}
	return "", false
}

// AuthorFromElements reads common byline elements.
func AuthorFromElements(doc *goquery.Document) (string, bool) {
	for _, sel := range authorElementSelectors {
		var name string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if goquery.NodeName(s) == "meta" || goquery.NodeName(s) == "link" {
				return true
			}
			name = CleanAuthor(s.Text())
			return name == ""
		})
		if name != "" {
			return name, true
		}
	}
	return "", false
}

// AuthorFromTitleAttributes matches "Author: X" and "by X" title attributes.
func AuthorFromTitleAttributes(doc *goquery.Document) (string, bool) {
	var name string
	doc.Find("[title]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := titleAttrPattern.FindStringSubmatch(s.AttrOr("title", ""))
		if m == nil {
			return true
		}
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		name = CleanAuthor(raw)
		return name == ""
	})
	return name, name != ""
}

// AuthorFromText scans the visible body text for byline phrases.
func AuthorFromText(doc *goquery.Document) (string, bool) {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	text := body.Text()
	for _, p := range textPatterns {
		for _, m := range p.FindAllStringSubmatch(text, 5) {
			if name := CleanAuthor(m[1]); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// AuthorNearTitle looks for a short byline among the headline's neighbours.
func AuthorNearTitle(doc *goquery.Document) (string, bool) {
	title := doc.Find("h1").First()
	if title.Length() == 0 {
		title = doc.Find(".article-title, .post-title, .entry-title, .headline").First()
	}
	if title.Length() == 0 {
		return "", false
	}

	var name string
	check := func(_ int, s *goquery.Selection) bool {
		text := sanitize.CollapseSpaces(s.Text())
		if text == "" || utf8.RuneCountInString(text) > maxAuthorLength*2 || !authorIndicator.MatchString(text) {
			return true
		}
		name = CleanAuthor(text)
		return name == ""
	}

	title.NextAll().Slice(0, min(3, title.NextAll().Length())).EachWithBreak(check)
	if name == "" {
		title.Parent().Find("span, small, p, a, div").EachWithBreak(check)
	}
	if name == "" {
		title.Parent().NextAll().Slice(0, min(2, title.Parent().NextAll().Length())).EachWithBreak(check)
	}
	return name, name != ""
}

// CleanAuthor strips markup, leading labels, dates and times from a raw
// author candidate. Implausible results come back empty.
func CleanAuthor(raw string) string {
	s := tagPattern.ReplaceAllString(raw, " ")
	s = sanitize.CollapseSpaces(s)
	s = authorLabel.ReplaceAllString(s, "")
	s = datePattern.ReplaceAllString(s, " ")
	s = timePattern.ReplaceAllString(s, " ")
	s = sanitize.CollapseSpaces(s)
	s = strings.Trim(s, " |·-–—,，:：/()（）")
	s = authorLabel.ReplaceAllString(s, "")

	n := utf8.RuneCountInString(s)
	if n < 2 || n > maxAuthorLength || strings.Contains(strings.ToLower(s), "http") {
		return ""
	}
	return s
}
