package page

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/mx-pai/rss-recommendation-platform/pkg/sanitize"
)

// DefaultTitle is used when no title heuristic matches.
const DefaultTitle = "untitled"

var (
	// TitleSelectors are tried in order; meta tags yield their content attribute.
	TitleSelectors = []string{
		"h1",
		`meta[property="og:title"]`,
		`meta[name="twitter:title"]`,
		".article-title",
		".post-title",
		".entry-title",
		".headline",
		"title",
	}

	// ContentSelectors are candidate body containers, most specific first.
	ContentSelectors = []string{
		"article",
		".article-content",
		".post-content",
		".entry-content",
		".content",
		".post",
		".story-content",
		".main-content",
	}

	// DateSelectors locate the publish date; meta and time tags yield attributes.
	DateSelectors = []string{
		`meta[property="article:published_time"]`,
		`meta[name="publish_date"]`,
		`meta[name="pubdate"]`,
		`meta[itemprop="datePublished"]`,
		"time",
		".publish-date",
		".post-date",
		".article-date",
		".entry-date",
	}

	// TitleWaitSelector and ContentWaitSelector are waited for while rendering.
	TitleWaitSelector   = "h1, .title, .article-title, .post-title"
	ContentWaitSelector = "article, .content, .post-content, .article-content"

	// noiseSelector matches nodes removed from a body container before taking its text.
	noiseSelector = "script, style, noscript, nav, .advertisement, .ad, .ads, .sidebar, .comments, #comments"

	imageHint = regexp.MustCompile(`(?i)cover|hero|banner`)
)

// Strategy is one step of a fallback chain
type Strategy func(doc *goquery.Document) (string, bool)

// FirstMatch runs strategies in order and returns the first success.
func FirstMatch(doc *goquery.Document, strategies ...Strategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v, true
		}
	}
	return "", false
}

// selectorText returns the text of the first element matched by sel, or the
// content attribute for meta tags.
func selectorText(sel string) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		var value string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value = elementValue(s)
			return value == ""
		})
		return value, value != ""
	}
}

func elementValue(s *goquery.Selection) string {
	if goquery.NodeName(s) == "meta" {
		return strings.TrimSpace(s.AttrOr("content", ""))
	}
	return sanitize.CollapseSpaces(s.Text())
}

// Title returns the first non-empty title, trying extra selectors before the defaults.
func Title(doc *goquery.Document, extra []string) string {
	var strategies []Strategy
	for _, sel := range selectors(extra, TitleSelectors) {
		strategies = append(strategies, selectorText(sel))
	}
	if title, ok := FirstMatch(doc, strategies...); ok {
		return title
	}
	return DefaultTitle
}

// Body returns the cleaned text of the first container whose text reaches
// minLength characters. Containers below the floor are reported through skipped.
func Body(doc *goquery.Document, extra []string, minLength int, skipped func(sel string, length int)) string {
	for _, sel := range selectors(extra, ContentSelectors) {
		var body string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			clone := s.Clone()
			clone.Find(noiseSelector).Remove()
			text := sanitize.CollapseSpaces(clone.Text())
			if n := utf8.RuneCountInString(text); n < minLength {
				if skipped != nil {
					skipped(sel, n)
				}
				return true
			}
			body = text
			return false
		})
		if body != "" {
			return body
		}
	}
	return ""
}

// PublishedAt returns the first parseable publish date.
func PublishedAt(doc *goquery.Document) *time.Time {
	for _, sel := range DateSelectors {
		var found *time.Time
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, v := range dateValues(s) {
				if t := sanitize.ParseDate(v); t != nil {
					found = t
					return false
				}
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func dateValues(s *goquery.Selection) []string {
	if goquery.NodeName(s) == "meta" {
		return []string{s.AttrOr("content", "")}
	}
	return []string{s.AttrOr("datetime", ""), strings.TrimSpace(s.Text())}
}

// Images collects social-card images, then sufficiently large body images.
// When neither yields anything, images hinted as cover, hero or banner are
// accepted. The result is deduplicated, absolute and capped at max.
func Images(doc *goquery.Document, base *url.URL, minSize, max int) []string {
	var images []string
	doc.Find(`meta[property="og:image"], meta[name="twitter:image"], meta[name="twitter:image:src"], meta[property="twitter:image"]`).
		Each(func(_ int, s *goquery.Selection) {
			images = append(images, resolve(base, s.AttrOr("content", "")))
		})

	doc.Find("body img").Each(func(_ int, s *goquery.Selection) {
		src := sanitize.ImageSource(s)
		if src == "" || sanitize.IsDataURI(src) || tooSmall(s, minSize) {
			return
		}
		images = append(images, resolve(base, src))
	})

	images = sanitize.Dedupe(images)
	if len(images) == 0 {
		doc.Find("img").Each(func(_ int, s *goquery.Selection) {
			src := sanitize.ImageSource(s)
			if src == "" || sanitize.IsDataURI(src) || !imageHint.MatchString(src) {
				return
			}
			images = append(images, resolve(base, src))
		})
		images = sanitize.Dedupe(images)
	}

	if max > 0 && len(images) > max {
		images = images[:max]
	}
	return images
}

// tooSmall reports whether a declared width or height is below min.
func tooSmall(s *goquery.Selection, min int) bool {
	for _, attr := range []string{"width", "height"} {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
		if err == nil && n < min {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil && !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	return u.String()
}

func selectors(extra, defaults []string) []string {
	out := make([]string, 0, len(extra)+len(defaults))
	for _, sel := range extra {
		if sel = strings.TrimSpace(sel); sel != "" {
			out = append(out, sel)
		}
	}
	return append(out, defaults...)
}
