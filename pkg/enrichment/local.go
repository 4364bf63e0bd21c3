package enrichment

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/mx-pai/rss-recommendation-platform/pkg/sanitize"
)

// sentenceTerminators end a sentence in Chinese or Latin text.
const sentenceTerminators = "。！？.!?"

var tokenPattern = regexp.MustCompile(`[\p{Han}a-zA-Z]+`)

// LocalSummarizer truncates plain text at a sentence boundary
type LocalSummarizer struct{}

// Summarize implements Summarizer. It never fails.
func (LocalSummarizer) Summarize(_ context.Context, content string, maxLen int) (string, error) {
	return TruncateSummary(content, maxLen), nil
}

// TruncateSummary strips markup and shortens the text to maxLen characters.
// When the cut leaves a sentence terminator beyond 70% of maxLen the summary
// ends there, otherwise an ellipsis is appended.
func TruncateSummary(content string, maxLen int) string {
	text := sanitize.Text(content)
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}

	truncated := runes[:maxLen]
	end := -1
	for i := len(truncated) - 1; i >= 0; i-- {
		if strings.ContainsRune(sentenceTerminators, truncated[i]) {
			end = i
			break
		}
	}
	if float64(end) > float64(maxLen)*0.7 {
		return string(truncated[:end+1])
	}
	return string(truncated) + "..."
}

// LocalClassifier scores labels by keyword overlap
type LocalClassifier struct{}

// Classify implements Classifier. Scores are normalized to sum to 1; text
// matching no keyword is classified as other.
func (LocalClassifier) Classify(_ context.Context, title, content string) (map[string]float64, error) {
	return ClassifyByKeywords(title, content), nil
}

// ClassifyByKeywords counts, per label, how many of its keywords occur in the
// title and plain-text content.
func ClassifyByKeywords(title, content string) map[string]float64 {
	text := strings.ToLower(title + " " + sanitize.Text(content))

	scores := make(map[string]int)
	total := 0
	for _, label := range Labels {
		for _, kw := range labelKeywords[label] {
			if containsKeyword(text, strings.ToLower(kw)) {
				scores[label]++
				total++
			}
		}
	}
	if total == 0 {
		return otherOnly()
	}

	result := make(map[string]float64, len(scores))
	for label, score := range scores {
		result[label] = float64(score) / float64(total)
	}
	return result
}

// containsKeyword matches Han keywords anywhere and Latin keywords only on
// word boundaries, so "ai" does not match inside "said".
func containsKeyword(text, kw string) bool {
	if kw == "" {
		return false
	}
	if !isLatin(kw) {
		return strings.Contains(text, kw)
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(kw)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isLatin(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	c := text[i-1]
	return !isASCIIWordByte(c)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	return !isASCIIWordByte(text[i])
}

func isASCIIWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// LocalKeywordExtractor ranks tokens by frequency
type LocalKeywordExtractor struct{}

// Keywords implements KeywordExtractor. It never fails.
func (LocalKeywordExtractor) Keywords(_ context.Context, content string, max int) ([]string, error) {
	return TopKeywords(content, max), nil
}

// TopKeywords tokenizes the plain text into runs of Han or Latin letters,
// drops stop words and single characters, and returns the max most frequent
// tokens. Ties keep first-occurrence order.
func TopKeywords(content string, max int) []string {
	if max <= 0 {
		return nil
	}
	text := sanitize.Text(content)
	if text == "" {
		return nil
	}

	type wordCount struct {
		word  string
		count int
		first int
	}
	counts := make(map[string]*wordCount)
	for i, token := range tokenPattern.FindAllString(text, -1) {
		word := token
		if isLatin(word) {
			word = strings.ToLower(word)
		}
		if stopWords[word] || len([]rune(word)) <= 1 {
			continue
		}
		if wc, ok := counts[word]; ok {
			wc.count++
			continue
		}
		counts[word] = &wordCount{word: word, count: 1, first: i}
	}

	ranked := make([]*wordCount, 0, len(counts))
	for _, wc := range counts {
		ranked = append(ranked, wc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})

	var keywords []string
	for i := 0; i < len(ranked) && i < max; i++ {
		keywords = append(keywords, ranked[i].word)
	}
	return keywords
}
