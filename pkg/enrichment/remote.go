package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mx-pai/rss-recommendation-platform/pkg/sanitize"
)

// promptContentLimit caps how much article text is sent per request.
const promptContentLimit = 4000

// RemoteSummarizer asks a Generator for a summary
type RemoteSummarizer struct {
	Generator Generator
}

// Summarize implements Summarizer.
func (s RemoteSummarizer) Summarize(ctx context.Context, content string, maxLen int) (string, error) {
	if s.Generator == nil {
		return "", ErrNoGenerator
	}
	text := clip(sanitize.Text(content), promptContentLimit)
	if text == "" {
		return "", ErrNothingToEnrich
	}

	prompt := fmt.Sprintf(`Write a concise summary of the following article.
Requirements:
1. At most %d characters.
2. Keep the core facts and key points.
3. Write in the same language as the article.
4. Respond with the summary only, without any additional explanation.

Article:
%s`, maxLen, text)

	summary, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptyResponse
	}
	return summary, nil
}

// RemoteClassifier asks a Generator for a label to confidence map
type RemoteClassifier struct {
	Generator Generator
}

// Classify implements Classifier. Prose answers are scanned for label names.
func (c RemoteClassifier) Classify(ctx context.Context, title, content string) (map[string]float64, error) {
	if c.Generator == nil {
		return nil, ErrNoGenerator
	}
	text := clip(sanitize.Text(content), promptContentLimit)
	if text == "" && strings.TrimSpace(title) == "" {
		return nil, ErrNothingToEnrich
	}

	prompt := fmt.Sprintf(`Classify the following article into these categories and give a confidence between 0 and 1 for each one that applies:
%s

Answer in JSON, for example:
{"technology": 0.8, "lifestyle": 0.2}

Title: %s
Content: %s

Respond with the JSON object only.`, strings.Join(Labels, ", "), title, text)

	answer, err := c.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to classify article: %w", err)
	}
	return ParseClassification(answer)
}

// ParseClassification decodes a provider answer. JSON objects are mapped onto
// the known labels with confidences clamped to [0, 1]; anything else falls
// back to a scan for label names with fixed confidences.
func ParseClassification(answer string) (map[string]float64, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyResponse
	}

	raw, ok := decodeJSONObject(answer)
	if !ok {
		return scanLabels(answer), nil
	}

	result := make(map[string]float64)
	for label, score := range raw {
		canonical := canonicalLabel(label)
		if canonical == "" {
			continue
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		result[canonical] += score
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no known labels in %q", ErrUnparseable, clip(answer, 80))
	}
	return result, nil
}

func decodeJSONObject(answer string) (map[string]float64, bool) {
	answer = stripCodeFence(answer)
	var raw map[string]float64
	if err := json.Unmarshal([]byte(answer), &raw); err == nil {
		return raw, true
	}
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(answer[start:end+1]), &raw); err != nil {
		return nil, false
	}
	return raw, true
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func scanLabels(answer string) map[string]float64 {
	lower := strings.ToLower(answer)
	result := make(map[string]float64)
	for _, tc := range textScanConfidence {
		for _, name := range labelNames(tc.label) {
			if strings.Contains(lower, name) {
				result[tc.label] = tc.confidence
				break
			}
		}
	}
	if len(result) == 0 {
		return otherOnly()
	}
	return result
}

// labelNames returns the canonical label plus its non-Latin aliases.
func labelNames(label string) []string {
	names := []string{label}
	for alias, l := range labelAliases {
		if l == label && !isLatin(alias) {
			names = append(names, alias)
		}
	}
	return names
}

// RemoteKeywordExtractor asks a Generator for a comma separated keyword list
type RemoteKeywordExtractor struct {
	Generator Generator
}

// Keywords implements KeywordExtractor.
func (k RemoteKeywordExtractor) Keywords(ctx context.Context, content string, max int) ([]string, error) {
	if k.Generator == nil {
		return nil, ErrNoGenerator
	}
	text := clip(sanitize.Text(content), promptContentLimit)
	if text == "" {
		return nil, ErrNothingToEnrich
	}

	prompt := fmt.Sprintf(`Extract the %d most important keywords from the following article.
Requirements:
1. Order them from most to least important.
2. Each keyword is a short phrase of at most 10 characters.
3. Separate keywords with commas.
4. Respond with the keyword list only.

Article:
%s`, max, text)

	answer, err := k.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keywords: %w", err)
	}
	keywords := ParseKeywords(answer, max)
	if len(keywords) == 0 {
		return nil, ErrEmptyResponse
	}
	return keywords, nil
}

// echoPrefixes mark tokens that repeat the instructions instead of answering.
var echoPrefixes = []string{"请", "以下", "关键词", "here", "keywords", "sure"}

// ParseKeywords splits a provider answer on commas, dropping overlong tokens,
// prompt echoes and duplicates. At most max keywords are returned.
func ParseKeywords(answer string, max int) []string {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == '\n'
	})

	var keywords []string
	seen := make(map[string]bool)
	for _, f := range fields {
		kw := strings.Trim(strings.TrimSpace(f), `"'“”‘’.。`)
		if kw == "" || len([]rune(kw)) > 10 || isEcho(kw) || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
		if max > 0 && len(keywords) == max {
			break
		}
	}
	return keywords
}

func isEcho(kw string) bool {
	lower := strings.ToLower(kw)
	for _, p := range echoPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
