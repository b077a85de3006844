package textutil

import (
	"regexp"
	"strings"
)

// yearStampPattern matches explicit four-digit year references (1900-2099).
var yearStampPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// ageMentionPattern matches age references like "at 32" or "now 47".
var ageMentionPattern = regexp.MustCompile(`(?i)\b(?:at|now|age)\s+\d{1,3}\b`)

// Paragraphs splits text into non-empty paragraphs separated by blank lines.
func Paragraphs(text string) []string {
	blocks := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// YearStamps counts explicit year references in the text.
func YearStamps(text string) int {
	return len(yearStampPattern.FindAllString(text, -1))
}

// AgeMentions counts age references ("at 32", "now 47", "age 19").
func AgeMentions(text string) int {
	return len(ageMentionPattern.FindAllString(text, -1))
}

// CountOccurrences counts non-overlapping occurrences of token in text.
func CountOccurrences(text, token string) int {
	if token == "" {
		return 0
	}
	return strings.Count(text, token)
}
