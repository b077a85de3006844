package script

import (
	"regexp"
	"strings"

	"github.com/GoodnightSam/JGL-Assistant/internal/textutil"
)

var sectionHeaderPattern = regexp.MustCompile(`(?m)^\*\*(HOOK|BIO)\*\*\s*$`)

// Sections holds the two narration blocks of a generated script.
type Sections struct {
	Hook string
	Bio  string
}

// SplitSections extracts the HOOK and BIO blocks. Missing or empty blocks
// come back as empty strings; the caller decides whether that gates.
func SplitSections(text string) Sections {
	matches := sectionHeaderPattern.FindAllStringSubmatchIndex(text, -1)
	var sections Sections
	for i, match := range matches {
		start := match[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(text[start:end])
		switch text[match[2]:match[3]] {
		case "HOOK":
			sections.Hook = body
		case "BIO":
			sections.Bio = body
		}
	}
	return sections
}

// Analysis captures the advisory style metrics computed for every accepted
// script. None of these gate acceptance; they are logged and stored so an
// editor can judge the output at a glance.
type Analysis struct {
	WordCount   int `json:"word_count"`
	YearStamps  int `json:"year_stamps"`
	AgeMentions int `json:"age_mentions"`
	HookWords   int `json:"hook_words"`
	BioWords    int `json:"bio_words"`
}

// Analyze computes the advisory metrics for a script.
func Analyze(text string) Analysis {
	sections := SplitSections(text)
	return Analysis{
		WordCount:   textutil.WordCount(text),
		YearStamps:  textutil.YearStamps(text),
		AgeMentions: textutil.AgeMentions(text),
		HookWords:   textutil.WordCount(sections.Hook),
		BioWords:    textutil.WordCount(sections.Bio),
	}
}
