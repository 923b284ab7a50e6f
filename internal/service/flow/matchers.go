package flow

import (
	"regexp"
	"strings"
)

// Matcher extracts a slot value from an utterance. Returns the captured
// value and whether the field matched.
type Matcher func(text string) (string, bool)

var (
	// Any standalone number, with or without a count word. Numbers that
	// are part of a clock time (colon or am/pm suffix) are skipped so
	// "5pm" never fills a count field.
	numberToken = regexp.MustCompile(`\b(\d+)(:\d{2})?\s*([ap]m)?\b`)

	timePattern = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s*[ap]m|\d{1,2}:\d{2})\b`)

	datePattern = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?)\b`)
)

var dateWords = []string{
	"today", "tomorrow", "tonight", "weekend",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"aaj", "kal", "parso",
}

// MatchNumber captures the first number that is not part of a clock time.
func MatchNumber(text string) (string, bool) {
	for _, m := range numberToken.FindAllStringSubmatch(strings.ToLower(text), -1) {
		if m[2] != "" || m[3] != "" {
			continue
		}
		return m[1], true
	}
	return "", false
}

// MatchTime captures a time-of-day expression like "5pm" or "17:30".
func MatchTime(text string) (string, bool) {
	if m := timePattern.FindString(text); m != "" {
		return strings.ToLower(strings.ReplaceAll(m, " ", "")), true
	}
	return "", false
}

// MatchDate captures a date keyword or a dd/mm style pattern.
func MatchDate(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range dateWords {
		if containsWord(lower, w) {
			return w, true
		}
	}
	if m := datePattern.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// MatchFreeText accepts any non-empty utterance verbatim.
func MatchFreeText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	return trimmed, trimmed != ""
}

// containsWord is a word-boundary substring check so "kal" does not
// fire inside "kalam".
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
