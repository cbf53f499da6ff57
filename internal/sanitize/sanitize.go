// Package sanitize cleans user and model supplied text before it is
// interpreted, stored or rendered. It strips control characters, XML/HTML
// tags, markdown structure markers and backtick fences so that a stored
// prompt cannot smuggle instructions into later interpreter calls.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxPromptLength is the maximum prompt length in runes.
const MaxPromptLength = 2000

// MaxNameLength is the maximum pole name length in runes.
const MaxNameLength = 80

// MaxDescriptionLength is the maximum relation description length in runes.
const MaxDescriptionLength = 500

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	// It also matches XML processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reMarkdownHeading matches markdown headings at the start of a line.
	reMarkdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)

	// reHorizontalRule matches markdown horizontal rules at the start of a line.
	reHorizontalRule = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)

	reTripleBacktick = regexp.MustCompile("```+")

	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
)

// SanitizePrompt cleans a free-text prompt.
//
// The pipeline runs in this order:
//  1. Strip null bytes and ASCII control characters (except \n, \t)
//  2. Strip XML/HTML tags
//  3. Replace markdown headings with list markers
//  4. Remove markdown horizontal rules
//  5. Collapse triple backticks to a single backtick
//  6. Collapse excessive newlines (3+ -> 2)
//  7. Trim leading/trailing whitespace
//  8. Truncate to MaxPromptLength runes
//
// A prompt that is empty after cleaning is returned as "".
func SanitizePrompt(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reMarkdownHeading.ReplaceAllString(s, "- ")
	s = reHorizontalRule.ReplaceAllString(s, "")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = reExcessiveNewlines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	return truncate(s, MaxPromptLength)
}

// SanitizeName cleans a pole name: tags and control characters are removed,
// anything other than letters, digits, spaces and '-_/.,'() is dropped,
// whitespace is collapsed, and the result is capped at MaxNameLength runes.
func SanitizeName(input string) string {
	if input == "" {
		return ""
	}

	s := reXMLTag.ReplaceAllString(input, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case strings.ContainsRune("-_/.,'()", r):
			b.WriteRune(r)
		}
	}

	s = strings.Join(strings.Fields(b.String()), " ")
	return truncate(s, MaxNameLength)
}

// SanitizeDescription cleans a relation description to a single line.
func SanitizeDescription(input string) string {
	if input == "" {
		return ""
	}
	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = strings.Join(strings.Fields(s), " ")
	return truncate(s, MaxDescriptionLength)
}

// stripControlChars removes ASCII control characters (0x00-0x1F) from the string,
// except for newline (0x0A) and tab (0x09) which are preserved.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncate cuts s to max runes without splitting a multi-byte character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
