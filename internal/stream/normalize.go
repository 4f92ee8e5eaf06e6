package stream

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	punctuationTail = regexp.MustCompile(`([.!?])\s*`)
)

// Normalize cleans accumulated text for emission: whitespace runs collapse
// to a single space, each sentence-ending punctuation mark is followed by
// exactly one space, and surrounding whitespace is trimmed. Idempotent.
func Normalize(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = punctuationTail.ReplaceAllString(text, "$1 ")
	return strings.TrimSpace(text)
}
