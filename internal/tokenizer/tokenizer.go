// Package tokenizer splits text into the word, punctuation and whitespace
// units used by the simulation, and assigns each unit a hashed id.
package tokenizer

import (
	"regexp"
	"strings"
)

// boundary matches a whitespace run or a single split punctuation mark.
// Whitespace covers ASCII whitespace including vertical tab, the byte order
// mark and every Unicode separator.
var boundary = regexp.MustCompile(`[\s\v\x{FEFF}\p{Z}]+|[.,!?;:()"\-]`)

// Tokenize lowercases text and splits it on whitespace and punctuation.
// Punctuation marks are returned as tokens of their own; whitespace is dropped.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := make([]string, 0, len(text)/4+1)

	appendToken := func(s string) {
		if strings.TrimSpace(s) != "" {
			tokens = append(tokens, s)
		}
	}

	last := 0
	for _, loc := range boundary.FindAllStringIndex(text, -1) {
		appendToken(text[last:loc[0]])
		if sep := text[loc[0]:loc[1]]; IsPunctuation(sep) {
			tokens = append(tokens, sep)
		}
		last = loc[1]
	}
	appendToken(text[last:])
	return tokens
}

// IsPunctuation reports whether tok is one of the split punctuation marks.
func IsPunctuation(tok string) bool {
	return len(tok) == 1 && strings.ContainsAny(tok, `.,!?;:()"-`)
}
