// Package vocab defines the closed demonstration vocabulary that next-token
// probabilities are computed over, together with the hand-authored context
// rules that bias a few continuations.
package vocab

import (
	"slices"
	"strings"
)

// ContextBias is the logit boost applied to a matched rule's continuations.
const ContextBias = 2.0

// Rule boosts Continuations when Key appears in the context text.
type Rule struct {
	Key           string
	Continuations []string
}

// Vocabulary is an immutable token list plus ordered context rules. The zero
// value is an empty vocabulary.
type Vocabulary struct {
	tokens []string
	rules  []Rule
}

// New builds a vocabulary, dropping duplicate tokens while keeping the first
// occurrence's position. The inputs are copied.
func New(tokens []string, rules []Rule) Vocabulary {
	seen := make(map[string]struct{}, len(tokens))
	uniq := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		uniq = append(uniq, tok)
	}
	rs := make([]Rule, len(rules))
	for i, r := range rules {
		rs[i] = Rule{Key: r.Key, Continuations: slices.Clone(r.Continuations)}
	}
	return Vocabulary{tokens: uniq, rules: rs}
}

// Tokens returns a copy of the vocabulary tokens in order.
func (v Vocabulary) Tokens() []string {
	return slices.Clone(v.tokens)
}

// Len returns the number of tokens.
func (v Vocabulary) Len() int {
	return len(v.tokens)
}

// Token returns the i-th token.
func (v Vocabulary) Token(i int) string {
	return v.tokens[i]
}

// Contains reports whether tok is part of the vocabulary.
func (v Vocabulary) Contains(tok string) bool {
	return slices.Contains(v.tokens, tok)
}

// Rules returns a copy of the context rules in declaration order.
func (v Vocabulary) Rules() []Rule {
	out := make([]Rule, len(v.rules))
	for i, r := range v.rules {
		out[i] = Rule{Key: r.Key, Continuations: slices.Clone(r.Continuations)}
	}
	return out
}

// Preferred returns the continuations of the first rule whose key is a
// case-insensitive substring of text, or nil when none match.
func (v Vocabulary) Preferred(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	for _, r := range v.rules {
		if strings.Contains(lower, strings.ToLower(r.Key)) {
			return slices.Clone(r.Continuations)
		}
	}
	return nil
}

// WithRules returns a copy of v using rules instead of its own.
func (v Vocabulary) WithRules(rules []Rule) Vocabulary {
	return New(v.tokens, rules)
}
