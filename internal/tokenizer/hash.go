package tokenizer

import "unicode/utf16"

// VocabModulus bounds every token id to [0, VocabModulus).
const VocabModulus = 10000

// HashToken maps a token to a deterministic id using a 31-based rolling hash
// over UTF-16 code units with 32-bit wraparound. Distinct tokens may collide.
func HashToken(token string) int {
	var h int32
	for _, c := range utf16.Encode([]rune(token)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % VocabModulus)
}

// HashAll returns the id of every token, in order.
func HashAll(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = HashToken(tok)
	}
	return ids
}
