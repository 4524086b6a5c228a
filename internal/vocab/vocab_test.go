package vocab

import (
	"reflect"
	"testing"
)

func TestDefaultVocabulary(t *testing.T) {
	t.Parallel()

	v := Default()
	if n := v.Len(); n < 150 || n > 220 {
		t.Fatalf("default vocabulary has %d tokens, want 150..220", n)
	}
	seen := map[string]bool{}
	for _, tok := range v.Tokens() {
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
	for _, r := range v.Rules() {
		for _, c := range r.Continuations {
			if !v.Contains(c) {
				t.Errorf("rule %q continuation %q missing from vocabulary", r.Key, c)
			}
		}
	}
}

func TestNewDeduplicatesAndCopies(t *testing.T) {
	t.Parallel()

	tokens := []string{"a", "b", "a", "c"}
	v := New(tokens, nil)
	tokens[0] = "z"
	if got := v.Tokens(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Tokens() = %v", got)
	}

	out := v.Tokens()
	out[0] = "mutated"
	if v.Token(0) != "a" {
		t.Fatal("Tokens() exposed internal storage")
	}
}

func TestPreferredFirstMatchWins(t *testing.T) {
	t.Parallel()

	v := New([]string{"x"}, []Rule{
		{Key: "la playa", Continuations: []string{"y"}},
		{Key: "playa", Continuations: []string{"arena"}},
	})

	tests := []struct {
		text string
		want []string
	}{
		{"Vamos a LA PLAYA hoy", []string{"y"}},
		{"una playa", []string{"arena"}},
		{"montaña", nil},
		{"", nil},
	}
	for _, tc := range tests {
		if got := v.Preferred(tc.text); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Preferred(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestPreferredCaseInsensitiveKey(t *testing.T) {
	t.Parallel()

	if got := Default().Preferred("mi ciudad favorita es barcelona"); len(got) == 0 {
		t.Fatal("expected the Barcelona rule to match regardless of case")
	}
}

func TestWithRulesLeavesOriginalUntouched(t *testing.T) {
	t.Parallel()

	base := Default()
	swapped := base.WithRules(nil)
	if len(swapped.Rules()) != 0 {
		t.Fatal("expected no rules")
	}
	if len(base.Rules()) == 0 {
		t.Fatal("original rules were dropped")
	}
	if swapped.Len() != base.Len() {
		t.Fatal("tokens changed")
	}
}

func TestZeroValueIsEmpty(t *testing.T) {
	t.Parallel()

	var v Vocabulary
	if v.Len() != 0 || v.Preferred("la playa") != nil {
		t.Fatal("zero vocabulary should be empty")
	}
}
