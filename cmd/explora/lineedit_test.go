package main

import (
	"strings"
	"testing"
)

func editorWith(s string) *lineEditor {
	e := &lineEditor{}
	for _, r := range s {
		e.insert(r)
	}
	return e
}

func TestLineEditorMultibyte(t *testing.T) {
	e := editorWith("añadir pájaros")
	e.left()
	e.left()
	e.backspace()
	if got := e.String(); got != "añadir pájaos" {
		t.Fatalf("backspace: got %q", got)
	}
	e.home()
	e.right()
	e.deleteForward()
	if got := e.String(); got != "aadir pájaos" {
		t.Fatalf("delete forward: got %q", got)
	}
	e.end()
	e.insert('¡')
	if got := e.String(); got != "aadir pájaos¡" {
		t.Fatalf("insert at end: got %q", got)
	}
}

func TestLineEditorWords(t *testing.T) {
	e := editorWith("los pájaros vuelan")
	e.deleteWordBack()
	if got := e.String(); got != "los pájaros " {
		t.Fatalf("delete word back: got %q", got)
	}
	e.wordLeft()
	if e.cursor != 4 {
		t.Fatalf("word left: cursor %d, want 4", e.cursor)
	}
	e.deleteWordForward()
	if got := e.String(); got != "los  " {
		t.Fatalf("delete word forward: got %q", got)
	}
	e.home()
	e.wordRight()
	if e.cursor != 3 {
		t.Fatalf("word right: cursor %d, want 3", e.cursor)
	}
}

func TestLineEditorHistory(t *testing.T) {
	e := &lineEditor{}
	for _, s := range []string{"uno", "  ", "dos"} {
		for _, r := range s {
			e.insert(r)
		}
		e.commit()
	}
	if len(e.history) != 2 {
		t.Fatalf("history = %q, blank lines must be skipped", e.history)
	}

	for _, r := range "borrador" {
		e.insert(r)
	}
	e.historyPrev()
	if got := e.String(); got != "dos" {
		t.Fatalf("prev: got %q", got)
	}
	e.historyPrev()
	e.historyPrev()
	if got := e.String(); got != "uno" {
		t.Fatalf("prev past start: got %q", got)
	}
	e.historyNext()
	e.historyNext()
	if got := e.String(); got != "borrador" {
		t.Fatalf("next past end should restore the draft, got %q", got)
	}
	if e.browsing {
		t.Fatal("still browsing after returning to the draft")
	}
}

func TestLineEditorEscapeSequences(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		seq    string
		want   string
		cursor int
	}{
		{name: "left", input: "abc", seq: "[D", want: "abc", cursor: 2},
		{name: "home", input: "abc", seq: "[H", want: "abc", cursor: 0},
		{name: "ctrl left", input: "ab cd", seq: "[1;5D", want: "ab cd", cursor: 3},
		{name: "alt b", input: "ab cd", seq: "b", want: "ab cd", cursor: 3},
		{name: "alt backspace", input: "ab cd", seq: "\x7f", want: "ab ", cursor: 3},
		{name: "delete at end", input: "abc", seq: "[3~", want: "abc", cursor: 3},
		{name: "unknown", input: "abc", seq: "[Z", want: "abc", cursor: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := editorWith(tt.input)
			var seq strings.Builder
			state := 1
			for i := 0; i < len(tt.seq); i++ {
				if state == 0 {
					t.Fatalf("sequence ended early at byte %d", i)
				}
				state = e.escape(state, tt.seq[i], &seq)
			}
			if state != 0 {
				t.Fatalf("sequence not terminated, state %d", state)
			}
			if e.String() != tt.want || e.cursor != tt.cursor {
				t.Fatalf("got %q cursor %d, want %q cursor %d", e.String(), e.cursor, tt.want, tt.cursor)
			}
		})
	}
}

func TestTrimTrailingNewline(t *testing.T) {
	for in, want := range map[string]string{
		"hola\n":   "hola",
		"hola\r\n": "hola",
		"hola":     "hola",
		"\n":       "",
	} {
		if got := trimTrailingNewline(in); got != want {
			t.Errorf("trimTrailingNewline(%q) = %q, want %q", in, got, want)
		}
	}
}
