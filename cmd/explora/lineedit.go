package main

import (
	"bufio"
	"os"
	"strings"
	"unicode"
)

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

var stdinReader = bufio.NewReader(os.Stdin)

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}

// lineEditor is the editing state of one input line plus the history shared
// across lines. Positions count runes, so multi-byte input edits correctly.
type lineEditor struct {
	line   []rune
	cursor int

	history  []string
	histPos  int
	browsing bool
	draft    []rune
}

func (e *lineEditor) String() string { return string(e.line) }

func (e *lineEditor) insert(r rune) {
	e.line = append(e.line, 0)
	copy(e.line[e.cursor+1:], e.line[e.cursor:])
	e.line[e.cursor] = r
	e.cursor++
}

func (e *lineEditor) backspace() {
	if e.cursor == 0 {
		return
	}
	e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
	e.cursor--
}

func (e *lineEditor) deleteForward() {
	if e.cursor < len(e.line) {
		e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
	}
}

func (e *lineEditor) left() {
	if e.cursor > 0 {
		e.cursor--
	}
}

func (e *lineEditor) right() {
	if e.cursor < len(e.line) {
		e.cursor++
	}
}

func (e *lineEditor) home() { e.cursor = 0 }
func (e *lineEditor) end()  { e.cursor = len(e.line) }

func (e *lineEditor) wordStart() int {
	i := e.cursor
	for i > 0 && unicode.IsSpace(e.line[i-1]) {
		i--
	}
	for i > 0 && !unicode.IsSpace(e.line[i-1]) {
		i--
	}
	return i
}

func (e *lineEditor) wordEnd() int {
	i := e.cursor
	for i < len(e.line) && unicode.IsSpace(e.line[i]) {
		i++
	}
	for i < len(e.line) && !unicode.IsSpace(e.line[i]) {
		i++
	}
	return i
}

func (e *lineEditor) wordLeft()  { e.cursor = e.wordStart() }
func (e *lineEditor) wordRight() { e.cursor = e.wordEnd() }

func (e *lineEditor) deleteWordBack() {
	start := e.wordStart()
	e.line = append(e.line[:start], e.line[e.cursor:]...)
	e.cursor = start
}

func (e *lineEditor) deleteWordForward() {
	end := e.wordEnd()
	e.line = append(e.line[:e.cursor], e.line[end:]...)
}

func (e *lineEditor) historyPrev() {
	if len(e.history) == 0 {
		return
	}
	if !e.browsing {
		e.draft = append(e.draft[:0], e.line...)
		e.browsing = true
		e.histPos = len(e.history)
	}
	if e.histPos > 0 {
		e.histPos--
		e.setLine([]rune(e.history[e.histPos]))
	}
}

func (e *lineEditor) historyNext() {
	if !e.browsing {
		return
	}
	if e.histPos < len(e.history)-1 {
		e.histPos++
		e.setLine([]rune(e.history[e.histPos]))
		return
	}
	e.histPos = len(e.history)
	e.setLine(e.draft)
	e.browsing = false
}

func (e *lineEditor) setLine(r []rune) {
	e.line = append(e.line[:0], r...)
	e.cursor = len(e.line)
}

// commit returns the current line, records it in the history when it is not
// blank and clears the editor for the next line.
func (e *lineEditor) commit() string {
	out := string(e.line)
	if strings.TrimSpace(out) != "" {
		e.history = append(e.history, out)
	}
	e.line = e.line[:0]
	e.cursor = 0
	e.browsing = false
	e.draft = e.draft[:0]
	return out
}

// escape consumes one byte of an escape sequence and returns the next escape
// state, zero once the sequence is complete.
func (e *lineEditor) escape(state int, b byte, seq *strings.Builder) int {
	switch state {
	case 1:
		switch b {
		case '[':
			seq.Reset()
			return 2
		case 'b', 'B': // Alt+b
			e.wordLeft()
		case 'f', 'F': // Alt+f
			e.wordRight()
		case 127: // Alt+Backspace
			e.deleteWordBack()
		}
		return 0
	default:
		seq.WriteByte(b)
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
			e.csi(seq.String())
			return 0
		}
		return state
	}
}

func (e *lineEditor) csi(seq string) {
	switch seq {
	case "A":
		e.historyPrev()
	case "B":
		e.historyNext()
	case "D":
		e.left()
	case "C":
		e.right()
	case "H":
		e.home()
	case "F":
		e.end()
	case "3~":
		e.deleteForward()
	case "1;5D", "5D":
		e.wordLeft()
	case "1;5C", "5C":
		e.wordRight()
	case "3;5~":
		e.deleteWordForward()
	}
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
