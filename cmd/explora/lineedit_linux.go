//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

var editor lineEditor

func readInteractiveLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		s, err := stdinReader.ReadString('\n')
		if err != nil && (err != io.EOF || s == "") {
			return "", err
		}
		return trimTrailingNewline(s), nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &newState); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	e := &editor
	redraw := func() {
		fmt.Printf("\r%s%s\x1b[K", prompt, e.String())
		if e.cursor < len(e.line) {
			fmt.Printf("\r%s%s", prompt, string(e.line[:e.cursor]))
		}
	}

	fmt.Print(prompt)
	escState := 0
	var escBuf strings.Builder
	var pending []byte
	var buf [16]byte
	for {
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			b := buf[i]
			if escState != 0 {
				escState = e.escape(escState, b, &escBuf)
				if escState == 0 {
					redraw()
				}
				continue
			}

			// Multi-byte runes arrive a byte at a time.
			if len(pending) > 0 || b >= utf8.RuneSelf {
				pending = append(pending, b)
				if !utf8.FullRune(pending) {
					continue
				}
				r, _ := utf8.DecodeRune(pending)
				pending = pending[:0]
				if r != utf8.RuneError {
					e.insert(r)
					redraw()
				}
				continue
			}

			switch b {
			case 27: // ESC
				escState = 1
			case '\r', '\n':
				fmt.Print("\r\n")
				return e.commit(), nil
			case 3: // Ctrl+C
				fmt.Print("^C\r\n")
				e.commit()
				return "", io.EOF
			case 4: // Ctrl+D
				if len(e.line) == 0 {
					fmt.Print("\r\n")
					return "", io.EOF
				}
			case 127, 8: // backspace
				e.backspace()
				redraw()
			case 1: // Ctrl+A
				e.home()
				redraw()
			case 5: // Ctrl+E
				e.end()
				redraw()
			case 23: // Ctrl+W
				e.deleteWordBack()
				redraw()
			default:
				if b >= 32 {
					e.insert(rune(b))
					redraw()
				}
			}
		}
	}
}
