//go:build !linux

package main

import "io"

func readInteractiveLine(_ string) (string, error) {
	s, err := stdinReader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return trimTrailingNewline(s), nil
}
