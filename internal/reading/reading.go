// Package reading splits an oracle reading into its free gist and its
// paywalled deep dive.
package reading

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker separates the gist from the deep dive. It is matched
// case-insensitively.
const Marker = "Deep Dive:"

// Reading is the two-part value produced once when a reading is ingested.
type Reading struct {
	Gist     string
	DeepDive string
}

// Unlockable reports whether the reading has anything to hide.
func (r Reading) Unlockable() bool {
	return r.DeepDive != ""
}

// Split cuts raw on the first occurrence of Marker. Later occurrences stay in
// the deep dive verbatim. A marker followed only by whitespace yields no deep
// dive.
func Split(raw string) Reading {
	i := indexMarker(raw)
	if i < 0 {
		return Reading{Gist: strings.TrimSpace(raw)}
	}

	return Reading{
		Gist:     strings.TrimSpace(raw[:i]),
		DeepDive: strings.TrimSpace(raw[i+len(Marker):]),
	}
}

// indexMarker is an ASCII case-insensitive search, so the returned offset is
// always valid for raw itself.
func indexMarker(raw string) int {
	n := len(Marker)
	for i := 0; i+n <= len(raw); i++ {
		if equalFoldASCII(raw[i:i+n], Marker) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// Tokens splits s on runs of whitespace, keeping every run as a token of its
// own. strings.Join(Tokens(s), "") == s for every s.
func Tokens(s string) []string {
	var tokens []string

	start := 0
	inSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = space
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}

	return tokens
}

// Words counts the non-whitespace tokens of s.
func Words(s string) int {
	n := 0
	for _, tok := range Tokens(s) {
		r, _ := utf8.DecodeRuneInString(tok)
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
