// Package glyph implements the exclamation-glyph scanner and the
// warning threshold policy.
//
// The character class covers every exclamation-like glyph the bot
// warns about, from plain U+0021 up to the fullwidth U+FF01 form.
package glyph

import (
	"regexp"
	"unicode/utf8"
)

// Matches https://en.wikipedia.org/wiki/Exclamation_mark
var classPattern = regexp.MustCompile("[!ǃ‼⁈⁉⚠❕❗❢❣ꜝꜞꜟ﹗！]")

// Scan returns every glyph-class occurrence in order. Empty text
// yields no matches.
func Scan(text string) []string {
	return classPattern.FindAllString(text, -1)
}

// Count returns the number of glyph-class occurrences in text.
func Count(text string) int {
	return len(classPattern.FindAllStringIndex(text, -1))
}

// Redact replaces each glyph-class character with a single space.
func Redact(text string) string {
	return classPattern.ReplaceAllString(text, " ")
}

// Length returns the rune count used as the ratio denominator.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}

// Mode selects how the policy decides whether a warning fires.
type Mode string

const (
	// ModeAny fires on any glyph-class match at all.
	ModeAny Mode = "any"
	// ModeRatio fires when matches/length reaches the threshold.
	ModeRatio Mode = "ratio"
)

// Policy decides whether a warning fires for a scanned message.
type Policy struct {
	Mode      Mode
	Threshold float64
}

// ShouldWarn reports whether the policy fires for matchCount glyphs in
// a message of totalLen runes. Empty text never fires.
func (p Policy) ShouldWarn(matchCount, totalLen int) bool {
	if matchCount == 0 {
		return false
	}
	switch p.Mode {
	case ModeRatio:
		total := totalLen
		if total < 1 {
			total = 1
		}
		return float64(matchCount)/float64(total) >= p.Threshold
	default:
		// ModeAny
		return true
	}
}
