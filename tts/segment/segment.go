// Package segment splits practice text into navigable sentence- or
// paragraph-sized segments while preserving byte offsets into the
// original text.
package segment

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Granularity selects how text is segmented.
type Granularity int

const (
	// Sentence splits on sentence boundaries.
	Sentence Granularity = iota
	// Paragraph splits on newlines.
	Paragraph
)

// String returns the string representation of the granularity.
func (g Granularity) String() string {
	if g == Paragraph {
		return "paragraph"
	}
	return "sentence"
}

// ParseGranularity parses the persisted string form.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sentence", "":
		return Sentence, nil
	case "paragraph":
		return Paragraph, nil
	}
	return Sentence, fmt.Errorf("unknown granularity %q", s)
}

// Segment is one navigable slice of the practice text. Start and End are
// byte offsets into the original text such that text[Start:End] == Text.
// Segments are immutable once created and rebuilt wholesale whenever the
// text or granularity changes.
type Segment struct {
	ID    int
	Text  string
	Start int
	End   int
	Kind  Granularity
}

// Split segments text at the given granularity. It is deterministic and
// pure: empty text yields an empty slice, returned ranges are valid
// sub-ranges of the input, non-overlapping and in input order, even when
// the same line occurs several times in the document.
func Split(text string, g Granularity) []Segment {
	var segs []Segment
	if g == Paragraph {
		segs = splitParagraphs(text)
	} else {
		segs = splitSentences(text)
	}
	for i := range segs {
		segs[i].ID = i
	}
	return segs
}

// splitParagraphs scans character by character tracking a paragraph-start
// cursor. Substring search would misattribute offsets when a line repeats,
// so only the running index is used.
func splitParagraphs(text string) []Segment {
	var segs []Segment
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			segs = appendTrimmed(segs, text, start, i, Paragraph)
			start = i + 1
		}
	}
	// No trailing newline: flush the final open paragraph.
	if start < len(text) {
		segs = appendTrimmed(segs, text, start, len(text), Paragraph)
	}
	return segs
}

func splitSentences(text string) []Segment {
	var segs []Segment
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '.' || r == '!' || r == '?' {
			end := i + size
			end += spanRunes(text[end:], isSentencePunct)
			end += spanRunes(text[end:], isClosingMark)
			if isSentenceBoundary(text, i, end) {
				segs = appendTrimmed(segs, text, start, end, Sentence)
				start = end
				i = end
				continue
			}
		}
		i += size
	}
	if start < len(text) {
		segs = appendTrimmed(segs, text, start, len(text), Sentence)
	}
	return segs
}

// appendTrimmed narrows [start,end) to exclude surrounding whitespace and
// appends the segment, dropping it when nothing remains.
func appendTrimmed(segs []Segment, text string, start, end int, kind Granularity) []Segment {
	raw := text[start:end]
	lead := strings.IndexFunc(raw, func(r rune) bool { return !unicode.IsSpace(r) })
	if lead < 0 {
		return segs
	}
	trimmed := strings.TrimRightFunc(raw, unicode.IsSpace)
	s := start + lead
	e := start + len(trimmed)
	return append(segs, Segment{
		Text:  text[s:e],
		Start: s,
		End:   e,
		Kind:  kind,
	})
}

func isSentencePunct(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingMark(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// spanRunes returns the byte length of the leading run of s matched by fn.
func spanRunes(s string, fn func(rune) bool) int {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if !fn(r) {
			break
		}
		n += size
	}
	return n
}

// isSentenceBoundary decides whether the punctuation run starting at
// punct (with closers consumed up to end) really terminates a sentence.
func isSentenceBoundary(text string, punct, end int) bool {
	if end >= len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[end:])
	if !unicode.IsSpace(next) {
		// Mid-token period: decimal number, version string, URL.
		return false
	}
	if text[punct] != '.' {
		return true
	}
	word := wordBefore(text, punct)
	if word == "" {
		return true
	}
	lower := strings.ToLower(strings.TrimRight(word, "."))
	if abbreviations[lower] {
		return false
	}
	// Multi-dot tokens like "e.g" or "u.s" read as abbreviations.
	if strings.Contains(lower, ".") {
		return false
	}
	return true
}

// wordBefore returns the whitespace-delimited token ending at pos
// (exclusive).
func wordBefore(text string, pos int) string {
	start := pos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsSpace(r) {
			break
		}
		start -= size
	}
	return text[start:pos]
}

// abbreviations that end in a period without ending the sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "no": true, "nr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true, "co": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
	"nov": true, "dec": true,
	"hr": true, "min": true, "sec": true,
	"lk": true, "nt": true, "jne": true, "vt": true,
}
