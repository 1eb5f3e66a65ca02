package match

import (
	"strings"
	"unicode"
)

// Token is one word of the input with its rune offsets and folded form.
type Token struct {
	Text  string
	Norm  string
	Start int
	End   int
}

// leet maps common obfuscation characters back to letters ("L00k at th!s").
var leet = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'8': 'b',
	'@': 'a',
	'$': 's',
	'!': 'i',
}

// Tokenize splits text into words. Offsets are rune indices so they line up with
// classifier spans.
func Tokenize(text string) []Token {
	runes := []rune(text)
	var tokens []Token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		for start < end && runes[start] == '\'' {
			start++
		}
		// a trailing "!" is punctuation, not an obfuscated i
		for end > start+1 && (runes[end-1] == '!' || runes[end-1] == '\'') {
			end--
		}
		if start >= end {
			start = -1
			return
		}
		word := string(runes[start:end])
		if norm := Fold(word); norm != "" {
			tokens = append(tokens, Token{Text: word, Norm: norm, Start: start, End: end})
		}
		start = -1
	}
	for i, r := range runes {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(runes))
	return tokens
}

// Fold lowercases a word, undoes leetspeak when the word contains a letter and squeezes
// runs of three or more identical letters ("stuuupid" -> "stupid").
func Fold(word string) string {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" {
		return ""
	}
	hasLetter := strings.IndexFunc(lower, unicode.IsLetter) >= 0

	var b strings.Builder
	b.Grow(len(lower))
	var prev rune
	run := 0
	pending := []rune{}
	emit := func() {
		if run >= 3 && unicode.IsLetter(prev) {
			b.WriteRune(prev)
		} else {
			for _, p := range pending {
				b.WriteRune(p)
			}
		}
		pending = pending[:0]
	}
	for _, r := range lower {
		if hasLetter {
			if mapped, ok := leet[r]; ok {
				r = mapped
			}
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if r == prev {
			run++
			pending = append(pending, r)
			continue
		}
		emit()
		prev = r
		run = 1
		pending = append(pending, r)
	}
	emit()
	return b.String()
}

// NormalizeTerm folds a lexicon entry into the token sequence it should match.
func NormalizeTerm(term string) []string {
	tokens := Tokenize(term)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Norm)
	}
	return out
}

func isWordRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
		return true
	}
	_, ok := leet[r]
	return ok
}
